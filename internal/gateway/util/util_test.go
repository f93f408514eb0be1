package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"collegemgmt/internal/shared"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) JSONError {
	t.Helper()
	var body JSONError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	return body
}

func TestHandleServiceError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"Validation", shared.NewValidationError("semester", "out of range"), http.StatusBadRequest},
		{"Consent", shared.ErrConsentRequired, http.StatusBadRequest},
		{"Incomplete", &shared.IncompleteSubmissionError{Missing: 2}, http.StatusBadRequest},
		{"Unauthorized", shared.ErrUnauthorized, http.StatusUnauthorized},
		{"Forbidden", shared.ErrForbidden, http.StatusForbidden},
		{"NotFound", shared.NewNotFoundError("exam", "EXAM_X"), http.StatusNotFound},
		{"Conflict", &shared.ConflictError{Resource: "user", Detail: "duplicate"}, http.StatusConflict},
		{"Persistence", &shared.PersistenceError{Op: "upsert", Err: errors.New("down")}, http.StatusInternalServerError},
		{"Unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleServiceError(rec, tc.err)

			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			body := decodeError(t, rec)
			if body.Success {
				t.Error("error envelope must carry success=false")
			}
			if body.Message == "" {
				t.Error("error envelope must carry a message")
			}
		})
	}

	t.Run("Persistence Detail Is Not Leaked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleServiceError(rec, &shared.PersistenceError{Op: "upsert", Err: errors.New("mongodb://secret@host")})
		body := decodeError(t, rec)
		if strings.Contains(body.Message, "secret") {
			t.Error("driver error detail leaked to the client")
		}
	})
}

func TestWriteJSON(t *testing.T) {
	t.Run("Success Envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteJSON(rec, http.StatusOK, map[string]string{"id": "S1"})

		var body JSONResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if !body.Success {
			t.Error("2xx payloads must report success=true")
		}
		if body.Data == nil {
			t.Error("payload missing from data field")
		}
	})

	t.Run("Preformed Envelope Passes Through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteJSON(rec, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "logged out",
		})

		var body map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["message"] != "logged out" {
			t.Errorf("preformed envelope was re-wrapped: %v", body)
		}
	})
}

func TestExtractToken(t *testing.T) {
	t.Run("Valid Bearer Header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc.def.ghi")
		token, err := ExtractToken(r)
		if err != nil || token != "abc.def.ghi" {
			t.Errorf("token = %q, err = %v", token, err)
		}
	})

	t.Run("Missing Header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if _, err := ExtractToken(r); err == nil {
			t.Error("expected error for missing header")
		}
	})

	t.Run("Malformed Header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Token abc")
		if _, err := ExtractToken(r); err == nil {
			t.Error("expected error for non-bearer scheme")
		}
	})
}

func TestQueryInt32(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?semester=3&bad=three", nil)

	if v, err := QueryInt32(r, "semester"); err != nil || v != 3 {
		t.Errorf("semester = %d, err = %v", v, err)
	}
	if v, err := QueryInt32(r, "absent"); err != nil || v != 0 {
		t.Errorf("absent param should be 0, got %d err %v", v, err)
	}
	if _, err := QueryInt32(r, "bad"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Name     string `json:"name" validate:"required"`
		Semester int32  `json:"semester" validate:"min=1,max=8"`
	}

	t.Run("Valid Body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"DS","semester":3}`))
		var p payload
		if err := DecodeAndValidate(r, &p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var p payload
		var ve *shared.ValidationError
		if err := DecodeAndValidate(r, &p); !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Failed Constraint Names The Field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"semester":9}`))
		var p payload
		var ve *shared.ValidationError
		err := DecodeAndValidate(r, &p)
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if ve.Field == "" {
			t.Error("validation error should name the offending field")
		}
	})
}
