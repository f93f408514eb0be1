package shared

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapPersistence(t *testing.T) {
	t.Run("Nil Passes Through", func(t *testing.T) {
		if WrapPersistence("op", nil) != nil {
			t.Error("wrapping nil should stay nil")
		}
	})

	t.Run("Driver Errors Become Persistence Errors", func(t *testing.T) {
		err := WrapPersistence("marks batch upsert", errors.New("connection reset"))
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("expected PersistenceError, got %T", err)
		}
		if pe.Op != "marks batch upsert" {
			t.Errorf("op not retained: %q", pe.Op)
		}
		if !errors.Is(err, pe.Err) {
			t.Error("wrapped cause must unwrap")
		}
	})

	t.Run("Taxonomy Errors Pass Through Unwrapped", func(t *testing.T) {
		cases := []error{
			NewValidationError("semester", "out of range"),
			NewNotFoundError("exam", "EXAM_X"),
			&ConflictError{Resource: "user", Detail: "duplicate email"},
			&IncompleteSubmissionError{Missing: 2},
			ErrConsentRequired,
		}
		for _, in := range cases {
			out := WrapPersistence("op", in)
			if out != in {
				t.Errorf("taxonomy error was re-wrapped: %v became %v", in, out)
			}
		}
	})
}

func TestIncompleteSubmissionError(t *testing.T) {
	one := &IncompleteSubmissionError{Missing: 1}
	if !strings.Contains(one.Error(), "1 candidate is") {
		t.Errorf("singular form wrong: %q", one.Error())
	}
	many := &IncompleteSubmissionError{Missing: 3}
	if !strings.Contains(many.Error(), "3 candidates are") {
		t.Errorf("plural form wrong: %q", many.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("examId", "examId is required")
	if err.Error() != "examId: examId is required" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	bare := &ValidationError{Message: "nothing staged"}
	if bare.Error() != "nothing staged" {
		t.Errorf("field-less message wrong: %q", bare.Error())
	}
}
