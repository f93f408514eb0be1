package util

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"collegemgmt/internal/shared"
)

// Validate is the shared struct validator for request bodies.
var Validate = validator.New()

// JSONResponse structure for successful responses
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// JSONError structure for error responses
type JSONError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteJSON is a helper to write JSON responses
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var response interface{}

	// If payload is already a map with a "success" key, use it directly.
	if responseMap, ok := payload.(map[string]interface{}); ok && responseMap["success"] != nil {
		response = payload
	} else if status >= 200 && status < 300 {
		response = JSONResponse{Success: true, Data: payload}
	} else {
		response = JSONError{Success: false, Message: "Unknown error"}
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	log.Printf("HTTP Error %d: %s", status, message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResponse := JSONError{
		Success: false,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("Error writing JSON error response: %v", err)
	}
}

// HandleServiceError translates service-layer errors to HTTP responses. This
// is the single place the error taxonomy meets status codes, so every
// handler reports failures the same way.
func HandleServiceError(w http.ResponseWriter, err error) {
	var validation *shared.ValidationError
	var notFound *shared.NotFoundError
	var conflict *shared.ConflictError
	var incomplete *shared.IncompleteSubmissionError
	var persistence *shared.PersistenceError

	switch {
	case errors.Is(err, shared.ErrConsentRequired):
		WriteJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &incomplete):
		WriteJSONError(w, http.StatusBadRequest, incomplete.Error())
	case errors.As(err, &validation):
		WriteJSONError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		WriteJSONError(w, http.StatusUnauthorized, "Invalid credentials or expired session")
	case errors.Is(err, shared.ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, "Access denied")
	case errors.As(err, &notFound):
		WriteJSONError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		WriteJSONError(w, http.StatusConflict, conflict.Error())
	case errors.As(err, &persistence):
		// Storage failures are retryable; the client keeps its staged data.
		WriteJSONError(w, http.StatusInternalServerError, "A storage error occurred, please retry")
	default:
		WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// Decode decodes a JSON body into dst without struct validation, for
// partial-update payloads where every field is optional.
func Decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return shared.NewValidationError("body", "invalid request body")
	}
	return nil
}

// DecodeAndValidate decodes a JSON body into dst and runs struct validation.
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return shared.NewValidationError("body", "invalid request body")
	}
	if err := Validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			field := invalid[0].Field()
			return shared.NewValidationError(field, "invalid value for "+field)
		}
		return shared.NewValidationError("body", "request validation failed")
	}
	return nil
}

// QueryInt32 parses an optional integer query parameter; 0 means absent.
func QueryInt32(r *http.Request, key string) (int32, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, shared.NewValidationError(key, key+" must be an integer")
	}
	return int32(v), nil
}

// ExtractToken extracts the token from the Authorization header (Bearer <token>)
func ExtractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	// Expect header: "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}
