// ============================================================================
// internal/shared/errors.go
// Error taxonomy shared by services and the HTTP gateway
// ============================================================================

package shared

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or missing input field. Recoverable:
// the caller corrects the input, no state changed.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing entity. For roster queries an empty match
// is a non-fatal empty result; for a referenced entity that vanished between
// query and submit it is a hard error.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id,omitempty"`
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError builds a NotFoundError for a resource and optional ID.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a uniqueness violation (duplicate email, branch name,
// enrollment number).
type ConflictError struct {
	Resource string `json:"resource"`
	Detail   string `json:"detail"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Detail)
}

// ErrConsentRequired gates marks submission on the explicit attestation
// checkbox. Checked before any persistence interaction.
var ErrConsentRequired = errors.New("submission requires the data accuracy attestation")

// IncompleteSubmissionError reports a staged marks set missing entries for
// one or more rostered students.
type IncompleteSubmissionError struct {
	Missing int `json:"missing"`
}

func (e *IncompleteSubmissionError) Error() string {
	if e.Missing == 1 {
		return "1 candidate is missing a score entry"
	}
	return fmt.Sprintf("%d candidates are missing score entries", e.Missing)
}

// PersistenceError wraps a storage failure outside the caller's control.
// Surfaced to the user as a retryable failure; staged data must be preserved
// client-side so retry loses nothing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WrapPersistence wraps a driver error, passing through errors that already
// belong to the taxonomy so services can bubble them unchanged.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var nf *NotFoundError
	var ce *ConflictError
	var ie *IncompleteSubmissionError
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) ||
		errors.As(err, &ie) || errors.Is(err, ErrConsentRequired) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ErrUnauthorized and ErrForbidden mark the authorization boundary. The auth
// middleware rejects unauthenticated calls before service logic runs.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("access denied")
)
