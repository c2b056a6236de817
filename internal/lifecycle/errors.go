package lifecycle

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a controller error.
type Kind string

const (
	KindMalformedInput     Kind = "malformed_input"
	KindMissingField       Kind = "missing_required_field"
	KindInvalidValue       Kind = "invalid_value"
	KindInvariantViolation Kind = "invariant_violation"
	KindInvalidTransition  Kind = "invalid_transition"
	KindNotFound           Kind = "not_found"
	KindNoOpUpdate         Kind = "no_op_update"
	KindConflict           Kind = "conflict"
	KindStoreFailure       Kind = "store_failure"
)

// HTTPStatus maps the kind to the status code returned at the HTTP boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMalformedInput, KindMissingField, KindInvalidValue,
		KindInvariantViolation, KindInvalidTransition, KindNoOpUpdate:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by every Controller operation that fails.
// Message is safe to show to end users; Err is kept for logs only.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindStoreFailure for foreign errors.
func KindOf(err error) Kind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindStoreFailure
}

func missingField(field string) *Error {
	return &Error{Kind: KindMissingField, Field: field, Message: field + " is required"}
}

func malformedID(field string) *Error {
	return &Error{Kind: KindMalformedInput, Field: field, Message: field + " must be a valid 24-character hex identifier"}
}

func invalidValue(field, message string) *Error {
	return &Error{Kind: KindInvalidValue, Field: field, Message: message}
}

func notFound(collection string) *Error {
	return &Error{Kind: KindNotFound, Message: recordNoun(collection) + " not found"}
}
