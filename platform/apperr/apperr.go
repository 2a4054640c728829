// Package apperr provides the typed error taxonomy shared by all modules.
// Services return these errors; the HTTP layer maps them to status codes
// through HTTPStatus without knowing which module produced them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindValidation indicates malformed or missing input.
	KindValidation
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindForbidden indicates the caller lacks the role or team scope for the action.
	KindForbidden
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindStateConflict indicates the resource is in a state that does not allow the action.
	KindStateConflict
	// KindTransientStore indicates the underlying store failed during a mutation.
	KindTransientStore
	// KindDispatch indicates a notification or email delivery failure.
	// Dispatch errors are logged, never returned to callers.
	KindDispatch
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindValidation:     "validation",
	KindUnauthorized:   "unauthorized",
	KindForbidden:      "forbidden",
	KindNotFound:       "not_found",
	KindStateConflict:  "state_conflict",
	KindTransientStore: "transient_store",
	KindDispatch:       "dispatch",
	KindInternal:       "internal",
}

// String returns the snake_case name of the kind, used in logs.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
	Details any    // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error kind.
// A state conflict is reported as 400 so clients treat it like any other
// rejected request; they read the reason from the message and details.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindStateConflict:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTransientStore, KindDispatch, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation on the error and returns it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets response details on the error and returns it.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return newError(KindValidation, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return newError(KindForbidden, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return newError(KindNotFound, message)
}

// StateConflict creates a state conflict error.
func StateConflict(message string) *Error {
	return newError(KindStateConflict, message)
}

// TransientStore wraps a store failure that aborted a mutation.
func TransientStore(message string, err error) *Error {
	return wrapError(KindTransientStore, message, err)
}

// Dispatch wraps a notification delivery failure.
func Dispatch(message string, err error) *Error {
	return wrapError(KindDispatch, message, err)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return newError(KindInternal, message)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
