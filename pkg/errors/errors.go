package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrInfeasiblePreflight reports that the constraint compiler rejected a
	// generation request before search began.
	ErrInfeasiblePreflight = New("INFEASIBLE_PREFLIGHT", http.StatusUnprocessableEntity, "request is infeasible before search")
	// ErrUnsatisfiable reports that search exhausted the space without
	// placing every required session.
	ErrUnsatisfiable = New("UNSATISFIABLE", http.StatusUnprocessableEntity, "no complete assignment exists")
	// ErrExhausted reports that search hit the iteration cap without
	// proving either SAT or UNSAT.
	ErrExhausted = New("EXHAUSTED", http.StatusUnprocessableEntity, "search exhausted its iteration budget")
	// ErrCancelled reports that a caller cancelled a running generation
	// request.
	ErrCancelled = New("CANCELLED", http.StatusConflict, "generation was cancelled")
	// ErrLockHeld reports that another writer already holds the partition
	// lock for this (academic_year, semester_type).
	ErrLockHeld = New("LOCK_HELD", http.StatusConflict, "another writer holds the partition lock")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
