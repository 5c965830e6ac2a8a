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

// Is matches errors sharing the same code so clones compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
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
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Registration errors.
var (
	ErrAlreadyInCourse   = New("ALREADY_IN_COURSE", http.StatusConflict, "already registered for this course")
	ErrAlreadyEnrolled   = New("ALREADY_ENROLLED", http.StatusConflict, "student already enrolled in index")
	ErrNotEnrolled       = New("NOT_ENROLLED", http.StatusNotFound, "student not enrolled in index")
	ErrAlreadyWaitlisted = New("ALREADY_WAITLISTED", http.StatusConflict, "student already on waitlist")
	ErrNotWaitlisted     = New("NOT_WAITLISTED", http.StatusNotFound, "student not on waitlist")
	ErrAULimitExceeded   = New("AU_LIMIT_EXCEEDED", http.StatusConflict, "academic unit limit exceeded")
	ErrScheduleConflict  = New("SCHEDULE_CONFLICT", http.StatusConflict, "timetable clash")
	ErrSectionFull       = New("SECTION_FULL", http.StatusConflict, "index has no vacancy")
	ErrSwapFailed        = New("SWAP_FAILED", http.StatusConflict, "index swap failed")
	ErrInvalidTarget     = New("INVALID_TARGET", http.StatusNotFound, "course index does not exist")
	ErrStorageFailure    = New("STORAGE_FAILURE", http.StatusServiceUnavailable, "record store unavailable")
	ErrPartialFailure    = New("PARTIAL_FAILURE", http.StatusInternalServerError, "operation interrupted; records may need reconciliation")
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

// Storage wraps a record store failure.
func Storage(err error, message string) *Error {
	return Wrap(err, ErrStorageFailure.Code, ErrStorageFailure.Status, message)
}
