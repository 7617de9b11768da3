package booking

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error carrying a stable code and the HTTP status the
// API answers with.  The package-level values are kinds; derive concrete
// errors with Msg and match them with errors.Is.
type Error struct {
	Code    string
	Status  int
	Message string
	Details map[string]any

	kind  *Error
	cause error
}

var (
	ErrValidation         = kind("validation_error", http.StatusBadRequest, "invalid input")
	ErrNotFound           = kind("not_found", http.StatusNotFound, "session not found")
	ErrOverlap            = kind("overlap", http.StatusConflict, "session overlaps an existing active session")
	ErrCapacityExceeded   = kind("capacity_exceeded", http.StatusConflict, "not enough available spots for this session")
	ErrHasBookings        = kind("has_bookings", http.StatusConflict, "session has bookings")
	ErrCapacityConflict   = kind("capacity_conflict", http.StatusConflict, "capacity is below the seats already booked")
	ErrSessionUnavailable = kind("session_unavailable", http.StatusConflict, "this session is no longer available")
	ErrConflict           = kind("conflict", http.StatusConflict, "conflict")
	ErrUnauthorized       = kind("unauthorized", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = kind("forbidden", http.StatusForbidden, "forbidden")
	ErrUnavailable        = kind("unavailable", http.StatusServiceUnavailable, "dependency unavailable")
	ErrInternal           = kind("internal", http.StatusInternalServerError, "internal error")
)

func kind(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Msg derives an error of the same kind with a new message.
func (e *Error) Msg(format string, args ...any) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: fmt.Sprintf(format, args...), kind: e.root(), cause: e.cause}
}

// With returns a copy carrying an extra detail field for the response body.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.kind = e.root()
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Wrap returns a copy that records err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.kind = e.root()
	cp.cause = err
	return &cp
}

func (e *Error) root() *Error {
	if e.kind != nil {
		return e.kind
	}
	return e
}

// AsError converts any error into a domain error, treating unknown errors
// as internal failures.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal.Wrap(err)
}

// Permanent reports whether retrying the same input can never succeed.
func (e *Error) Permanent() bool {
	return e.Status < http.StatusInternalServerError
}
