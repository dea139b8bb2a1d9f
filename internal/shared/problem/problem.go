// Package problem defines the typed domain errors surfaced by business
// functions and their problem-details serialization at the HTTP layer.
package problem

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure and fixes its HTTP status.
type Kind int

const (
	KindInvalidArgument Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnprocessable
	KindRateLimited
	KindTransient
	KindInternal
)

// Status maps a Kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Title returns the conventional reason phrase for the kind.
func (k Kind) Title() string {
	switch k {
	case KindInvalidArgument:
		return "Bad Request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Conflict"
	case KindUnprocessable:
		return "Unprocessable Entity"
	case KindRateLimited:
		return "Too Many Requests"
	case KindTransient:
		return "Service Unavailable"
	default:
		return "Internal Server Error"
	}
}

// Error is a typed domain error. Instance names the resource path the error
// relates to; it ends up in the problem-details body.
type Error struct {
	Kind     Kind
	Detail   string
	Instance string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Title(), e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Title(), e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed domain error.
func New(kind Kind, detail, instance string) *Error {
	return &Error{Kind: kind, Detail: detail, Instance: instance}
}

// Newf builds a typed domain error with a formatted detail.
func Newf(kind Kind, instance, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Instance: instance}
}

// Wrap attaches a cause to a typed domain error.
func Wrap(err error, kind Kind, detail, instance string) *Error {
	return &Error{Kind: kind, Detail: detail, Instance: instance, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// Details is the problem-details response shape.
type Details struct {
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlation_id"`
}

// DetailsFor serializes err into a problem-details body. Internal causes are
// not leaked: anything that is not a *problem.Error maps to a bare 500.
func DetailsFor(err error, correlationID string) Details {
	var pe *Error
	if errors.As(err, &pe) {
		return Details{
			Title:         pe.Kind.Title(),
			Status:        pe.Kind.Status(),
			Detail:        pe.Detail,
			Instance:      pe.Instance,
			CorrelationID: correlationID,
		}
	}
	return Details{
		Title:         "Internal Server Error",
		Status:        http.StatusInternalServerError,
		Detail:        "unexpected error",
		CorrelationID: correlationID,
	}
}
