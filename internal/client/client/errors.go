package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("too many requests")
)

// APIError carries the gateway's error message. It unwraps to the sentinel
// matching the status code.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.kind.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.kind }
