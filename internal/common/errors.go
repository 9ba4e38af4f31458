// Package common defines shared constants and sentinel errors used across
// the gateway server and its command line client. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository/upstream-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// Auth errors. ErrInvalidToken carries no decoding detail.
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrRevoked            = errors.New("token revoked")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authorization errors (ownership check failed or could not be performed).
	ErrForbidden = errors.New("forbidden")

	// Collaborator errors.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Request-level errors.
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limited")
)
