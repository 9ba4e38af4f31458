// Package client contains client-side building blocks for the gateway CLI.
//
// # Overview
//
// The package provides:
//  1. An API contract (see the Client interface) for the gateway: Login,
//     Refresh, Logout, record lookups and recommendations.
//  2. An HTTP implementation (see HTTPClient) that sends the access token as
//     a bearer header, keeps the refresh token the way a browser would (as
//     the refresh_token cookie) and, when a call is rejected with 401,
//     refreshes once and retries.
//  3. Session persistence (LoadSession, SaveSession, RemoveSession) so the
//     tokens survive between CLI invocations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrNotFound.
//
// See Also
//
//   - Interface:  Client
//   - HTTP impl:  HTTPClient
//   - Session:    Session, LoadSession, SaveSession
package client
