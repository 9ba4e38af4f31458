// Package common contains shared constants and sentinel errors used across
// gateway components.
package common

const (
	// RefreshTokenCookieName is the HTTP-only cookie carrying the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath scopes the refresh cookie to the auth endpoints.
	RefreshTokenCookiePath = "/api/auth"

	// BearerPrefix is the Authorization scheme used for access tokens.
	BearerPrefix = "Bearer "
)
