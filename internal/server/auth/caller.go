package auth

import "context"

// Caller is the authenticated identity behind a request, taken from a
// verified access token.
type Caller struct {
	Subject            string
	UpstreamCredential string
}

type ctxKey string

const callerKey ctxKey = "caller"

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFrom returns the caller stored by WithCaller.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok && c.Subject != ""
}

// CallerFromClaims builds a Caller out of verified claims.
func CallerFromClaims(c *Claims) Caller {
	return Caller{Subject: c.Subject, UpstreamCredential: c.UpstreamCredential}
}
