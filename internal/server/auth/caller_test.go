package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestCallerContext(t *testing.T) {
	_, ok := CallerFrom(context.Background())
	assert.False(t, ok)

	ctx := WithCaller(context.Background(), Caller{Subject: "u-1", UpstreamCredential: "up"})
	c, ok := CallerFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, Caller{Subject: "u-1", UpstreamCredential: "up"}, c)

	_, ok = CallerFrom(WithCaller(context.Background(), Caller{}))
	assert.False(t, ok, "empty subject is not a caller")
}

func TestCallerFromClaims(t *testing.T) {
	c := CallerFromClaims(&Claims{
		RegisteredClaims:   jwt.RegisteredClaims{Subject: "u-1"},
		UpstreamCredential: "up",
	})
	assert.Equal(t, Caller{Subject: "u-1", UpstreamCredential: "up"}, c)
}
