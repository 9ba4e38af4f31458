// Package auth mints and verifies the gateway's signed bearer tokens.
//
// A token carries the caller's subject and the opaque credential issued by
// the upstream identity provider, so the gateway can act on the caller's
// behalf without re-authenticating. Access and refresh tokens share this
// encoding and differ only in lifetime.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload: the standard registered claims plus the
// upstream credential.
type Claims struct {
	jwt.RegisteredClaims
	UpstreamCredential string `json:"externalToken"`
}

// Codec signs tokens with a single server-held HMAC key (HS256).
// It has no side effects and is safe for concurrent use.
type Codec struct {
	key []byte
	now func() time.Time

	parser       *jwt.Parser
	expiryParser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(key []byte, opts ...Option) *Codec {
	c := &Codec{key: key, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	methods := jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})
	c.parser = jwt.NewParser(methods, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	c.expiryParser = jwt.NewParser(methods, jwt.WithoutClaimsValidation())
	return c
}

// Mint returns a signed token for subject that expires lifetime from now.
// Every token gets a random ID, so two tokens minted within the same second
// for the same subject still differ.
func (c *Codec) Mint(subject, upstreamCredential string, lifetime time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		UpstreamCredential: upstreamCredential,
	})

	tokenString, err := token.SignedString(c.key)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks signature and expiry and returns the claims.
// Malformed input, a bad signature and expiry all yield
// common.ErrInvalidToken; the cause is not exposed.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := c.parser.ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	// jwt treats exp == now as still valid; a token is dead from its expiry
	// instant on.
	if !c.now().Before(claims.ExpiresAt.Time) || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// IsValid reports whether Verify would succeed.
func (c *Codec) IsValid(tokenString string) bool {
	_, err := c.Verify(tokenString)
	return err == nil
}

// Subject extracts the subject of a valid token.
func (c *Codec) Subject(tokenString string) (string, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// UpstreamCredential extracts the embedded upstream credential of a valid token.
func (c *Codec) UpstreamCredential(tokenString string) (string, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UpstreamCredential, nil
}

// ExpiresAt returns the expiry instant of a correctly signed token, whether
// or not it has already passed. Revocation uses it as the entry lifetime,
// and logout must be able to revoke tokens at any point of their life.
func (c *Codec) ExpiresAt(tokenString string) (time.Time, error) {
	if tokenString == "" {
		return time.Time{}, common.ErrInvalidToken
	}

	claims := &Claims{}
	if _, err := c.expiryParser.ParseWithClaims(tokenString, claims, c.keyFunc); err != nil {
		return time.Time{}, common.ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, common.ErrInvalidToken
	}
	return claims.ExpiresAt.Time, nil
}

func (c *Codec) keyFunc(*jwt.Token) (interface{}, error) {
	return c.key, nil
}
