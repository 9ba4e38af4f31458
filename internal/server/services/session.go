// Package services contains server-side business logic. This file implements
// SessionService, which handles login, refresh token rotation and logout.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
	"github.com/dmitrijs2005/progres-gateway/internal/server/config"
	"github.com/dmitrijs2005/progres-gateway/internal/server/revocation"
	"github.com/dmitrijs2005/progres-gateway/internal/server/upstream"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token
// minted for the same subject.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Subject      string
}

// IdentityProvider performs the external credential check at login.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (*upstream.Identity, error)
}

// SessionService provides the token lifecycle:
// - Login: check credentials upstream and mint a pair
// - Refresh: single-use rotation of the refresh token
// - Logout: revoke whatever tokens the caller presents
type SessionService struct {
	identity                     IdentityProvider
	codec                        *auth.Codec
	store                        revocation.Store
	logger                       logging.Logger
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewSessionService(identity IdentityProvider, codec *auth.Codec, store revocation.Store, cfg *config.Config, logger logging.Logger) *SessionService {
	return &SessionService{
		identity:                     identity,
		codec:                        codec,
		store:                        store,
		logger:                       logger.With("module", "session_service"),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// RefreshTokenLifetime is how long a freshly minted refresh token lives; the
// transport uses it as the cookie max-age.
func (s *SessionService) RefreshTokenLifetime() time.Duration {
	return s.refreshTokenValidityDuration
}

// Login checks the credentials with the identity provider and, on success,
// returns a new TokenPair carrying the upstream credential.
func (s *SessionService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("username and password are required: %w", common.ErrBadRequest)
	}

	id, err := s.identity.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Info(ctx, "login rejected", "username", username)
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "identity provider failed", "error", err)
		return nil, fmt.Errorf("identity check failed: %w", common.ErrUpstreamUnavailable)
	}

	pair, err := s.generateTokenPair(id.UUID, id.Token)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "login succeeded", "subject", id.UUID)
	return pair, nil
}

// Refresh rotates refreshToken: it must be valid and not yet used, a new
// pair is minted from its claims and the old token is revoked until its own
// expiry. Missing or invalid tokens yield common.ErrUnauthenticated, a used
// one common.ErrRevoked.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refresh token missing: %w", common.ErrUnauthenticated)
	}

	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token invalid: %w", common.ErrUnauthenticated)
	}

	revoked, err := s.store.IsRevoked(ctx, refreshToken)
	if err != nil {
		s.logger.Error(ctx, "revocation lookup failed", "error", err)
		return nil, common.ErrInternal
	}
	if revoked {
		s.logger.Warn(ctx, "revoked refresh token presented", "subject", claims.Subject)
		return nil, common.ErrRevoked
	}

	pair, err := s.generateTokenPair(claims.Subject, claims.UpstreamCredential)
	if err != nil {
		return nil, err
	}

	// Claiming the old token is atomic, so of two concurrent refreshes with
	// the same token only one gets a pair.
	won, err := s.store.RevokeIfAbsent(ctx, refreshToken, claims.ExpiresAt.Time)
	if err != nil {
		s.logger.Error(ctx, "revoking rotated refresh token failed", "error", err)
		return nil, common.ErrInternal
	}
	if !won {
		s.logger.Warn(ctx, "refresh token reused concurrently", "subject", claims.Subject)
		return nil, common.ErrRevoked
	}

	return pair, nil
}

// Logout revokes the presented access and refresh tokens. It never fails:
// tokens that cannot be read or revoked are logged and skipped.
func (s *SessionService) Logout(ctx context.Context, accessToken, refreshToken string) {
	s.revokeQuietly(ctx, "access", accessToken)
	s.revokeQuietly(ctx, "refresh", refreshToken)
}

func (s *SessionService) revokeQuietly(ctx context.Context, kind, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}

	expiresAt, err := s.codec.ExpiresAt(token)
	if err != nil {
		s.logger.Warn(ctx, "cannot revoke unreadable token on logout", "kind", kind)
		return
	}
	if err := s.store.Revoke(ctx, token, expiresAt); err != nil {
		s.logger.Warn(ctx, "failed to revoke token on logout", "kind", kind, "error", err)
	}
}

func (s *SessionService) generateTokenPair(subject, upstreamCredential string) (*TokenPair, error) {
	access, err := s.codec.Mint(subject, upstreamCredential, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %v: %w", err, common.ErrInternal)
	}
	refresh, err := s.codec.Mint(subject, upstreamCredential, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %v: %w", err, common.ErrInternal)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, Subject: subject}, nil
}
