// Package revocation keeps track of bearer tokens that must be rejected
// before their natural expiry (logout, refresh rotation).
package revocation

import (
	"context"
	"time"
)

// Store is the revocation contract used by the session service and the
// bearer gate.
//
// Implementations must be safe for concurrent use by many requests plus one
// periodic sweeper, and must never evict an entry whose expiry lies in the
// future. The in-process MemoryStore is the only implementation; a shared
// backend would satisfy the same interface.
type Store interface {
	// Revoke records token as revoked until expiresAt. Revoking an already
	// revoked token only overwrites its expiry. Blank tokens are ignored.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error

	// RevokeIfAbsent records token only if it is not recorded yet and reports
	// whether this call inserted it. Exactly one of several concurrent
	// callers for the same token wins.
	RevokeIfAbsent(ctx context.Context, token string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether token is currently recorded. Blank tokens
	// are never revoked.
	IsRevoked(ctx context.Context, token string) (bool, error)
}
