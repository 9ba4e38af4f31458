package revocation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultSweepInterval is how often expired entries are evicted.
const DefaultSweepInterval = 5 * time.Minute

// MemoryStore is a process-local Store backed by a concurrent hash map, so
// inserts and lookups from different requests do not contend on one lock.
//
// Keys are the serialized tokens, values their expiry in Unix milliseconds.
// Expired entries stay in memory until the next sweep; by then the token
// fails expiry validation anyway, so membership no longer matters.
type MemoryStore struct {
	entries  *xsync.MapOf[string, int64]
	logger   logging.Logger
	now      func() time.Time
	interval time.Duration

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithSweepInterval sets the sweeper period. Zero or negative disables the
// background sweeper; Sweep can still be called directly.
func WithSweepInterval(d time.Duration) Option {
	return func(s *MemoryStore) { s.interval = d }
}

// WithClock replaces time.Now for the background sweeper.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates the store and starts its sweeper. Call Close on
// shutdown to stop it.
func NewMemoryStore(logger logging.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries:  xsync.NewMapOf[string, int64](),
		logger:   logger.With("module", "revocation_store"),
		now:      time.Now,
		interval: DefaultSweepInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.interval > 0 {
		go s.sweepLoop()
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	if strings.TrimSpace(token) == "" {
		s.logger.Warn(ctx, "attempted to revoke a blank token")
		return nil
	}
	s.entries.Store(token, expiresAt.UnixMilli())
	s.logger.Debug(ctx, "token revoked", "expires_at", expiresAt.UTC())
	return nil
}

func (s *MemoryStore) RevokeIfAbsent(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	if strings.TrimSpace(token) == "" {
		s.logger.Warn(ctx, "attempted to revoke a blank token")
		return false, nil
	}
	_, loaded := s.entries.LoadOrStore(token, expiresAt.UnixMilli())
	return !loaded, nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	_, ok := s.entries.Load(token)
	return ok, nil
}

// Sweep removes every entry whose expiry is strictly before now and returns
// how many were removed.
//
// Each removal re-checks the expiry atomically, so an entry re-revoked with a
// later expiry while the sweep runs is kept.
func (s *MemoryStore) Sweep(now time.Time) int {
	cutoff := now.UnixMilli()
	removed := 0

	s.entries.Range(func(token string, expiresAt int64) bool {
		if expiresAt >= cutoff {
			return true
		}
		s.entries.Compute(token, func(current int64, loaded bool) (int64, bool) {
			if loaded && current < cutoff {
				removed++
				return current, true
			}
			return current, false
		})
		return true
	})

	return removed
}

// Size returns the number of entries, including expired ones not yet swept.
func (s *MemoryStore) Size() int {
	return s.entries.Size()
}

// Clear drops every entry.
func (s *MemoryStore) Clear() {
	s.entries.Clear()
}

// Close stops the sweeper and waits for it to exit. It is safe to call more
// than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *MemoryStore) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := s.Sweep(s.now()); removed > 0 {
				s.logger.Info(ctx, "cleaned up expired revocation entries",
					"removed", removed, "remaining", s.Size())
			}
		}
	}
}
