package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
	"github.com/dmitrijs2005/progres-gateway/internal/server/config"
	"github.com/dmitrijs2005/progres-gateway/internal/server/revocation"
	"github.com/dmitrijs2005/progres-gateway/internal/server/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

var testKey = []byte("0123456789abcdef0123456789abcdef")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeIdentity struct {
	out *upstream.Identity
	err error

	gotUser, gotPass string
	calls            int
}

func (f *fakeIdentity) Authenticate(_ context.Context, username, password string) (*upstream.Identity, error) {
	f.calls++
	f.gotUser, f.gotPass = username, password
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

// failingStore wraps a real store and injects errors.
type failingStore struct {
	revocation.Store
	isRevokedErr error
	revokeErr    error
}

func (f *failingStore) Revoke(ctx context.Context, token string, exp time.Time) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	return f.Store.Revoke(ctx, token, exp)
}

func (f *failingStore) RevokeIfAbsent(ctx context.Context, token string, exp time.Time) (bool, error) {
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	return f.Store.RevokeIfAbsent(ctx, token, exp)
}

func (f *failingStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	if f.isRevokedErr != nil {
		return false, f.isRevokedErr
	}
	return f.Store.IsRevoked(ctx, token)
}

type sessionFixture struct {
	svc   *SessionService
	codec *auth.Codec
	store *revocation.MemoryStore
	idp   *fakeIdentity
	clock *clock
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	clk := newClock()
	codec := auth.NewCodec(testKey, auth.WithClock(clk.Now))
	store := revocation.NewMemoryStore(logging.Nop(), revocation.WithSweepInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	idp := &fakeIdentity{out: &upstream.Identity{UUID: "u-1", Token: "up-tok"}}
	cfg := &config.Config{
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 30 * 24 * time.Hour,
	}
	return &sessionFixture{
		svc:   NewSessionService(idp, codec, store, cfg, logging.Nop()),
		codec: codec,
		store: store,
		idp:   idp,
		clock: clk,
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newSessionFixture(t)

	pair, err := f.svc.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", f.idp.gotUser)
	assert.Equal(t, "pw", f.idp.gotPass)
	assert.Equal(t, "u-1", pair.Subject)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	access, err := f.codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", access.Subject)
	assert.Equal(t, "up-tok", access.UpstreamCredential)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute).Unix(), access.ExpiresAt.Unix())

	refresh, err := f.codec.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", refresh.Subject)
	assert.Equal(t, "up-tok", refresh.UpstreamCredential)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour).Unix(), refresh.ExpiresAt.Unix())

	assert.Equal(t, 30*24*time.Hour, f.svc.RefreshTokenLifetime())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name      string
		user      string
		pass      string
		idpErr    error
		wantErr   error
		wantCalls int
	}{
		{name: "blank user", user: " ", pass: "pw", wantErr: common.ErrBadRequest},
		{name: "blank password", user: "alice", pass: "", wantErr: common.ErrBadRequest},
		{name: "rejected", user: "alice", pass: "pw", idpErr: common.ErrInvalidCredentials, wantErr: common.ErrInvalidCredentials, wantCalls: 1},
		{name: "upstream down", user: "alice", pass: "pw", idpErr: common.ErrUpstreamUnavailable, wantErr: common.ErrUpstreamUnavailable, wantCalls: 1},
		{name: "unknown failure", user: "alice", pass: "pw", idpErr: errors.New("boom"), wantErr: common.ErrUpstreamUnavailable, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t)
			f.idp.err = tt.idpErr

			pair, err := f.svc.Login(context.Background(), tt.user, tt.pass)
			assert.Nil(t, pair)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, f.idp.calls)
		})
	}
}

// --- Refresh ---

func TestRefresh_RotatesAndIsSingleUse(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p1, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	p2, err := f.svc.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, p1.AccessToken, p2.AccessToken)
	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)
	assert.Equal(t, "u-1", p2.Subject)

	cred, err := f.codec.UpstreamCredential(p2.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "up-tok", cred)

	// replaying the rotated token fails
	_, err = f.svc.Refresh(ctx, p1.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRevoked)

	// the new one works
	_, err = f.svc.Refresh(ctx, p2.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RevocationUsesOriginalExpiry(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p1, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	exp, err := f.codec.ExpiresAt(p1.RefreshToken)
	require.NoError(t, err)

	f.clock.Advance(10 * 24 * time.Hour)
	_, err = f.svc.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)

	// still revoked right before its own expiry, gone right after
	assert.Equal(t, 0, f.store.Sweep(exp.Add(-time.Millisecond)))
	revoked, _ := f.store.IsRevoked(ctx, p1.RefreshToken)
	assert.True(t, revoked)

	assert.Equal(t, 1, f.store.Sweep(exp.Add(time.Millisecond)))
	revoked, _ = f.store.IsRevoked(ctx, p1.RefreshToken)
	assert.False(t, revoked)
}

func TestRefresh_Failures(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	other := auth.NewCodec([]byte("another-key-another-key-another-k"), auth.WithClock(f.clock.Now))
	forged, err := other.Mint("u-1", "up-tok", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "missing", token: "", wantErr: common.ErrUnauthenticated},
		{name: "blank", token: "   ", wantErr: common.ErrUnauthenticated},
		{name: "malformed", token: "not.a.jwt", wantErr: common.ErrUnauthenticated},
		{name: "forged", token: forged, wantErr: common.ErrUnauthenticated},
		{name: "tampered", token: p.RefreshToken + "x", wantErr: common.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := f.svc.Refresh(ctx, tt.token)
			assert.Nil(t, pair)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, f.store.Size())
}

func TestRefresh_Expired(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	f.clock.Advance(30 * 24 * time.Hour)
	_, err = f.svc.Refresh(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestRefresh_StoreErrorsFailClosed(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	f.svc.store = &failingStore{Store: f.store, isRevokedErr: errors.New("down")}
	_, err = f.svc.Refresh(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInternal)

	f.svc.store = &failingStore{Store: f.store, revokeErr: errors.New("down")}
	_, err = f.svc.Refresh(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInternal)

	// the token was never consumed
	f.svc.store = f.store
	_, err = f.svc.Refresh(ctx, p.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_ConcurrentReuseHasOneWinner(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	const racers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(ctx, p.RefreshToken)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, common.ErrRevoked)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

// --- Logout ---

func TestLogout_RevokesBoth(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	f.svc.Logout(ctx, p.AccessToken, p.RefreshToken)

	for _, tok := range []string{p.AccessToken, p.RefreshToken} {
		revoked, err := f.store.IsRevoked(ctx, tok)
		require.NoError(t, err)
		assert.True(t, revoked)
	}

	_, err = f.svc.Refresh(ctx, p.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRevoked)
}

func TestLogout_ExpiredAccessTokenIsHarmless(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	p, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	f.svc.Logout(ctx, p.AccessToken, "")

	revoked, _ := f.store.IsRevoked(ctx, p.AccessToken)
	assert.True(t, revoked)

	// the entry is already past expiry, so the next sweep drops it
	assert.Equal(t, 1, f.store.Sweep(f.clock.Now()))
}

func TestLogout_ToleratesGarbageAndStoreErrors(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.svc.Logout(ctx, "", "")
	f.svc.Logout(ctx, "garbage", "also.garbage.token")
	assert.Equal(t, 0, f.store.Size())

	p, err := f.svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	f.svc.store = &failingStore{Store: f.store, revokeErr: errors.New("down")}
	assert.NotPanics(t, func() { f.svc.Logout(ctx, p.AccessToken, p.RefreshToken) })
}
