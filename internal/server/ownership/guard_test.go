package ownership

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	body  string
	err   error
	calls int

	gotCredential string
	gotStudent    string
}

func (f *fakeIndex) Enrollments(_ context.Context, credential, studentID string) (json.RawMessage, error) {
	f.calls++
	f.gotCredential = credential
	f.gotStudent = studentID
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.body), nil
}

var alice = auth.Caller{Subject: "u-alice", UpstreamCredential: "up-alice"}

func TestAssertOwned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		sourceErr  error
		resourceID string
		wantErr    bool
	}{
		{name: "owned numeric id", body: `[{"id":101},{"id":202}]`, resourceID: "202"},
		{name: "owned string id", body: `[{"id":"abc"}]`, resourceID: "abc"},
		{name: "large id kept exact", body: `[{"id":9007199254740993}]`, resourceID: "9007199254740993"},
		{name: "id with spaces", body: `[{"id":101}]`, resourceID: " 101 "},
		{name: "not owned", body: `[{"id":101}]`, resourceID: "999", wantErr: true},
		{name: "empty index", body: `[]`, resourceID: "101", wantErr: true},
		{name: "source error", sourceErr: common.ErrUpstreamUnavailable, resourceID: "101", wantErr: true},
		{name: "unparseable", body: `{{{`, resourceID: "101", wantErr: true},
		{name: "object instead of array", body: `{"id":101}`, resourceID: "101", wantErr: true},
		{name: "trailing garbage", body: `[{"id":101}] }}} not json`, resourceID: "101", wantErr: true},
		{name: "trailing open array", body: `[{"id":101}][`, resourceID: "101", wantErr: true},
		{name: "second value", body: `[{"id":101}]{"id":5}`, resourceID: "101", wantErr: true},
		{name: "trailing whitespace", body: "[{\"id\":101}]\n ", resourceID: "101"},
		{name: "null", body: `null`, resourceID: "101", wantErr: true},
		{name: "entries without id", body: `[{"name":"x"}]`, resourceID: "101", wantErr: true},
		{name: "blank resource id", body: `[{"id":101}]`, resourceID: "  ", wantErr: true},
		{name: "prefix is not a match", body: `[{"id":1010}]`, resourceID: "101", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := &fakeIndex{body: tt.body, err: tt.sourceErr}
			g := NewGuard(src, logging.Nop())

			err := g.AssertOwned(context.Background(), alice, tt.resourceID)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrForbidden), "got %v", err)
			assert.False(t, errors.Is(err, common.ErrUpstreamUnavailable), "collaborator error must not leak")
		})
	}
}

func TestAssertOwned_UsesCallerAndDoesNotCache(t *testing.T) {
	t.Parallel()

	src := &fakeIndex{body: `[{"id":1}]`}
	g := NewGuard(src, logging.Nop())
	ctx := context.Background()

	require.NoError(t, g.AssertOwned(ctx, alice, "1"))
	assert.Equal(t, "up-alice", src.gotCredential)
	assert.Equal(t, "u-alice", src.gotStudent)

	src.body = `[]`
	assert.ErrorIs(t, g.AssertOwned(ctx, alice, "1"), common.ErrForbidden)
	assert.Equal(t, 2, src.calls)
}

func TestAssertOwned_NoCaller(t *testing.T) {
	t.Parallel()

	src := &fakeIndex{body: `[{"id":1}]`}
	g := NewGuard(src, logging.Nop())

	err := g.AssertOwned(context.Background(), auth.Caller{}, "1")
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, 0, src.calls)
}
