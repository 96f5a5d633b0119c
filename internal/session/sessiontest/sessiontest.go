// Package sessiontest holds the behavioural tests every session.Binding must pass.
package sessiontest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh binding for one subtest
type Factory func(t *testing.T) session.Binding

func record(access string) *auth.TokenRecord {
	return &auth.TokenRecord{
		Identity:     "sub-1",
		Email:        "user@example.com",
		AccessToken:  access,
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Millisecond).UTC(),
		Scopes:       []string{"openid"},
	}
}

// RunBindingTests exercises the session.Binding contract
func RunBindingTests(t *testing.T, newBinding Factory) {
	t.Run("create is anonymous", func(t *testing.T) {
		b := newBinding(t)
		ctx := context.Background()

		s, err := b.Create(ctx)
		require.NoError(t, err)
		assert.Len(t, s.ID, 43)
		assert.False(t, s.HasCredentials())
		assert.Equal(t, uint64(0), s.Version)

		resolved, err := b.Resolve(ctx, s.ID)
		require.NoError(t, err)
		assert.False(t, resolved.HasCredentials())
		assert.False(t, resolved.Authenticated(time.Now()))
	})

	t.Run("ids are unique", func(t *testing.T) {
		b := newBinding(t)
		seen := make(map[string]bool)
		for range 20 {
			s, err := b.Create(context.Background())
			require.NoError(t, err)
			assert.False(t, seen[s.ID])
			seen[s.ID] = true
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		b := newBinding(t)
		ctx := context.Background()

		_, err := b.Resolve(ctx, "does-not-exist")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
		_, err = b.Attach(ctx, "does-not-exist", record("a"))
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
		_, err = b.Update(ctx, "does-not-exist", record("a"), 0)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("attach then resolve", func(t *testing.T) {
		b := newBinding(t)
		ctx := context.Background()

		s, err := b.Create(ctx)
		require.NoError(t, err)

		rec := record("access-1")
		v, err := b.Attach(ctx, s.ID, rec)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)

		resolved, err := b.Resolve(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, resolved.HasCredentials())
		assert.Equal(t, uint64(1), resolved.Version)
		assert.Equal(t, "access-1", resolved.Record.AccessToken)
		assert.Equal(t, "refresh", resolved.Record.RefreshToken)
		assert.Equal(t, auth.Identity("sub-1"), resolved.Record.Identity)
		assert.True(t, rec.Expiry.Equal(resolved.Record.Expiry))
		assert.True(t, resolved.Authenticated(time.Now()))

		// re-attaching (a second login) always wins
		v, err = b.Attach(ctx, s.ID, record("access-2"))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), v)
	})

	t.Run("resolve returns snapshots", func(t *testing.T) {
		b := newBinding(t)
		ctx := context.Background()

		s, err := b.Create(ctx)
		require.NoError(t, err)
		_, err = b.Attach(ctx, s.ID, record("access-1"))
		require.NoError(t, err)

		first, err := b.Resolve(ctx, s.ID)
		require.NoError(t, err)
		first.Record.AccessToken = "mutated"

		second, err := b.Resolve(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "access-1", second.Record.AccessToken)
	})

	t.Run("update compares versions", func(t *testing.T) {
		b := newBinding(t)
		ctx := context.Background()

		s, err := b.Create(ctx)
		require.NoError(t, err)
		v1, err := b.Attach(ctx, s.ID, record("access-1"))
		require.NoError(t, err)

		v2, err := b.Update(ctx, s.ID, record("access-2"), v1)
		require.NoError(t, err)
		assert.Equal(t, v1+1, v2)

		// stale writer loses and does not clobber the newer record
		_, err = b.Update(ctx, s.ID, record("stale"), v1)
		assert.ErrorIs(t, err, session.ErrVersionConflict)

		resolved, err := b.Resolve(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "access-2", resolved.Record.AccessToken)
		assert.Equal(t, v2, resolved.Version)
	})

	t.Run("concurrent updates linearize", func(t *testing.T) {
		b := newBinding(t)
		ctx := context.Background()

		s, err := b.Create(ctx)
		require.NoError(t, err)
		v, err := b.Attach(ctx, s.ID, record("access-0"))
		require.NoError(t, err)

		const writers = 10
		var wg sync.WaitGroup
		results := make(chan error, writers)
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := b.Update(ctx, s.ID, record(fmt.Sprintf("access-%d", i+1)), v)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, session.ErrVersionConflict)
		}
		assert.Equal(t, 1, wins)

		resolved, err := b.Resolve(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, v+1, resolved.Version)
	})
}
