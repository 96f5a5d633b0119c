package servicecontext

import (
	"context"
	"testing"
	"time"

	"github.com/dgellow/yt-front/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionID(t *testing.T) {
	t.Run("set and retrieve", func(t *testing.T) {
		ctx := WithSessionID(context.Background(), "session-1")

		id, ok := GetSessionID(ctx)
		assert.True(t, ok)
		assert.Equal(t, "session-1", id)
	})

	t.Run("not set", func(t *testing.T) {
		id, ok := GetSessionID(context.Background())
		assert.False(t, ok)
		assert.Empty(t, id)
	})

	t.Run("empty is not set", func(t *testing.T) {
		_, ok := GetSessionID(WithSessionID(context.Background(), ""))
		assert.False(t, ok)
	})
}

func TestCredentials(t *testing.T) {
	t.Run("set and retrieve", func(t *testing.T) {
		rec := &auth.TokenRecord{Identity: "sub-1", AccessToken: "access", Expiry: time.Now().Add(time.Hour)}
		ctx := WithCredentials(context.Background(), auth.NewCredentials("session-1", rec))

		creds, ok := GetCredentials(ctx)
		require.True(t, ok)
		assert.Equal(t, auth.Identity("sub-1"), creds.Identity)
		assert.Equal(t, "session-1", creds.SessionID)
		assert.Equal(t, "access", creds.AccessToken())
	})

	t.Run("not set", func(t *testing.T) {
		creds, ok := GetCredentials(context.Background())
		assert.False(t, ok)
		assert.Equal(t, auth.Identity(""), creds.Identity)
	})
}
