package servicecontext

import (
	"context"

	"github.com/dgellow/yt-front/internal/auth"
)

type contextKey string

const (
	sessionKey     contextKey = "session.id"
	credentialsKey contextKey = "auth.credentials"
)

// WithSessionID adds the browser session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// GetSessionID retrieves the browser session ID from context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey).(string)
	return id, ok && id != ""
}

// WithCredentials adds the request's validated credentials to the context
func WithCredentials(ctx context.Context, creds auth.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey, creds)
}

// GetCredentials retrieves the credentials placed by the authentication gate
func GetCredentials(ctx context.Context) (auth.Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey).(auth.Credentials)
	return creds, ok
}
