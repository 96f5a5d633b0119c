package storage

import (
	"context"
	"errors"

	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
)

// ErrCredentialsNotFound is returned when no record exists for an identity
var ErrCredentialsNotFound = errors.New("credentials not found")

// Storage combines all storage capabilities needed by yt-front
type Storage interface {
	// Credential store, one token record per identity
	auth.CredentialStore

	// Audit event log
	audit.Sink
	RecentEvents(ctx context.Context, identity auth.Identity, limit int) ([]audit.Event, error)

	Close() error
}
