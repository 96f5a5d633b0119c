package session

import (
	"context"
	"errors"
	"time"

	"github.com/dgellow/yt-front/internal/auth"
)

// DefaultTTL is how long a session lives after its last write
const DefaultTTL = 24 * time.Hour

var (
	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found")

	// ErrVersionConflict is returned by Update when the session changed since it was read
	ErrVersionConflict = errors.New("session version conflict")
)

// Session is the server-side state behind a browser cookie. It is anonymous
// until a token record is attached.
type Session struct {
	ID        string            `json:"id"`
	Record    *auth.TokenRecord `json:"record,omitempty"`
	Version   uint64            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// HasCredentials reports whether tokens are attached
func (s *Session) HasCredentials() bool {
	return s.Record != nil
}

// Authenticated reports whether the attached tokens are usable at now, either
// directly or after a refresh.
func (s *Session) Authenticated(now time.Time) bool {
	if s.Record == nil {
		return false
	}
	return !s.Record.Expired(now) || s.Record.Refreshable()
}

// Binding maps opaque session IDs to token records. Implementations are safe
// for concurrent use and never hand out shared mutable state.
type Binding interface {
	// Create starts a new anonymous session
	Create(ctx context.Context) (*Session, error)

	// Attach binds rec to the session unconditionally and returns the new version
	Attach(ctx context.Context, id string, rec *auth.TokenRecord) (uint64, error)

	// Resolve returns a snapshot of the session
	Resolve(ctx context.Context, id string) (*Session, error)

	// Update replaces the record only if the stored version equals expectedVersion
	Update(ctx context.Context, id string, rec *auth.TokenRecord, expectedVersion uint64) (uint64, error)

	Close() error
}

type options struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures a Binding
type Option func(*options)

// WithTTL sets the session lifetime; non-positive values keep DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
