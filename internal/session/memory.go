package session

import (
	"context"
	"sync"

	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/crypto"
)

var _ Binding = (*MemoryBinding)(nil)

// MemoryBinding keeps sessions in process memory. Expired sessions are
// dropped when they are next touched.
type MemoryBinding struct {
	mu       sync.Mutex
	sessions map[string]*Session
	opts     options
}

// NewMemoryBinding creates an in-memory session binding
func NewMemoryBinding(opts ...Option) *MemoryBinding {
	return &MemoryBinding{
		sessions: make(map[string]*Session),
		opts:     buildOptions(opts),
	}
}

func (b *MemoryBinding) Create(ctx context.Context) (*Session, error) {
	id, err := crypto.GenerateSecureToken()
	if err != nil {
		return nil, err
	}
	now := b.opts.now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(b.opts.ttl),
	}

	b.mu.Lock()
	b.sessions[id] = s
	b.mu.Unlock()

	return snapshot(s), nil
}

func (b *MemoryBinding) Attach(ctx context.Context, id string, rec *auth.TokenRecord) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(id)
	if err != nil {
		return 0, err
	}
	return b.store(s, rec), nil
}

func (b *MemoryBinding) Resolve(ctx context.Context, id string) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	return snapshot(s), nil
}

func (b *MemoryBinding) Update(ctx context.Context, id string, rec *auth.TokenRecord, expectedVersion uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookup(id)
	if err != nil {
		return 0, err
	}
	if s.Version != expectedVersion {
		return 0, ErrVersionConflict
	}
	return b.store(s, rec), nil
}

func (b *MemoryBinding) Close() error {
	return nil
}

// lookup must be called with b.mu held
func (b *MemoryBinding) lookup(id string) (*Session, error) {
	s, ok := b.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !b.opts.now().Before(s.ExpiresAt) {
		delete(b.sessions, id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// store must be called with b.mu held
func (b *MemoryBinding) store(s *Session, rec *auth.TokenRecord) uint64 {
	s.Record = rec.Clone()
	s.Version++
	s.ExpiresAt = b.opts.now().Add(b.opts.ttl)
	return s.Version
}

func snapshot(s *Session) *Session {
	c := *s
	c.Record = s.Record.Clone()
	return &c
}
