package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
)

// Ensure MemoryStorage implements required interfaces
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps credentials and audit events in process memory.
// Records are copied on the way in and out so callers never share state.
type MemoryStorage struct {
	credentials      map[auth.Identity]*auth.TokenRecord
	credentialsMutex sync.RWMutex
	events           []audit.Event
	eventsMutex      sync.RWMutex
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		credentials: make(map[auth.Identity]*auth.TokenRecord),
	}
}

// UpsertCredentials creates or replaces the record for identity
func (s *MemoryStorage) UpsertCredentials(ctx context.Context, identity auth.Identity, rec *auth.TokenRecord) error {
	if rec == nil {
		return fmt.Errorf("token record cannot be nil")
	}
	if identity == "" {
		return fmt.Errorf("identity cannot be empty")
	}

	s.credentialsMutex.Lock()
	defer s.credentialsMutex.Unlock()

	s.credentials[identity] = rec.Clone()
	return nil
}

// FindCredentials returns a copy of the record for identity
func (s *MemoryStorage) FindCredentials(ctx context.Context, identity auth.Identity) (*auth.TokenRecord, error) {
	s.credentialsMutex.RLock()
	defer s.credentialsMutex.RUnlock()

	rec, exists := s.credentials[identity]
	if !exists {
		return nil, ErrCredentialsNotFound
	}
	return rec.Clone(), nil
}

// RecordEvent appends an audit event
func (s *MemoryStorage) RecordEvent(ctx context.Context, event audit.Event) error {
	event.Details = maps.Clone(event.Details)

	s.eventsMutex.Lock()
	defer s.eventsMutex.Unlock()

	s.events = append(s.events, event)
	return nil
}

// Events returns the recorded audit events, oldest first
func (s *MemoryStorage) Events() []audit.Event {
	s.eventsMutex.RLock()
	defer s.eventsMutex.RUnlock()

	return slices.Clone(s.events)
}

// RecentEvents returns up to limit events for identity, newest first
func (s *MemoryStorage) RecentEvents(ctx context.Context, identity auth.Identity, limit int) ([]audit.Event, error) {
	s.eventsMutex.RLock()
	defer s.eventsMutex.RUnlock()

	var events []audit.Event
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if s.events[i].Identity == string(identity) {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

// Close is a no-op for memory storage
func (s *MemoryStorage) Close() error {
	return nil
}
