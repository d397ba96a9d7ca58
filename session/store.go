package session

import (
	"context"
	"fmt"
	"sync"
)

// Store persists sessions between requests.
type Store interface {
	// Create saves the session, keyed by its ID.
	Create(ctx context.Context, s *Session) error

	// Get returns the session for id, or ErrNoSession when it does not
	// exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes the session for id. Deleting an unknown id is not an
	// error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store. Expired sessions are evicted when
// read.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*Session{},
	}
}

// Create implements Store.Create.
func (s *MemoryStore) Create(ctx context.Context, sess *Session) error {
	const op = "session.(MemoryStore).Create"
	if sess == nil {
		return fmt.Errorf("%s: session is nil: %w", op, ErrInvalidParameter)
	}
	if sess.ID == "" {
		return fmt.Errorf("%s: session id is empty: %w", op, ErrInvalidParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// Get implements Store.Get, evicting the session if it has expired.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	const op = "session.(MemoryStore).Get"
	if id == "" {
		return nil, fmt.Errorf("%s: session id is empty: %w", op, ErrInvalidParameter)
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	if sess.IsExpired() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	return sess, nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
