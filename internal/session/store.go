package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the session persistence contract. Get creates an empty idle
// session when none exists; Put atomically replaces the stored session;
// Clear resets the session to idle without deleting the entry.
type Store interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
	Clear(ctx context.Context, userID string) error
}

// InMemoryStore keeps sessions for the lifetime of the process. Dialogue
// state is not meant to survive a restart, so this is the default backend.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Get returns a copy of the stored session, creating an idle one if absent.
func (s *InMemoryStore) Get(ctx context.Context, userID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		slog.Debug("InMemoryStore creating session", "userID", userID)
		return New(userID), nil
	}
	return sess.Clone(), nil
}

// Put replaces the stored session with a copy of sess.
func (s *InMemoryStore) Put(ctx context.Context, sess *Session) error {
	c := sess.Clone()
	c.UpdatedAt = time.Now()
	s.mu.Lock()
	s.sessions[sess.UserID] = c
	s.mu.Unlock()
	slog.Debug("InMemoryStore session saved", "userID", sess.UserID, "flow", sess.ActiveFlow, "step", sess.CurrentStep)
	return nil
}

// Clear resets the stored session to idle, preserving the group operator.
func (s *InMemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	cleared := New(userID)
	cleared.Operator = sess.Operator
	cleared.UpdatedAt = time.Now()
	s.sessions[userID] = cleared
	slog.Debug("InMemoryStore session cleared", "userID", userID)
	return nil
}
