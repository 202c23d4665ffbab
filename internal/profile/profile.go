// Package profile persists organization profiles collected by the intake
// flow. Backends: in-memory (tests, ephemeral runs), SQLite (the default),
// and PostgreSQL.
package profile

import (
	"context"
	"strings"
	"sync"

	"github.com/postforge/postforge/internal/models"
)

// Store is the organization-profile persistence contract. Get returns an
// empty profile (not an error) when none was saved yet.
type Store interface {
	Get(ctx context.Context, userID string) (models.OrgProfile, error)
	Save(ctx context.Context, p models.OrgProfile) error
}

// Opts holds configuration for database-backed stores.
type Opts struct {
	DSN string
}

// Option configures a database-backed store.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-looking DSNs and
// "sqlite" otherwise, so callers can pick a backend from one setting.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps profiles for the lifetime of the process.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.OrgProfile
}

// NewInMemoryStore creates an empty in-memory profile store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]models.OrgProfile)}
}

// Get returns the stored profile, or an empty one when absent.
func (s *InMemoryStore) Get(ctx context.Context, userID string) (models.OrgProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.OrgProfile{UserID: userID}, nil
	}
	return p, nil
}

// Save stores or replaces the profile for its user.
func (s *InMemoryStore) Save(ctx context.Context, p models.OrgProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}
