package profile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/postforge/postforge/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL using the DSN and applies
// migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres profile store ready")
	return &PostgresStore{db: db}, nil
}

// Get returns the stored profile, or an empty one when absent.
func (s *PostgresStore) Get(ctx context.Context, userID string) (models.OrgProfile, error) {
	p := models.OrgProfile{UserID: userID}
	row := s.db.QueryRowContext(ctx,
		"SELECT name, activities, audience, website FROM org_profiles WHERE user_id = $1", userID)
	err := row.Scan(&p.Name, &p.Activities, &p.Audience, &p.Website)
	if err == sql.ErrNoRows {
		return p, nil
	}
	if err != nil {
		slog.Error("PostgresStore failed to load profile", "error", err, "userID", userID)
		return p, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// Save stores or replaces the profile for its user.
func (s *PostgresStore) Save(ctx context.Context, p models.OrgProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_profiles (user_id, name, activities, audience, website, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			activities = EXCLUDED.activities,
			audience = EXCLUDED.audience,
			website = EXCLUDED.website,
			updated_at = NOW()`,
		p.UserID, p.Name, p.Activities, p.Audience, p.Website)
	if err != nil {
		slog.Error("PostgresStore failed to save profile", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
