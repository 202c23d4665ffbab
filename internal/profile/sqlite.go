package profile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/postforge/postforge/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the permissions used when creating the
// directory that holds the SQLite database file.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists profiles in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at the DSN path and
// applies migrations. The parent directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite profile store ready", "dsn", dsn)
	return &SQLiteStore{db: db}, nil
}

// Get returns the stored profile, or an empty one when absent.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (models.OrgProfile, error) {
	p := models.OrgProfile{UserID: userID}
	row := s.db.QueryRowContext(ctx,
		"SELECT name, activities, audience, website FROM org_profiles WHERE user_id = ?", userID)
	err := row.Scan(&p.Name, &p.Activities, &p.Audience, &p.Website)
	if err == sql.ErrNoRows {
		return p, nil
	}
	if err != nil {
		slog.Error("SQLiteStore failed to load profile", "error", err, "userID", userID)
		return p, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// Save stores or replaces the profile for its user.
func (s *SQLiteStore) Save(ctx context.Context, p models.OrgProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_profiles (user_id, name, activities, audience, website, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			activities = excluded.activities,
			audience = excluded.audience,
			website = excluded.website,
			updated_at = CURRENT_TIMESTAMP`,
		p.UserID, p.Name, p.Activities, p.Audience, p.Website)
	if err != nil {
		slog.Error("SQLiteStore failed to save profile", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
