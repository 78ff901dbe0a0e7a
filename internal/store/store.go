package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/xArmad/reposter/internal/config"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database location.
func DefaultPath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "reposter.db"), nil
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		account_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		media_type TEXT NOT NULL,
		caption TEXT,
		taken_at DATETIME,
		media_url TEXT,
		thumbnail_url TEXT,
		local_path TEXT,
		fetched_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id, media_id)
	);

	CREATE TABLE IF NOT EXISTS seen (
		account_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		seen_at DATETIME NOT NULL,
		PRIMARY KEY (account_id, media_id)
	);

	CREATE TABLE IF NOT EXISTS auto_filters (
		account_id TEXT PRIMARY KEY,
		media_types TEXT,
		search TEXT,
		enabled BOOLEAN NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		caption_override TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS job_targets (
		job_id TEXT NOT NULL REFERENCES jobs(id),
		target TEXT NOT NULL,
		position INTEGER NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (job_id, target)
	);

	CREATE INDEX IF NOT EXISTS idx_posts_taken_at ON posts(taken_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
