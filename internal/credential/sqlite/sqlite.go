// Package sqlite implements credential.Store on a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/michaelbrown/codetutor/internal/credential"

	_ "modernc.org/sqlite"
)

// Store implements credential.Store backed by a SQLite database.
type Store struct {
	db *sql.DB
}

var _ credential.Store = (*Store)(nil)

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context) ([]credential.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model_name, base_url, api_key FROM credentials ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var creds []credential.Credential
	for rows.Next() {
		var c credential.Credential
		if err := rows.Scan(&c.ModelName, &c.BaseURL, &c.APIKey); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// Upsert inserts a model or updates an existing one in place, keeping its
// position. Empty fields leave the stored value unchanged.
func (s *Store) Upsert(ctx context.Context, c credential.Credential) error {
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (model_name, base_url, api_key)
		VALUES (?, ?, ?)
		ON CONFLICT(model_name) DO UPDATE SET
			base_url   = COALESCE(NULLIF(excluded.base_url, ''), credentials.base_url),
			api_key    = COALESCE(NULLIF(excluded.api_key, ''), credentials.api_key),
			updated_at = datetime('now')`,
		c.ModelName, c.BaseURL, c.APIKey,
	)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, modelName string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE model_name = ?`, modelName)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", credential.ErrNotFound, modelName)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
