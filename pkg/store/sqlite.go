package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/types"
)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	key        TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

const upsertDocument = `
INSERT INTO documents (key, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`

// SQLiteStore keeps documents as JSON text rows in a single table.
// Each write is one statement, so readers see either the old or the new body.
type SQLiteStore struct {
	db  *sql.DB
	log *logging.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(ctx context.Context, path string, log *logging.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating db dir: %w", types.ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", types.ErrStorage, path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createDocumentsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", types.ErrStorage, err)
	}

	return &SQLiteStore{
		db:  db,
		log: log.WithComponent("sqlite-store"),
	}, nil
}

// Read decodes the stored body into dst. A missing row leaves dst as is.
func (s *SQLiteStore) Read(ctx context.Context, key string, dst any) error {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", types.ErrStorage, key, err)
	}

	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", types.ErrStorage, key, err)
	}
	return nil
}

// Write replaces the stored body for key.
func (s *SQLiteStore) Write(ctx context.Context, key string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", types.ErrStorage, key, err)
	}

	if _, err := s.db.ExecContext(ctx, upsertDocument, key, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("%w: writing %s: %w", types.ErrStorage, key, err)
	}

	s.log.Debug("document written", "key", key, "bytes", len(data))
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ interfaces.DocumentStore = (*SQLiteStore)(nil)
