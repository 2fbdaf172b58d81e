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

	"imgadapt/internal/core/domain"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS batch_status (
    batch_id   TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    processed  INTEGER NOT NULL,
    total      INTEGER NOT NULL,
    payload    TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

// SQLite upserts each record in a single statement.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Save(ctx context.Context, status domain.BatchStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batch_status (batch_id, status, processed, total, payload, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(batch_id) DO UPDATE SET
            status = excluded.status,
            processed = excluded.processed,
            total = excluded.total,
            payload = excluded.payload,
            updated_at = excluded.updated_at`,
		status.BatchID,
		string(status.Status),
		status.Processed,
		status.Total,
		string(payload),
		status.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert status %s: %w", status.BatchID, err)
	}

	return nil
}

func (s *SQLite) Load(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM batch_status WHERE batch_id = ?`, batchID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BatchStatus{}, domain.ErrBatchNotFound
	}
	if err != nil {
		return domain.BatchStatus{}, fmt.Errorf("load status %s: %w", batchID, err)
	}

	var status domain.BatchStatus
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return domain.BatchStatus{}, fmt.Errorf("decode status %s: %w", batchID, err)
	}

	return status, nil
}

func (s *SQLite) Delete(ctx context.Context, batchID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batch_status WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("delete status %s: %w", batchID, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
