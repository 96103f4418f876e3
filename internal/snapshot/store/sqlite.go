package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zappabad/stocksim/internal/snapshot"
)

// SQLiteStore keeps the record set in a SQLite database, one row per record
// in export order.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer; the driver serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS snapshot_records (
			seq INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL,
			saved_at DATETIME NOT NULL
		);`,
	}
	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces the stored record set in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, recs []snapshot.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_records (seq, kind, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range recs {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, string(r.Kind), string(payload)); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	query := `
		INSERT INTO snapshot_meta (id, version, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version=excluded.version, saved_at=excluded.saved_at
	`
	if _, err := tx.ExecContext(ctx, query, snapshot.Version, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]snapshot.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, payload FROM snapshot_records ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []snapshot.Record
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, err
		}
		var r snapshot.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", snapshot.ErrCorruptSnapshot, len(recs), err)
		}
		if string(r.Kind) != kind {
			return nil, fmt.Errorf("%w: row %d: kind %q does not match payload", snapshot.ErrCorruptSnapshot, len(recs), kind)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoSnapshot
	}
	return recs, nil
}

// SavedAt returns when the stored set was written.
func (s *SQLiteStore) SavedAt(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM snapshot_meta WHERE id = 1`).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrNoSnapshot
	}
	return t, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
