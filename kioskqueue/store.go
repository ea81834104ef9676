// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Store is the durable local record store, keyed by record id. All writes are
// single-statement SQLite operations, so updates to one record are atomic and
// survive process restart (WAL mode).
type Store struct {
	db *sql.DB
}

// NewStore initializes the queue tables on db and returns the store.
func NewStore(db *sql.DB) (*Store, error) {
	if err := initializeDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Store{db: db}, nil
}

// initializeDatabase creates the queue metadata tables (private function)
func initializeDatabase(db *sql.DB) error {
	// Enable WAL mode so a crash mid-write never corrupts the queue
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	tables := []string{
		// Device info (one row)
		`CREATE TABLE IF NOT EXISTS _feedback_device (
			id        INTEGER PRIMARY KEY CHECK (id = 1),
			device_id TEXT NOT NULL                -- locally generated UUIDv4 (persisted)
		)`,

		// Pending queue (one row per submission)
		`CREATE TABLE IF NOT EXISTS _feedback_queue (
			id              TEXT PRIMARY KEY,      -- client-assigned UUID, sent as dedup token
			device_id       TEXT NOT NULL,
			payload         TEXT NOT NULL,         -- JSON feedback fields captured at submit time
			submitted_at    TEXT NOT NULL,         -- client timestamp, denormalized for retention scans
			synced          INTEGER NOT NULL DEFAULT 0,
			attempts        INTEGER NOT NULL DEFAULT 0,
			last_attempt_at TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_feedback_queue_synced ON _feedback_queue(synced)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create queue table: %w", err)
		}
	}

	return nil
}

// Save inserts a new record. The id must already be assigned by the caller;
// the store never generates identifiers. Returns ErrDuplicateKey if a record
// with the same id exists.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO _feedback_queue (id, device_id, payload, submitted_at, synced, attempts, last_attempt_at)
		VALUES (?, ?, ?, ?, 0, 0, NULL)
	`, rec.ID, rec.DeviceID, string(payload), formatTime(rec.Payload.Timestamp))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, rec.ID)
		}
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// GetPending returns a snapshot of all records with synced=0, in the order
// they were submitted. The snapshot is finite; records saved after the query
// completes are picked up by a later pass.
func (s *Store) GetPending(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, payload, synced, attempts, last_attempt_at
		FROM _feedback_queue
		WHERE synced = 0
		ORDER BY submitted_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending records: %w", err)
	}
	defer rows.Close()

	var pending []*Record
	for rows.Next() {
		var rec Record
		var payload string
		var synced int
		var lastAttempt sql.NullString

		if err := rows.Scan(&rec.ID, &rec.DeviceID, &payload, &synced, &rec.Attempts, &lastAttempt); err != nil {
			return nil, fmt.Errorf("failed to scan pending record: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload for %s: %w", rec.ID, err)
		}
		rec.Synced = synced != 0
		if lastAttempt.Valid {
			ts, err := parseTime(lastAttempt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse last_attempt_at for %s: %w", rec.ID, err)
			}
			rec.LastAttemptAt = &ts
		}
		pending = append(pending, &rec)
	}
	return pending, rows.Err()
}

// MarkAttempt increments attempts and sets last_attempt_at in a single
// UPDATE, so a crash between this write and the network call is recorded as
// a used attempt. Returns ErrNotFound if the id is absent.
func (s *Store) MarkAttempt(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE _feedback_queue
		SET attempts = attempts + 1, last_attempt_at = ?
		WHERE id = ?
	`, formatTime(now), id)
	if err != nil {
		return &PersistenceError{Op: "mark attempt", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// MarkSynced sets synced=1. Idempotent: marking an already-synced or
// already-removed record is a no-op, never an error.
func (s *Store) MarkSynced(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE _feedback_queue SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return &PersistenceError{Op: "mark synced", Err: err}
	}
	return nil
}

// DeleteSyncedBefore removes delivered records whose client timestamp is
// older than cutoff. Pending and abandoned records are never touched here
// regardless of age.
func (s *Store) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM _feedback_queue
		WHERE synced = 1 AND submitted_at < ?
	`, formatTime(cutoff))
	if err != nil {
		return 0, &PersistenceError{Op: "delete synced", Err: err}
	}
	return res.RowsAffected()
}

// Get returns a single record by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	var payload string
	var synced int
	var lastAttempt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, payload, synced, attempts, last_attempt_at
		FROM _feedback_queue WHERE id = ?
	`, id).Scan(&rec.ID, &rec.DeviceID, &payload, &synced, &rec.Attempts, &lastAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload for %s: %w", rec.ID, err)
	}
	rec.Synced = synced != 0
	if lastAttempt.Valid {
		ts, err := parseTime(lastAttempt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_attempt_at for %s: %w", rec.ID, err)
		}
		rec.LastAttemptAt = &ts
	}
	return &rec, nil
}

// Timestamps are stored as fixed-width RFC3339 UTC strings (millisecond
// fraction, same shape as SQLite's strftime('%Y-%m-%dT%H:%M:%fZ')) so
// lexicographic comparison in SQL matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
