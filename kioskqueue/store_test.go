package kioskqueue

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// In-memory databases are per-connection; keep the pool at one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(openTestDB(t))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func testRecord(id string, ts time.Time) *Record {
	return &Record{
		ID:       id,
		DeviceID: "device-1",
		Payload: FeedbackPayload{
			Rating:    4,
			Comment:   "great",
			Timestamp: ts,
		},
	}
}

func TestSaveAndGetPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, testRecord("rec-1", ts)); err != nil {
		t.Fatalf("save: %v", err)
	}

	pending, err := store.GetPending(ctx)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending record, got %d", len(pending))
	}

	rec := pending[0]
	if rec.ID != "rec-1" || rec.DeviceID != "device-1" {
		t.Errorf("unexpected identity: %q / %q", rec.ID, rec.DeviceID)
	}
	if rec.Synced || rec.Attempts != 0 || rec.LastAttemptAt != nil {
		t.Errorf("fresh record has unexpected sync state: %+v", rec)
	}
	if rec.Payload.Rating != 4 || rec.Payload.Comment != "great" {
		t.Errorf("payload not round-tripped: %+v", rec.Payload)
	}
	if !rec.Payload.Timestamp.Equal(ts) {
		t.Errorf("timestamp not round-tripped: %v", rec.Payload.Timestamp)
	}
}

func TestSaveDuplicateKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	if err := store.Save(ctx, testRecord("rec-1", ts)); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := store.Save(ctx, testRecord("rec-1", ts))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestMarkAttempt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, testRecord("rec-1", now)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.MarkAttempt(ctx, "rec-1", now); err != nil {
		t.Fatalf("mark attempt: %v", err)
	}

	rec, err := store.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Attempts != 1 {
		t.Errorf("expected attempts=1, got %d", rec.Attempts)
	}
	if rec.LastAttemptAt == nil || !rec.LastAttemptAt.Equal(now) {
		t.Errorf("expected last_attempt_at=%v, got %v", now, rec.LastAttemptAt)
	}

	// Counter and timestamp move together on every call.
	later := now.Add(5 * time.Second)
	if err := store.MarkAttempt(ctx, "rec-1", later); err != nil {
		t.Fatalf("second mark attempt: %v", err)
	}
	rec, _ = store.Get(ctx, "rec-1")
	if rec.Attempts != 2 || rec.LastAttemptAt == nil || !rec.LastAttemptAt.Equal(later) {
		t.Errorf("attempt bookkeeping out of step: attempts=%d last=%v", rec.Attempts, rec.LastAttemptAt)
	}
}

func TestMarkAttemptNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.MarkAttempt(context.Background(), "missing", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkSyncedIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("rec-1", time.Now().UTC())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.MarkSynced(ctx, "rec-1"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	// Twice on the same record, and once on a missing one: both no-ops.
	if err := store.MarkSynced(ctx, "rec-1"); err != nil {
		t.Fatalf("second mark synced: %v", err)
	}
	if err := store.MarkSynced(ctx, "missing"); err != nil {
		t.Fatalf("mark synced on missing record: %v", err)
	}

	rec, err := store.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.Synced {
		t.Error("record should be synced")
	}

	pending, err := store.GetPending(ctx)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("synced record still pending: %d", len(pending))
	}
}

func TestDeleteSyncedBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	// Synced, 8 days old: removed.
	if err := store.Save(ctx, testRecord("old-synced", now.Add(-8*24*time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.MarkSynced(ctx, "old-synced"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	// Synced, 6 days old: retained.
	if err := store.Save(ctx, testRecord("fresh-synced", now.Add(-6*24*time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.MarkSynced(ctx, "fresh-synced"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	// Pending, ancient: retained regardless of age.
	if err := store.Save(ctx, testRecord("old-pending", now.Add(-30*24*time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}

	deleted, err := store.DeleteSyncedBefore(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}

	if _, err := store.Get(ctx, "old-synced"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old synced record should be gone, got %v", err)
	}
	if _, err := store.Get(ctx, "fresh-synced"); err != nil {
		t.Errorf("fresh synced record should remain: %v", err)
	}
	if _, err := store.Get(ctx, "old-pending"); err != nil {
		t.Errorf("pending record should remain: %v", err)
	}
}

func TestEnsureDeviceID(t *testing.T) {
	db := openTestDB(t)
	if _, err := NewStore(db); err != nil {
		t.Fatalf("new store: %v", err)
	}

	first, err := EnsureDeviceID(db)
	if err != nil {
		t.Fatalf("ensure device id: %v", err)
	}
	if first == "" {
		t.Fatal("device id should not be empty")
	}

	second, err := EnsureDeviceID(db)
	if err != nil {
		t.Fatalf("second ensure device id: %v", err)
	}
	if second != first {
		t.Errorf("device id not stable: %q then %q", first, second)
	}
}
