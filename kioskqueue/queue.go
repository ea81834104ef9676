// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Config holds configuration for the feedback queue.
type Config struct {
	SyncInterval    time.Duration // periodic sync pass interval, e.g. 30s
	RetentionWindow time.Duration // how long delivered records are kept locally
	CleanupInterval time.Duration // how often retention cleanup runs
}

// DefaultConfig returns the configuration used by kiosk deployments.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:    30 * time.Second,
		RetentionWindow: 7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// Queue manages the local durable feedback queue and its synchronization
// with the collector.
type Queue struct {
	DeviceID string

	store   *Store
	sender  Sender
	conn    Connectivity
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
	writeMu sync.Mutex // serialize passes to keep SQLite contention bounded

	startOnce sync.Once
	triggered sync.WaitGroup // in-flight triggered passes, drained on Close
}

// NewQueue initializes the local store on db, ensures a device identity, and
// returns a queue delivering through sender. conn may be nil when the host
// has no connectivity signal to wire in.
func NewQueue(db *sql.DB, sender Sender, conn Connectivity, config *Config) (*Queue, error) {
	if config == nil {
		config = DefaultConfig()
	}

	store, err := NewStore(db)
	if err != nil {
		return nil, err
	}

	deviceID, err := EnsureDeviceID(db)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure device id: %w", err)
	}

	if conn == nil {
		conn = alwaysOnline{}
	}

	return &Queue{
		DeviceID: deviceID,
		store:    store,
		sender:   sender,
		conn:     conn,
		config:   config,
		logger:   slog.Default(),
		now:      time.Now,
	}, nil
}

// Store exposes the underlying record store, mainly for inspection by hosts
// and tests. Mutations outside Submit and the sync pass are not supported.
func (q *Queue) Store() *Store { return q.store }

// Submit durably saves payload and returns the assigned record id. The
// record is safe once Submit returns, whether or not the collector is
// reachable; a sync pass is then triggered asynchronously. A zero payload
// timestamp is stamped with the current time.
func (q *Queue) Submit(ctx context.Context, payload FeedbackPayload) (string, error) {
	if payload.Timestamp.IsZero() {
		payload.Timestamp = q.now().UTC()
	}

	rec := &Record{
		ID:       uuid.New().String(),
		DeviceID: q.DeviceID,
		Payload:  payload,
	}
	if err := q.store.Save(ctx, rec); err != nil {
		return "", err
	}
	q.logger.Debug("Feedback saved locally", "record_id", rec.ID)

	// Overlapping passes are tolerated, so a plain goroutine suffices.
	q.triggerPass("post-save")

	return rec.ID, nil
}

// NotifyOnline is the hook for connectivity transitions: hosts call it when
// the network comes back, and a sync pass runs immediately instead of
// waiting for the next periodic tick.
func (q *Queue) NotifyOnline() {
	q.triggerPass("connectivity")
}

func (q *Queue) triggerPass(reason string) {
	q.triggered.Add(1)
	go func() {
		defer q.triggered.Done()
		if err := q.SyncPass(context.Background()); err != nil {
			q.logger.Warn("Triggered sync pass failed", "reason", reason, "error", err)
		}
	}()
}

// Close waits for triggered passes to drain. Periodic loops stop through the
// context passed to Start.
func (q *Queue) Close() {
	q.triggered.Wait()
}

// Start launches the periodic sync and retention loops. They stop when ctx
// is cancelled. Start is idempotent.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		go q.syncLoop(ctx)
		go q.cleanupLoop(ctx)
	})
}

func (q *Queue) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(q.config.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.SyncPass(ctx); err != nil {
				q.logger.Warn("Periodic sync pass failed", "error", err)
			}
		}
	}
}

func (q *Queue) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(q.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := q.Cleanup(ctx); err != nil {
				q.logger.Warn("Retention cleanup failed", "error", err)
			}
		}
	}
}

// Cleanup deletes delivered records older than the retention window and
// returns how many were removed. Pending and abandoned records are never
// deleted here.
func (q *Queue) Cleanup(ctx context.Context) (int64, error) {
	cutoff := q.now().Add(-q.config.RetentionWindow)
	n, err := q.store.DeleteSyncedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Info("Removed delivered records past retention", "count", n)
	}
	return n, nil
}
