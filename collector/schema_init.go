// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"fmt"
)

// initSchema applies the collector DDL. Every statement is idempotent, so
// startup is safe to repeat and concurrent instances converge.
func (s *Service) initSchema(ctx context.Context) error {
	statements := []string{
		// Materialized feedback, one row per accepted submission. The unique
		// index on offline_id is the idempotency anchor for the pipeline.
		`CREATE TABLE IF NOT EXISTS feedback (
			id           BIGSERIAL PRIMARY KEY,
			offline_id   TEXT NOT NULL,
			device_id    TEXT NOT NULL,
			rating       SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			name         TEXT,
			email        TEXT,
			phone        TEXT,
			profession   TEXT,
			comment      TEXT,
			submitted_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_feedback_offline_id ON feedback (offline_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_device_id ON feedback (device_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_submitted_at ON feedback (submitted_at)`,

		// Ingest outbox. Rows are kept after processing so resubmitted
		// offline_ids keep deduplicating at the ingestion edge.
		`CREATE TABLE IF NOT EXISTS feedback_outbox (
			event_id     UUID PRIMARY KEY,
			offline_id   TEXT NOT NULL,
			device_id    TEXT NOT NULL,
			payload      JSONB NOT NULL,
			queued_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			processed_at TIMESTAMPTZ,
			failed       BOOLEAN NOT NULL DEFAULT FALSE,
			attempts     INT NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_feedback_outbox_offline_id ON feedback_outbox (offline_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_outbox_unprocessed
			ON feedback_outbox (queued_at) WHERE processed_at IS NULL`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
