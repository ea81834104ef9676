// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// outboxRow is one claimed ingest event awaiting materialization.
type outboxRow struct {
	EventID  uuid.UUID
	Payload  []byte
	Attempts int
}

// outboxBatch is one transactional pass over the ingest outbox. Claimed rows
// stay locked until Commit or Rollback, so concurrent consumers never see the
// same row twice within a pass.
type outboxBatch interface {
	// Claim locks up to limit unprocessed rows in queue order.
	Claim(ctx context.Context, limit int) ([]outboxRow, error)
	// Materialize inserts the submission into the feedback table. Replays of
	// an already-materialized offline_id succeed as no-ops.
	Materialize(ctx context.Context, sub *Submission) error
	// MarkProcessed stamps a row as delivered.
	MarkProcessed(ctx context.Context, eventID uuid.UUID) error
	// Park stamps a row as terminally failed so it stops being claimed.
	Park(ctx context.Context, eventID uuid.UUID) error
	// BumpAttempts counts a failed delivery, leaving the row claimable.
	BumpAttempts(ctx context.Context, eventID uuid.UUID) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// beginOutboxBatch opens a transaction for one consumer pass.
func (s *Service) beginOutboxBatch(ctx context.Context) (outboxBatch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin outbox tx: %w", err)
	}
	return &pgOutboxBatch{tx: tx, service: s}, nil
}

type pgOutboxBatch struct {
	tx      pgx.Tx
	service *Service
}

func (b *pgOutboxBatch) Claim(ctx context.Context, limit int) ([]outboxRow, error) {
	rows, err := b.tx.Query(ctx, `
		SELECT event_id, payload, attempts
		FROM feedback_outbox
		WHERE processed_at IS NULL
		ORDER BY queued_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox rows: %w", err)
	}
	defer rows.Close()

	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.EventID, &row.Payload, &row.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

func (b *pgOutboxBatch) Materialize(ctx context.Context, sub *Submission) error {
	return b.service.materialize(ctx, b.tx, sub)
}

func (b *pgOutboxBatch) MarkProcessed(ctx context.Context, eventID uuid.UUID) error {
	_, err := b.tx.Exec(ctx, `
		UPDATE feedback_outbox
		SET processed_at = now(), attempts = attempts + 1
		WHERE event_id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark outbox row processed: %w", err)
	}
	return nil
}

func (b *pgOutboxBatch) Park(ctx context.Context, eventID uuid.UUID) error {
	_, err := b.tx.Exec(ctx, `
		UPDATE feedback_outbox
		SET processed_at = now(), failed = TRUE, attempts = attempts + 1
		WHERE event_id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to park outbox row: %w", err)
	}
	return nil
}

func (b *pgOutboxBatch) BumpAttempts(ctx context.Context, eventID uuid.UUID) error {
	_, err := b.tx.Exec(ctx, `
		UPDATE feedback_outbox SET attempts = attempts + 1 WHERE event_id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("failed to bump outbox attempts: %w", err)
	}
	return nil
}

func (b *pgOutboxBatch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *pgOutboxBatch) Rollback(ctx context.Context) error {
	return b.tx.Rollback(ctx)
}
