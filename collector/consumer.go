// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Consumer drains the ingest outbox into the feedback table. Delivery is
// at-least-once: a crash between materializing and marking the outbox row
// redelivers it, and the unique index on feedback.offline_id absorbs the
// replay. Rows that keep failing are parked as failed after the configured
// budget instead of blocking the queue.
type Consumer struct {
	begin  func(ctx context.Context) (outboxBatch, error)
	config *ServiceConfig
	logger *slog.Logger
}

// NewConsumer creates a consumer over the service's outbox.
func NewConsumer(service *Service) *Consumer {
	return &Consumer{
		begin:  service.beginOutboxBatch,
		config: service.config,
		logger: service.logger,
	}
}

// Run polls the outbox until ctx is cancelled. Transient database errors
// back off exponentially up to the idle interval.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := 200 * time.Millisecond
	for {
		processed, err := c.ProcessBatch(ctx)
		switch {
		case err != nil:
			c.logger.Warn("Outbox batch failed", "error", err)
			if serr := sleepWithContext(ctx, backoff); serr != nil {
				return serr
			}
			backoff *= 2
			if backoff > c.config.ConsumerInterval {
				backoff = c.config.ConsumerInterval
			}
		case processed == 0:
			backoff = 200 * time.Millisecond
			if serr := sleepWithContext(ctx, c.config.ConsumerInterval); serr != nil {
				return serr
			}
		default:
			backoff = 200 * time.Millisecond
			// Drain eagerly while there is work.
		}
	}
}

// ProcessBatch claims one batch of unprocessed outbox rows and materializes
// them. Returns the number of rows handled (including parked failures).
//
// Failures are isolated per row: an undecodable payload parks immediately, a
// persistent materialization error parks once the row's attempt budget is
// spent, and a retryable database error unwinds the whole batch so the next
// pass redelivers it intact.
func (c *Consumer) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := c.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer batch.Rollback(ctx)

	rows, err := batch.Claim(ctx, c.config.ConsumerBatchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	handled := 0
	for _, row := range rows {
		var sub Submission
		if err := json.Unmarshal(row.Payload, &sub); err != nil {
			// Undecodable payloads can never succeed; park immediately.
			c.logger.Error("Parking undecodable outbox row", "event_id", row.EventID, "error", err)
			if perr := batch.Park(ctx, row.EventID); perr != nil {
				return handled, perr
			}
			handled++
			continue
		}

		if err := batch.Materialize(ctx, &sub); err != nil {
			if isRetryablePGError(err) {
				return handled, err
			}
			if row.Attempts+1 >= c.config.MaxDeliveryFailures {
				c.logger.Error("Parking poison outbox row",
					"event_id", row.EventID, "offline_id", sub.OfflineID, "attempts", row.Attempts+1, "error", err)
				if perr := batch.Park(ctx, row.EventID); perr != nil {
					return handled, perr
				}
			} else {
				if uerr := batch.BumpAttempts(ctx, row.EventID); uerr != nil {
					return handled, uerr
				}
				c.logger.Warn("Outbox row failed, will retry",
					"event_id", row.EventID, "offline_id", sub.OfflineID, "attempts", row.Attempts+1, "error", err)
			}
			handled++
			continue
		}

		if err := batch.MarkProcessed(ctx, row.EventID); err != nil {
			return handled, err
		}
		handled++
	}

	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}
	c.logger.Debug("Outbox batch processed", "count", handled)
	return handled, nil
}
