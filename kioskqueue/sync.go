// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import (
	"context"
	"errors"
	"time"
)

// SyncPass runs one synchronization pass over the current pending snapshot.
// Safe to invoke concurrently with itself and with no pending work.
//
// Per record: skip unless the backoff window has elapsed and the attempt
// budget remains; persist the attempt before the network call so a crash
// mid-delivery still counts as a used attempt; then deliver and mark synced
// on acceptance. A failed delivery leaves the record pending for a later
// pass. One record's failure never aborts the pass for the others.
func (q *Queue) SyncPass(ctx context.Context) error {
	return q.syncPassAt(ctx, q.now())
}

func (q *Queue) syncPassAt(ctx context.Context, now time.Time) error {
	// Connectivity is checked once per pass. Offline means no mutations at
	// all, not even attempt bookkeeping.
	if !q.conn.Online() {
		q.logger.Debug("Device is offline, skipping sync pass")
		return nil
	}

	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	pending, err := q.store.GetPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	q.logger.Debug("Starting sync pass", "pending", len(pending))

	for _, rec := range pending {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !retryEligible(rec, now) {
			continue
		}

		// Attempt bookkeeping is durable before the network call starts.
		if err := q.store.MarkAttempt(ctx, rec.ID, now); err != nil {
			if errors.Is(err, ErrNotFound) {
				// Removed by cleanup between snapshot and write.
				continue
			}
			q.logger.Error("Failed to record delivery attempt", "record_id", rec.ID, "error", err)
			continue
		}
		rec.Attempts++
		attemptAt := now
		rec.LastAttemptAt = &attemptAt

		if !q.sender.Send(ctx, rec) {
			q.logger.Debug("Delivery failed, will retry after backoff",
				"record_id", rec.ID, "attempts", rec.Attempts)
			continue
		}

		if err := q.store.MarkSynced(ctx, rec.ID); err != nil {
			// The collector has the record; redelivery on the next pass is
			// deduplicated by offline_id.
			q.logger.Error("Failed to mark record synced", "record_id", rec.ID, "error", err)
			continue
		}
		q.logger.Info("Feedback delivered", "record_id", rec.ID, "attempts", rec.Attempts)
	}
	return nil
}
