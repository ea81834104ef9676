// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import (
	"context"
	"fmt"
)

// Status is a point-in-time snapshot of the queue for dashboards. Purely
// derived from the local store, no mutation.
type Status struct {
	Total    int  `json:"total"`    // undelivered records
	Retrying int  `json:"retrying"` // attempted at least once, budget remains
	Failed   int  `json:"failed"`   // abandoned (attempt budget exhausted)
	Online   bool `json:"online"`   // current connectivity state
}

// Status reports pending, retrying and abandoned counts plus connectivity.
func (q *Queue) Status(ctx context.Context) (*Status, error) {
	st := &Status{Online: q.conn.Online()}
	err := q.store.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN attempts > 0 AND attempts < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN attempts >= ? THEN 1 ELSE 0 END), 0)
		FROM _feedback_queue
		WHERE synced = 0
	`, maxAttempts, maxAttempts).Scan(&st.Total, &st.Retrying, &st.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue status: %w", err)
	}
	return st, nil
}
