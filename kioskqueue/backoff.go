// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import "time"

// maxAttempts is the retry budget per record. A record that has consumed it
// is abandoned: excluded from every future pass but retained for reporting
// until cleanup.
const maxAttempts = 5

// retryEligible reports whether a record may be attempted at time now.
// First attempts are never delayed; after that the record waits
// 2^attempts seconds since its last attempt (1s, 2s, 4s, 8s, 16s), with no
// jitter and no cap beyond the attempt budget. Pure function, no side
// effects.
func retryEligible(rec *Record, now time.Time) bool {
	if rec.Attempts >= maxAttempts {
		return false
	}
	if rec.Attempts == 0 || rec.LastAttemptAt == nil {
		return true
	}
	delay := time.Duration(1<<uint(rec.Attempts)) * time.Second
	return now.Sub(*rec.LastAttemptAt) >= delay
}
