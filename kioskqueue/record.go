// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package kioskqueue implements the offline-first feedback queue used by
// kiosk devices. Submissions are written to a local SQLite database before
// any network activity, then delivered to the collector with at-least-once
// semantics: every record carries a client-assigned id the collector may use
// for deduplication, and failed deliveries are retried with exponential
// backoff until the attempt budget is exhausted.
package kioskqueue

import (
	"time"
)

// FeedbackPayload holds the caller-supplied feedback fields. The queue
// treats it as opaque beyond JSON encoding; the collector owns its meaning.
type FeedbackPayload struct {
	Rating     int       `json:"rating"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Profession string    `json:"profession,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Record is a single feedback submission tracked through its local-to-remote
// lifecycle. Records are created once, mutated only by the sync pass
// (attempt bookkeeping and the synced flag), and removed only by retention
// cleanup after successful delivery.
type Record struct {
	ID            string // client-assigned UUID, local primary key and remote dedup token
	DeviceID      string // stable per-device identifier
	Payload       FeedbackPayload
	Synced        bool       // set exactly once, on confirmed delivery
	Attempts      int        // incremented before each delivery attempt
	LastAttemptAt *time.Time // set together with Attempts
}
