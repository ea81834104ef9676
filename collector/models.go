// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package collector implements the remote side of the feedback pipeline:
// the HTTP ingestion endpoint kiosks deliver to, a Postgres-backed outbox
// that decouples ingestion from materialization, the consumer that drains
// the outbox into the feedback table, and the dashboard summary reads.
//
// Ingestion is idempotent: every submission carries the client-assigned
// offline_id, and a redelivered submission is accepted without creating a
// second row. This is what lets kiosks retry freely with at-least-once
// semantics.
package collector

import (
	"time"
)

// SubmitFeedbackRequest is the body of POST /api/feedback. Field names match
// what kiosks send (see kioskqueue's wire format).
type SubmitFeedbackRequest struct {
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Name       string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Profession string `json:"profession,omitempty" validate:"omitempty,max=200"`
	Comment    string `json:"comment,omitempty" validate:"omitempty,max=4000"`
	Timestamp  string `json:"timestamp" validate:"required"`
	DeviceID   string `json:"device_id" validate:"required"`
	OfflineID  string `json:"offline_id" validate:"required"`
}

// Submission is one accepted feedback submission on its way into the
// feedback table.
type Submission struct {
	OfflineID   string    `json:"offline_id"`
	DeviceID    string    `json:"device_id"`
	Rating      int       `json:"rating"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Profession  string    `json:"profession,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FeedbackItem is one stored feedback row as returned by the summary API.
type FeedbackItem struct {
	OfflineID   string    `json:"offline_id"`
	DeviceID    string    `json:"device_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Summary is the read-only dashboard aggregation.
type Summary struct {
	Total         int64          `json:"total"`
	AverageRating float64        `json:"average_rating"`
	RatingCounts  map[int]int64  `json:"rating_counts"`
	DeviceCount   int64          `json:"device_count"`
	Recent        []FeedbackItem `json:"recent"`
}
