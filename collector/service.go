// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ServiceConfig holds configuration for the collector service.
type ServiceConfig struct {
	AppName             string        // connection tracking name
	ConsumerBatchSize   int           // outbox rows claimed per consumer cycle
	ConsumerInterval    time.Duration // idle poll interval for the consumer
	MaxDeliveryFailures int           // outbox attempts before a row is parked as failed
	RecentLimit         int           // rows returned in the summary's recent list
}

// Service provides collector-side persistence: outbox ingestion, outbox
// draining, and dashboard reads. It owns schema initialization.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	config *ServiceConfig
}

// NewService creates a collector service on an existing pool and applies the
// idempotent schema migrations.
func NewService(ctx context.Context, pool *pgxpool.Pool, config *ServiceConfig, logger *slog.Logger) (*Service, error) {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.AppName == "" {
		config.AppName = "service-feedback"
	}
	if config.ConsumerBatchSize <= 0 {
		config.ConsumerBatchSize = 100
	}
	if config.ConsumerInterval <= 0 {
		config.ConsumerInterval = 2 * time.Second
	}
	if config.MaxDeliveryFailures <= 0 {
		config.MaxDeliveryFailures = 10
	}
	if config.RecentLimit <= 0 {
		config.RecentLimit = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{pool: pool, logger: logger, config: config}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize collector schema: %w", err)
	}
	return s, nil
}

// InsertSubmission appends a submission to the ingest outbox. Returns false
// when the offline_id was seen before; the duplicate is dropped and the
// original acceptance stands. The outbox row survives processing, so dedup
// holds even for submissions redelivered long after materialization.
func (s *Service) InsertSubmission(ctx context.Context, sub *Submission) (bool, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("failed to encode submission: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO feedback_outbox (event_id, offline_id, device_id, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (offline_id) DO NOTHING
	`, uuid.New(), sub.OfflineID, sub.DeviceID, payload)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue submission: %w", err)
	}

	inserted := tag.RowsAffected() > 0
	if !inserted {
		s.logger.Debug("Duplicate submission dropped", "offline_id", sub.OfflineID, "device_id", sub.DeviceID)
	}
	return inserted, nil
}

// Summary aggregates the materialized feedback table for the dashboard.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	summary := &Summary{RatingCounts: make(map[int]int64)}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(rating), 0), COUNT(DISTINCT device_id)
		FROM feedback
	`).Scan(&summary.Total, &summary.AverageRating, &summary.DeviceCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT rating, COUNT(*) FROM feedback GROUP BY rating`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating histogram: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rating int
		var count int64
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rating count: %w", err)
		}
		summary.RatingCounts[rating] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := s.pool.Query(ctx, `
		SELECT offline_id, device_id, rating, COALESCE(comment, ''), submitted_at
		FROM feedback
		ORDER BY submitted_at DESC
		LIMIT $1
	`, s.config.RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent feedback: %w", err)
	}
	defer recent.Close()
	for recent.Next() {
		var item FeedbackItem
		if err := recent.Scan(&item.OfflineID, &item.DeviceID, &item.Rating, &item.Comment, &item.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent feedback: %w", err)
		}
		summary.Recent = append(summary.Recent, item)
	}
	return summary, recent.Err()
}

// materialize inserts one submission into the feedback table inside tx.
// Idempotent through the unique index on offline_id.
func (s *Service) materialize(ctx context.Context, tx pgx.Tx, sub *Submission) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO feedback (offline_id, device_id, rating, name, email, phone, profession, comment, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (offline_id) DO NOTHING
	`, sub.OfflineID, sub.DeviceID, sub.Rating,
		nullable(sub.Name), nullable(sub.Email), nullable(sub.Phone),
		nullable(sub.Profession), nullable(sub.Comment), sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to materialize feedback %s: %w", sub.OfflineID, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
