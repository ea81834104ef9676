// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package kioskqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Sender performs one delivery attempt of one record. Implementations must
// report any failure (transport error, timeout, non-2xx response) as false
// and never panic or hang past their own deadline; the sync pass interprets
// false as "retry later".
type Sender interface {
	Send(ctx context.Context, rec *Record) bool
}

// submitRequest is the wire format of one delivery attempt. The offline_id
// field carries the record's own id so the collector can deduplicate
// redelivered submissions.
type submitRequest struct {
	Rating     int    `json:"rating"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Profession string `json:"profession,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Timestamp  string `json:"timestamp"`
	DeviceID   string `json:"device_id"`
	OfflineID  string `json:"offline_id"`
}

// HTTPSender delivers records to the collector's ingestion endpoint.
// Stateless aside from the HTTP client.
type HTTPSender struct {
	BaseURL string
	Token   func(context.Context) (string, error) // optional, returns a device JWT
	HTTP    *http.Client
	logger  *slog.Logger
}

// NewHTTPSender creates a sender posting to baseURL + "/api/feedback".
// tok may be nil when the collector runs without device auth.
func NewHTTPSender(baseURL string, tok func(context.Context) (string, error)) *HTTPSender {
	return &HTTPSender{
		BaseURL: baseURL,
		Token:   tok,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
}

// Send performs a single delivery attempt. Any 2xx response counts as
// accepted; everything else, including transport failures, resolves to
// false within the HTTP client's timeout.
func (s *HTTPSender) Send(ctx context.Context, rec *Record) bool {
	body, err := json.Marshal(submitRequest{
		Rating:     rec.Payload.Rating,
		Name:       rec.Payload.Name,
		Email:      rec.Payload.Email,
		Phone:      rec.Payload.Phone,
		Profession: rec.Payload.Profession,
		Comment:    rec.Payload.Comment,
		Timestamp:  rec.Payload.Timestamp.UTC().Format(time.RFC3339Nano),
		DeviceID:   rec.DeviceID,
		OfflineID:  rec.ID,
	})
	if err != nil {
		s.logger.Error("Failed to encode submit request", "record_id", rec.ID, "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/feedback", bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Failed to build submit request", "record_id", rec.ID, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	if s.Token != nil {
		token, err := s.Token(ctx)
		if err != nil {
			s.logger.Warn("Failed to obtain device token", "record_id", rec.ID, "error", err)
			return false
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		s.logger.Debug("Delivery attempt failed", "record_id", rec.ID, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Debug("Collector rejected delivery", "record_id", rec.ID, "status", resp.StatusCode)
		return false
	}
	return true
}
