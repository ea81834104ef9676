// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Airport-Feedback/service-feedback/internal/auth"
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// Storage is what the HTTP layer needs from persistence. *Service satisfies
// it; tests substitute fakes.
type Storage interface {
	// InsertSubmission enqueues a submission, returning false for a
	// deduplicated replay.
	InsertSubmission(ctx context.Context, sub *Submission) (bool, error)
	Summary(ctx context.Context) (*Summary, error)
}

// HTTPHandlers provides the collector's HTTP surface.
type HTTPHandlers struct {
	storage  Storage
	auth     *DeviceAuth // nil disables device authentication
	validate *validatorv10.Validate
	logger   *slog.Logger
}

// NewHTTPHandlers creates the handler set. deviceAuth may be nil for open
// deployments (the original pipeline ran unauthenticated behind a gateway).
func NewHTTPHandlers(storage Storage, deviceAuth *DeviceAuth, logger *slog.Logger) *HTTPHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandlers{
		storage:  storage,
		auth:     deviceAuth,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes attaches the collector routes to r.
func (h *HTTPHandlers) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.handleHealth)
	r.GET("/api/feedback/summary", h.handleSummary)

	submit := r.Group("/")
	if h.auth != nil {
		submit.Use(h.auth.Middleware())
	}
	submit.POST("/api/feedback", h.handleSubmit)
}

// handleSubmit accepts one feedback submission for processing. The response
// is 202 for both fresh and replayed offline_ids: from the kiosk's point of
// view the submission is accepted either way.
func (h *HTTPHandlers) handleSubmit(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := bindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	// When device auth is on, the token is the authority on device identity.
	if deviceID, ok := auth.GetDeviceID(c.Request.Context()); ok && deviceID != req.DeviceID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "device_mismatch", "message": "device_id does not match the authenticated device",
		})
		return
	}

	ts, _ := time.Parse(time.RFC3339, req.Timestamp) // validated already

	sub := &Submission{
		OfflineID:   req.OfflineID,
		DeviceID:    req.DeviceID,
		Rating:      req.Rating,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Profession:  req.Profession,
		Comment:     req.Comment,
		SubmittedAt: ts,
	}

	inserted, err := h.storage.InsertSubmission(c.Request.Context(), sub)
	if err != nil {
		h.logger.Error("Failed to accept submission", "offline_id", req.OfflineID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "ingest_failed", "message": "Failed to accept feedback",
		})
		return
	}

	if inserted {
		h.logger.Info("Feedback accepted", "offline_id", req.OfflineID, "device_id", req.DeviceID)
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Feedback accepted for processing."})
}

// handleSummary serves the dashboard aggregation. Read-only; this is the
// only collector data the dashboard consumes.
func (h *HTTPHandlers) handleSummary(c *gin.Context) {
	summary, err := h.storage.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build feedback summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "summary_failed", "message": "Failed to build summary",
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *HTTPHandlers) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
