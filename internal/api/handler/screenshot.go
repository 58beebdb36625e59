package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/ninjascan/internal/api/middleware"
	"github.com/timmy/ninjascan/internal/capture"
	"github.com/timmy/ninjascan/internal/screenshot"
	"github.com/timmy/ninjascan/internal/service"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ScreenshotHandler handles screenshot resolution and capture endpoints.
type ScreenshotHandler struct {
	resolver       *screenshot.Resolver
	capture        *service.CaptureService
	resolveTimeout time.Duration
}

// NewScreenshotHandler creates a new screenshot handler.
// Parameters:
//   - resolver: provider chain resolver.
//   - captureService: capture service for persisted screenshots.
//   - resolveTimeout: upper bound for blocking resolve calls; 0 disables it.
//
// Returns:
//   - *ScreenshotHandler: initialized handler.
func NewScreenshotHandler(resolver *screenshot.Resolver, captureService *service.CaptureService, resolveTimeout time.Duration) *ScreenshotHandler {
	return &ScreenshotHandler{
		resolver:       resolver,
		capture:        captureService,
		resolveTimeout: resolveTimeout,
	}
}

// ResolveRequest is the body of a resolve call.
type ResolveRequest struct {
	URL string `json:"url"`
}

// ResolveResponse is the consumer state plus details of the winning candidate.
type ResolveResponse struct {
	screenshot.State
	Status   screenshot.Status `json:"status"`
	Target   string            `json:"target,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Attempts int               `json:"attempts"`
}

// CaptureRequest is the body of a capture call.
type CaptureRequest struct {
	URL     string `json:"url" binding:"required"`
	Refresh bool   `json:"refresh"`
}

// BatchCaptureRequest is the body of a batch capture call.
type BatchCaptureRequest struct {
	URLs    []string `json:"urls" binding:"required,min=1,max=100"`
	Refresh bool     `json:"refresh"`
}

func (h *ScreenshotHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.resolveTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.resolveTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

// Resolve handles POST /api/v1/screenshots/resolve.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.resolver.Resolve(ctx, req.URL)
	if err != nil {
		writeCancelled(c, err)
		return
	}

	c.JSON(http.StatusOK, ResolveResponse{
		State:    result.State(),
		Status:   result.Status,
		Target:   result.Target,
		Provider: result.Provider,
		Attempts: result.Attempts,
	})
}

// Candidates handles GET /api/v1/screenshots/candidates.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) Candidates(c *gin.Context) {
	target, err := screenshot.Normalize(c.Query("url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'url' is required",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"target":      target.URL,
		"host":        target.Key(),
		"retry_delay": h.resolver.RetryDelay().String(),
		"candidates":  h.resolver.Candidates(target),
	})
}

// Capture handles POST /api/v1/screenshots/capture.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) Capture(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.capture.Capture(ctx, req.URL, &service.CaptureOptions{Refresh: req.Refresh})
	switch {
	case errors.Is(err, screenshot.ErrNoTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Field 'url' must not be blank"})
		return
	case errors.Is(err, screenshot.ErrSuperseded),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeCancelled(c, err)
		return
	case err != nil:
		middleware.GetLogger(c).WithError(err).Error("Capture failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to capture screenshot"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// RenderResponse is a page rendered in the local browser.
type RenderResponse struct {
	// Screenshot is a data URL of the JPEG image.
	Screenshot string    `json:"screenshot"`
	URL        string    `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
	ArchiveURL string    `json:"archive_url,omitempty"`
}

// Render handles GET /api/v1/screenshots/render?url=.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) Render(c *gin.Context) {
	outcome, err := h.capture.Render(c.Request.Context(), c.Query("url"))
	switch {
	case errors.Is(err, capture.ErrMissingURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL parameter is required"})
		return
	case errors.Is(err, capture.ErrInvalidURL):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid URL format"})
		return
	case errors.Is(err, service.ErrRenderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Browser capture is not enabled"})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeCancelled(c, err)
		return
	case err != nil:
		middleware.GetLogger(c).WithError(err).Error("Browser capture failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to capture screenshot",
			"details": err.Error(),
		})
		return
	}

	resp := RenderResponse{
		Screenshot: "data:" + outcome.ContentType + ";base64," + base64.StdEncoding.EncodeToString(outcome.Image),
		URL:        outcome.URL,
		Timestamp:  outcome.Timestamp,
	}
	if outcome.Screenshot != nil {
		resp.ArchiveURL = outcome.Screenshot.ArchiveURL
	}
	c.JSON(http.StatusOK, resp)
}

// CaptureBatch handles POST /api/v1/screenshots/batch.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) CaptureBatch(c *gin.Context) {
	var req BatchCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	stats := h.capture.CaptureBatch(c.Request.Context(), req.URLs, &service.CaptureOptions{Refresh: req.Refresh})
	c.JSON(http.StatusOK, stats)
}

// List handles GET /api/v1/screenshots.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	shots, total, err := h.capture.List(c.Request.Context(), limit, offset)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list screenshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list screenshots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"screenshots": shots,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// Get handles GET /api/v1/screenshots/:host.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) Get(c *gin.Context) {
	shot, err := h.capture.Get(c.Request.Context(), c.Param("host"))
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, screenshot.ErrNoTarget):
		c.JSON(http.StatusNotFound, gin.H{"error": "Screenshot not found"})
		return
	case err != nil:
		middleware.GetLogger(c).WithError(err).Error("Failed to get screenshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get screenshot"})
		return
	}

	c.JSON(http.StatusOK, shot)
}

// Image handles GET /api/v1/screenshots/:host/image.
// It streams the archived copy of the host's latest capture.
func (h *ScreenshotHandler) Image(c *gin.Context) {
	img, err := h.capture.OpenImage(c.Request.Context(), c.Param("host"))
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, screenshot.ErrNoTarget):
		c.JSON(http.StatusNotFound, gin.H{"error": "Archived image not found"})
		return
	case err != nil:
		middleware.GetLogger(c).WithError(err).Error("Failed to open archived image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open archived image"})
		return
	}
	defer img.Body.Close()

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, img.Size, contentType, img.Body, nil)
}

// Delete handles DELETE /api/v1/screenshots/:host.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ScreenshotHandler) Delete(c *gin.Context) {
	removed, err := h.capture.Forget(c.Request.Context(), c.Param("host"))
	if err != nil && !errors.Is(err, screenshot.ErrNoTarget) {
		middleware.GetLogger(c).WithError(err).Error("Failed to delete screenshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete screenshots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": removed})
}

// writeCancelled reports a resolve that did not settle before its context ended.
func writeCancelled(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Screenshot resolution timed out"})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Screenshot resolution cancelled"})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
