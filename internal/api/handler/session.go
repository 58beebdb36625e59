package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/ninjascan/internal/screenshot"
)

// maxWait bounds long-poll requests on a session.
const maxWait = 30 * time.Second

// SessionHandler exposes consumer sessions: each one tracks a single target
// and its latest resolution state.
type SessionHandler struct {
	sessions *screenshot.Sessions
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *screenshot.Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SetTargetRequest is the body of a target change.
type SetTargetRequest struct {
	URL string `json:"url"`
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.sessions.Create()
	if errors.Is(err, screenshot.ErrTooManySessions) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many open sessions"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, session.Snapshot())
}

// SetTarget handles PUT /api/v1/sessions/:id/target. Any attempt still in
// flight for the session is superseded.
func (h *SessionHandler) SetTarget(c *gin.Context) {
	var req SetTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	session, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := session.Request(c.Request.Context(), req.URL); err != nil {
		if errors.Is(err, screenshot.ErrSessionClosed) {
			c.JSON(http.StatusGone, gin.H{"error": "Session closed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update session"})
		return
	}

	c.JSON(http.StatusAccepted, session.Snapshot())
}

// Get handles GET /api/v1/sessions/:id. With ?wait=<duration> it blocks
// until the session settles or the wait elapses, then returns the latest
// snapshot either way.
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	wait := time.Duration(0)
	if raw := c.Query("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'wait' must be a duration such as 2s"})
			return
		}
		wait = min(d, maxWait)
	}

	if wait == 0 {
		c.JSON(http.StatusOK, session.Snapshot())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	// a timed-out wait still reports the current (loading) snapshot
	snap, _ := session.Wait(ctx)
	c.JSON(http.StatusOK, snap)
}

// Delete handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) lookup(c *gin.Context) (*screenshot.Session, bool) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}
