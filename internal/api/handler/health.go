package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	sessions SessionCounter
}

// SessionCounter reports the number of live consumer sessions.
type SessionCounter interface {
	Len() int
}

// NewHealthHandler creates a new health handler. sessions may be nil.
func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.sessions != nil {
		resp["sessions"] = h.sessions.Len()
	}
	c.JSON(http.StatusOK, resp)
}
