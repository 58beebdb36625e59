package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/ninjascan/internal/api/middleware"
	"github.com/timmy/ninjascan/internal/placeholder"
)

// PlaceholderHandler renders the local placeholder image.
type PlaceholderHandler struct{}

// NewPlaceholderHandler creates a new placeholder handler.
func NewPlaceholderHandler() *PlaceholderHandler {
	return &PlaceholderHandler{}
}

// Render handles GET /api/v1/placeholder?w=&h=&text=.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes a PNG body).
func (h *PlaceholderHandler) Render(c *gin.Context) {
	opts := placeholder.Options{Text: c.Query("text")}

	var err error
	if opts.Width, err = dimension(c, "w"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'w' must be an integer"})
		return
	}
	if opts.Height, err = dimension(c, "h"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'h' must be an integer"})
		return
	}

	data, err := placeholder.EncodePNG(opts)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to render placeholder")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render placeholder"})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", data)
}

func dimension(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
