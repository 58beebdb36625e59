package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/ninjascan/internal/api/handler"
	"github.com/timmy/ninjascan/internal/api/middleware"
	"github.com/timmy/ninjascan/internal/config"
	"github.com/timmy/ninjascan/internal/logger"
	"github.com/timmy/ninjascan/internal/screenshot"
	"github.com/timmy/ninjascan/internal/service"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Resolver       *screenshot.Resolver
	Sessions       *screenshot.Sessions
	Capture        *service.CaptureService
	ResolveTimeout time.Duration
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(svc.Sessions)
	screenshotHandler := handler.NewScreenshotHandler(svc.Resolver, svc.Capture, svc.ResolveTimeout)
	sessionHandler := handler.NewSessionHandler(svc.Sessions)
	placeholderHandler := handler.NewPlaceholderHandler()

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Screenshots
		shots := v1.Group("/screenshots")
		shots.POST("/resolve", screenshotHandler.Resolve)
		shots.GET("/candidates", screenshotHandler.Candidates)
		shots.GET("/render", screenshotHandler.Render)
		shots.POST("/capture", screenshotHandler.Capture)
		shots.POST("/batch", screenshotHandler.CaptureBatch)
		shots.GET("", screenshotHandler.List)
		shots.GET("/:host", screenshotHandler.Get)
		shots.GET("/:host/image", screenshotHandler.Image)
		shots.DELETE("/:host", screenshotHandler.Delete)

		// Sessions
		sessions := v1.Group("/sessions")
		sessions.POST("", sessionHandler.Create)
		sessions.PUT("/:id/target", sessionHandler.SetTarget)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.DELETE("/:id", sessionHandler.Delete)

		// Placeholder
		v1.GET("/placeholder", placeholderHandler.Render)
	}

	return r
}
