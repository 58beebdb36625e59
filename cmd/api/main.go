package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/ninjascan/internal/api"
	"github.com/timmy/ninjascan/internal/capture"
	"github.com/timmy/ninjascan/internal/config"
	"github.com/timmy/ninjascan/internal/logger"
	"github.com/timmy/ninjascan/internal/repository"
	"github.com/timmy/ninjascan/internal/screenshot"
	"github.com/timmy/ninjascan/internal/service"
	"github.com/timmy/ninjascan/internal/storage"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH overrides the ./configs lookup in deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()

	resolver, err := service.NewResolver(&cfg.Screenshot, cfg.Server.PublicURL, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize screenshot resolver")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	screenshotRepo := repository.NewScreenshotRepository(db)

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled {
		objectStorage, err = storage.NewStorage(&cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	var browser *capture.BrowserCapturer
	var renderer capture.Capturer
	if cfg.Browser.Enabled {
		browser = service.NewBrowserCapturer(&cfg.Browser, appLogger)
		renderer = browser
	}

	captureService := service.NewCaptureService(
		resolver,
		screenshotRepo,
		objectStorage,
		appLogger,
		&service.CaptureConfig{
			Workers:         cfg.Capture.Workers,
			Archive:         cfg.Capture.Archive,
			MaxArchiveBytes: cfg.Capture.MaxArchiveBytes,
			HTTPTimeout:     cfg.Screenshot.HTTPTimeout,
			UserAgent:       cfg.Screenshot.UserAgent,
			Timeout:         cfg.Capture.Timeout,
			Renderer:        renderer,
		},
	)

	sessions := screenshot.NewSessions(resolver, cfg.Screenshot.MaxSessions)

	router := api.SetupRouter(&api.Services{
		Resolver:       resolver,
		Sessions:       sessions,
		Capture:        captureService,
		ResolveTimeout: cfg.Screenshot.ResolveTimeout,
	}, &cfg.Server, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":      cfg.Server.Port,
			"mode":      cfg.Server.Mode,
			"providers": cfg.Screenshot.Providers,
			"archive":   cfg.Capture.Archive && objectStorage != nil,
			"browser":   cfg.Browser.Enabled,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// cancel in-flight session attempts before exit
	sessions.CloseAll()

	if browser != nil {
		if err := browser.Close(); err != nil {
			appLogger.WithError(err).Warn("Failed to close browser")
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	appLogger.Info("Server exited")
}
