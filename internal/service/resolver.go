package service

import (
	"fmt"

	"github.com/timmy/ninjascan/internal/capture"
	"github.com/timmy/ninjascan/internal/config"
	"github.com/timmy/ninjascan/internal/logger"
	"github.com/timmy/ninjascan/internal/screenshot"
)

// NewResolver builds the screenshot resolver from configuration, backed by
// an HTTP prober.
// Parameters:
//   - cfg: screenshot configuration (provider order, sizes, timings).
//   - publicURL: this service's public base URL, used by the local placeholder.
//   - log: logger for resolution events.
//
// Returns:
//   - *screenshot.Resolver: configured resolver.
//   - error: non-nil for unknown providers or invalid timings.
func NewResolver(cfg *config.ScreenshotConfig, publicURL string, log *logger.Logger) (*screenshot.Resolver, error) {
	providers, err := screenshot.SelectProviders(cfg.Providers, screenshot.ProviderOptions{
		Width:                cfg.Width,
		Height:               cfg.Height,
		ScreenshotMachineKey: cfg.ScreenshotMachineKey,
		PublicBaseURL:        publicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select providers: %w", err)
	}

	prober := screenshot.NewHTTPProber(&screenshot.HTTPProberConfig{
		Timeout:       cfg.HTTPTimeout,
		UserAgent:     cfg.UserAgent,
		MaxImageBytes: cfg.MaxImageBytes,
	})

	return screenshot.NewResolver(screenshot.Options{
		Providers:    providers,
		Prober:       prober,
		RetryDelay:   cfg.RetryDelay,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       log,
	})
}

// NewBrowserCapturer builds the headless browser capturer from configuration.
// The browser itself starts on the first render.
func NewBrowserCapturer(cfg *config.BrowserConfig, log *logger.Logger) *capture.BrowserCapturer {
	return capture.NewBrowserCapturer(capture.Options{
		Width:             cfg.Width,
		Height:            cfg.Height,
		Quality:           cfg.Quality,
		Settle:            cfg.Settle,
		NavigationTimeout: cfg.NavigationTimeout,
		UserAgent:         cfg.UserAgent,
		Install:           cfg.Install,
	}, cfg.MaxConcurrent, log)
}
