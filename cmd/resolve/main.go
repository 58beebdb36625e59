package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/ninjascan/internal/config"
	"github.com/timmy/ninjascan/internal/logger"
	"github.com/timmy/ninjascan/internal/repository"
	"github.com/timmy/ninjascan/internal/screenshot"
	"github.com/timmy/ninjascan/internal/service"
	"github.com/timmy/ninjascan/internal/source/list"
	"github.com/timmy/ninjascan/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	file := flag.String("file", "", "File with one target per line (- for stdin)")
	persist := flag.Bool("persist", false, "Capture and store results in the database")
	refresh := flag.Bool("refresh", false, "Ignore stored screenshots when persisting")
	candidates := flag.Bool("candidates", false, "Print candidate URLs without probing")
	verbose := flag.Bool("v", false, "Log individual candidate failures")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	appLogger := logger.New(&logger.Config{
		Level:       level,
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "ninjascan-resolve",
	})
	logger.SetDefaultLogger(appLogger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	targets, err := loadTargets(flag.Args(), *file)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read targets")
	}
	if targets.Len() == 0 {
		fmt.Fprintln(os.Stderr, "usage: resolve [flags] <url>... (or -file targets.txt)")
		flag.PrintDefaults()
		os.Exit(2)
	}

	resolver, err := service.NewResolver(&cfg.Screenshot, cfg.Server.PublicURL, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize screenshot resolver")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	out := json.NewEncoder(os.Stdout)
	items, _, err := targets.FetchBatch(ctx, "", targets.Len())
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read targets")
	}

	switch {
	case *candidates:
		for _, item := range items {
			target, err := screenshot.Normalize(item.URL)
			if err != nil {
				continue
			}
			_ = out.Encode(map[string]interface{}{
				"target":     target.URL,
				"candidates": resolver.Candidates(target),
			})
		}

	case *persist:
		captureService := newCaptureService(ctx, cfg, resolver, appLogger)
		if targets.Len() == 1 {
			outcome, err := captureService.Capture(ctx, items[0].URL, &service.CaptureOptions{Refresh: *refresh})
			if err != nil {
				appLogger.WithError(err).Fatal("Capture failed")
			}
			_ = out.Encode(outcome)
			return
		}
		stats, err := captureService.CaptureFromSource(ctx, targets, 0, &service.CaptureOptions{Refresh: *refresh})
		_ = out.Encode(stats)
		if err != nil {
			appLogger.WithError(err).Fatal("Batch capture stopped early")
		}

	default:
		failed := false
		for _, item := range items {
			result, err := resolver.Resolve(ctx, item.URL)
			if err != nil {
				appLogger.WithError(err).Warn("Resolution interrupted")
				os.Exit(130)
			}
			if result.Status == screenshot.StatusFailed {
				failed = true
			}
			_ = out.Encode(result)
		}
		if failed {
			os.Exit(1)
		}
	}
}

func newCaptureService(ctx context.Context, cfg *config.Config, resolver *screenshot.Resolver, log *logger.Logger) *service.CaptureService {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled {
		objectStorage, err = storage.NewStorage(&cfg.Storage)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			log.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	return service.NewCaptureService(
		resolver,
		repository.NewScreenshotRepository(db),
		objectStorage,
		log,
		&service.CaptureConfig{
			Workers:         cfg.Capture.Workers,
			Archive:         cfg.Capture.Archive,
			MaxArchiveBytes: cfg.Capture.MaxArchiveBytes,
			HTTPTimeout:     cfg.Screenshot.HTTPTimeout,
			UserAgent:       cfg.Screenshot.UserAgent,
			Timeout:         cfg.Capture.Timeout,
		},
	)
}

// loadTargets reads targets from positional arguments or from a list file.
func loadTargets(args []string, file string) (*list.Adapter, error) {
	if file == "" {
		return list.FromStrings("args", args), nil
	}
	if len(args) > 0 {
		return nil, errors.New("pass targets as arguments or with -file, not both")
	}
	return list.FromFile(file)
}
