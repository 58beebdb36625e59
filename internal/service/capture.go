package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/timmy/ninjascan/internal/capture"
	"github.com/timmy/ninjascan/internal/domain"
	"github.com/timmy/ninjascan/internal/logger"
	"github.com/timmy/ninjascan/internal/screenshot"
	"github.com/timmy/ninjascan/internal/source"
	"github.com/timmy/ninjascan/internal/source/list"
	"github.com/timmy/ninjascan/internal/storage"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	defaultMaxArchiveBytes = 10 << 20
	defaultCaptureTimeout  = 2 * time.Minute
	fetchBatchSize         = 50

	// ProviderBrowser marks screenshots rendered by the local browser.
	ProviderBrowser = "browser"
)

var (
	// ErrNotFound is returned when no screenshot is stored for a host.
	ErrNotFound = errors.New("screenshot not found")
	// ErrRenderUnavailable is returned when no browser capturer is configured.
	ErrRenderUnavailable = errors.New("browser capture is not enabled")
)

// ScreenshotStore persists screenshot records.
// *repository.ScreenshotRepository satisfies it.
type ScreenshotStore interface {
	Create(ctx context.Context, shot *domain.Screenshot) error
	LatestByHost(ctx context.Context, host string, status domain.CaptureStatus) (*domain.Screenshot, error)
	ListRecent(ctx context.Context, limit, offset int) ([]domain.Screenshot, int64, error)
	DeleteByHost(ctx context.Context, host string) ([]domain.Screenshot, error)
	CountByStorageKey(ctx context.Context, key string) (int64, error)
}

// CaptureService resolves targets and keeps the result as a persisted
// screenshot, optionally archiving the image bytes to object storage.
type CaptureService struct {
	resolver *screenshot.Resolver
	store    ScreenshotStore
	storage  storage.ObjectStorage
	client   *resty.Client
	logger   *logger.Logger
	renderer capture.Capturer
	workers  int
	archive  bool
	maxBytes int64
	timeout  time.Duration

	// concurrent captures of one host share a single probe chain
	inflight singleflight.Group
}

// CaptureConfig holds configuration for the capture service
type CaptureConfig struct {
	Workers         int
	Archive         bool
	MaxArchiveBytes int64
	HTTPTimeout     time.Duration
	UserAgent       string
	// Timeout bounds one shared capture, which outlives the callers waiting on it.
	Timeout time.Duration
	// Renderer enables Render; nil leaves it disabled.
	Renderer capture.Capturer
}

// NewCaptureService creates a new capture service. store and objectStorage
// may be nil; without a store nothing is cached or persisted, and without
// storage archival is skipped.
func NewCaptureService(
	resolver *screenshot.Resolver,
	store ScreenshotStore,
	objectStorage storage.ObjectStorage,
	log *logger.Logger,
	cfg *CaptureConfig,
) *CaptureService {
	if cfg == nil {
		cfg = &CaptureConfig{}
	}
	if log == nil {
		log = logger.GetDefault()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	maxBytes := cfg.MaxArchiveBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxArchiveBytes
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCaptureTimeout
	}

	client := resty.New()
	client.SetHeader("Accept", "image/*")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.HTTPTimeout > 0 {
		client.SetTimeout(cfg.HTTPTimeout)
	}

	return &CaptureService{
		resolver: resolver,
		store:    store,
		storage:  objectStorage,
		client:   client,
		logger:   log,
		renderer: cfg.Renderer,
		workers:  workers,
		archive:  cfg.Archive && objectStorage != nil,
		maxBytes: maxBytes,
		timeout:  timeout,
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *CaptureService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	return s.logger
}

// CaptureOptions holds options for a capture
type CaptureOptions struct {
	Refresh bool // If true, ignore a stored screenshot and probe again
}

// CaptureOutcome is the result of one capture.
type CaptureOutcome struct {
	Screenshot *domain.Screenshot `json:"screenshot"`
	Cached     bool               `json:"cached"`
	// Shared is set when the result came from a concurrent capture of the same host.
	Shared bool `json:"shared,omitempty"`
}

// Capture returns the stored screenshot for raw's host, or resolves and
// stores a new one.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - raw: user-supplied website address.
//   - opts: capture options; nil uses defaults.
//
// Returns:
//   - *CaptureOutcome: persisted record and whether it came from the store.
//   - error: screenshot.ErrNoTarget for empty input, ctx errors, or store failures.
func (s *CaptureService) Capture(ctx context.Context, raw string, opts *CaptureOptions) (*CaptureOutcome, error) {
	if opts == nil {
		opts = &CaptureOptions{}
	}

	target, err := screenshot.Normalize(raw)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithField(ctx, logger.FieldTarget, target.URL)

	if s.store != nil && !opts.Refresh {
		existing, err := s.store.LatestByHost(ctx, target.Key(), domain.CaptureStatusCaptured)
		if err == nil {
			return &CaptureOutcome{Screenshot: existing, Cached: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up screenshot: %w", err)
		}
	}

	key := target.Key()
	if opts.Refresh {
		key += "|refresh"
	}
	// The shared capture must not depend on whichever caller started it;
	// each caller stops waiting on its own context.
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.captureFresh(captureCtx, target)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return &CaptureOutcome{Screenshot: res.Val.(*domain.Screenshot), Shared: res.Shared}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// captureFresh probes target's providers and stores the outcome.
func (s *CaptureService) captureFresh(ctx context.Context, target screenshot.Target) (*domain.Screenshot, error) {
	result, err := s.resolver.Resolve(ctx, target.Raw)
	if err != nil {
		return nil, err
	}

	shot := &domain.Screenshot{
		ID:         uuid.New().String(),
		Host:       target.Key(),
		Target:     target.URL,
		Provider:   result.Provider,
		ImageURL:   result.ImageURL,
		Reason:     result.Reason,
		Attempts:   result.Attempts,
		CapturedAt: time.Now(),
	}
	if result.Status == screenshot.StatusSuccess {
		shot.Status = domain.CaptureStatusCaptured
		if s.archive {
			if err := s.archiveImage(ctx, shot); err != nil {
				s.log(ctx).WithError(err).Warn("Failed to archive screenshot")
			}
		}
	} else {
		shot.Status = domain.CaptureStatusFailed
	}

	if s.store != nil {
		if err := s.store.Create(ctx, shot); err != nil {
			return nil, fmt.Errorf("failed to store screenshot: %w", err)
		}
	}

	logger.With(logger.Fields{
		logger.FieldProvider: shot.Provider,
		logger.FieldAttempt:  shot.Attempts,
	}).WithStatus(string(shot.Status)).Info(ctx, "Screenshot captured")

	return shot, nil
}

// Get returns the latest stored screenshot for raw's host.
func (s *CaptureService) Get(ctx context.Context, raw string) (*domain.Screenshot, error) {
	target, err := screenshot.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrNotFound
	}

	shot, err := s.store.LatestByHost(ctx, target.Key(), "")
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screenshot: %w", err)
	}
	return shot, nil
}

// ArchivedImage is an open stream of an archived screenshot.
type ArchivedImage struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// OpenImage streams the archived image of raw's latest captured screenshot.
// ErrNotFound means nothing was captured or archived for the host.
func (s *CaptureService) OpenImage(ctx context.Context, raw string) (*ArchivedImage, error) {
	target, err := screenshot.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if s.store == nil || s.storage == nil {
		return nil, ErrNotFound
	}

	shot, err := s.store.LatestByHost(ctx, target.Key(), domain.CaptureStatusCaptured)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screenshot: %w", err)
	}
	if shot.StorageKey == "" {
		return nil, ErrNotFound
	}

	body, err := s.storage.Download(ctx, shot.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open archived image: %w", err)
	}
	return &ArchivedImage{Body: body, ContentType: shot.ContentType, Size: shot.FileSize}, nil
}

// RenderOutcome is a page rendered by the browser capturer.
type RenderOutcome struct {
	Image       []byte
	ContentType string
	URL         string
	Timestamp   time.Time
	// Screenshot is the persisted record; nil when nothing could be stored.
	Screenshot *domain.Screenshot
}

// Render screenshots pageURL in the local browser. The image is archived and
// recorded like a resolved capture when storage and a store are configured.
// Parameters:
//   - ctx: context for cancellation; cancelling aborts the render.
//   - pageURL: absolute http or https URL.
//
// Returns:
//   - *RenderOutcome: the JPEG bytes plus the stored record, if any.
//   - error: ErrRenderUnavailable, capture.ErrMissingURL, capture.ErrInvalidURL or the render failure.
func (s *CaptureService) Render(ctx context.Context, pageURL string) (*RenderOutcome, error) {
	pageURL, err := capture.ValidateURL(pageURL)
	if err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, ErrRenderUnavailable
	}

	rendered, err := s.renderer.Capture(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if rendered.Timestamp.IsZero() {
		rendered.Timestamp = time.Now().UTC()
	}
	outcome := &RenderOutcome{
		Image:       rendered.Image,
		ContentType: rendered.ContentType,
		URL:         rendered.URL,
		Timestamp:   rendered.Timestamp,
	}

	if s.storage == nil {
		return outcome, nil
	}

	target, err := screenshot.Normalize(pageURL)
	if err != nil {
		return nil, err
	}
	shot := &domain.Screenshot{
		ID:         uuid.New().String(),
		Host:       target.Key(),
		Target:     pageURL,
		Provider:   ProviderBrowser,
		Status:     domain.CaptureStatusCaptured,
		Attempts:   1,
		CapturedAt: rendered.Timestamp,
	}
	if err := s.storeImage(ctx, shot, rendered.Image); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to archive rendered screenshot")
		return outcome, nil
	}
	shot.ImageURL = shot.ArchiveURL

	if s.store != nil {
		if err := s.store.Create(ctx, shot); err != nil {
			return nil, fmt.Errorf("failed to store screenshot: %w", err)
		}
	}
	outcome.Screenshot = shot

	logger.With(logger.Fields{
		logger.FieldProvider: shot.Provider,
		"bytes":              shot.FileSize,
	}).WithStatus(string(shot.Status)).Info(logger.WithField(ctx, logger.FieldTarget, pageURL), "Screenshot rendered")

	return outcome, nil
}

// List returns stored screenshots, newest first, plus the total count.
func (s *CaptureService) List(ctx context.Context, limit, offset int) ([]domain.Screenshot, int64, error) {
	if s.store == nil {
		return []domain.Screenshot{}, 0, nil
	}
	return s.store.ListRecent(ctx, limit, offset)
}

// Forget removes every stored screenshot for raw's host together with its
// archived objects. It returns the number of records removed.
func (s *CaptureService) Forget(ctx context.Context, raw string) (int, error) {
	target, err := screenshot.Normalize(raw)
	if err != nil {
		return 0, err
	}
	if s.store == nil {
		return 0, nil
	}

	shots, err := s.store.DeleteByHost(ctx, target.Key())
	if err != nil {
		return 0, fmt.Errorf("failed to delete screenshots: %w", err)
	}

	if s.storage != nil {
		s.deleteUnreferenced(ctx, shots)
	}
	return len(shots), nil
}

// deleteUnreferenced removes the archived objects of shots that no remaining
// record points at. Identical images share one content-addressed key.
func (s *CaptureService) deleteUnreferenced(ctx context.Context, shots []domain.Screenshot) {
	seen := make(map[string]bool, len(shots))
	for _, shot := range shots {
		key := shot.StorageKey
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		log := s.log(ctx).WithField("key", key)
		refs, err := s.store.CountByStorageKey(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Failed to count archived screenshot references")
			continue
		}
		if refs > 0 {
			log.Debugf("Archived screenshot still used by %d records", refs)
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			log.WithError(err).Warn("Failed to delete archived screenshot")
		}
	}
}

// archiveImage downloads the winning candidate and uploads it under a
// content-addressed key.
func (s *CaptureService) archiveImage(ctx context.Context, shot *domain.Screenshot) error {
	data, err := s.download(ctx, shot.ImageURL)
	if err != nil {
		return err
	}
	return s.storeImage(ctx, shot, data)
}

// storeImage uploads data unless an identical image is already stored and
// records the archive details on shot.
func (s *CaptureService) storeImage(ctx context.Context, shot *domain.Screenshot, data []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode archived image: %w", err)
	}

	md5Hash := calculateMD5(data)
	key := archiveKey(md5Hash, format)
	contentType := getContentType(format)

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			return err
		}
	}

	shot.StorageKey = key
	shot.ArchiveURL = s.storage.GetURL(key)
	shot.ContentType = contentType
	shot.Width = cfg.Width
	shot.Height = cfg.Height
	shot.FileSize = int64(len(data))
	shot.MD5Hash = md5Hash
	return nil
}

func (s *CaptureService) download(ctx context.Context, imageURL string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	body := resp.RawBody()
	if body == nil {
		return nil, fmt.Errorf("empty response body (status %d)", resp.StatusCode())
	}
	defer body.Close()

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("image download returned HTTP %d", resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", s.maxBytes)
	}
	return data, nil
}

// CaptureStats holds statistics for a batch capture
type CaptureStats struct {
	Total     int64     `json:"total"`
	Succeeded int64     `json:"succeeded"`
	Failed    int64     `json:"failed"`
	Cached    int64     `json:"cached"`
	Errors    int64     `json:"errors"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// CaptureBatch captures many targets with a fixed pool of workers. Each
// target's provider chain is still probed serially.
func (s *CaptureService) CaptureBatch(ctx context.Context, targets []string, opts *CaptureOptions) *CaptureStats {
	// an in-memory list never fails to fetch
	stats, _ := s.CaptureFromSource(ctx, list.FromStrings("batch", targets), 0, opts)
	return stats
}

// CaptureFromSource pages through src and captures every target with the
// worker pool.
// Parameters:
//   - ctx: context for cancellation; cancelling stops feeding new targets.
//   - src: target source.
//   - limit: maximum number of targets; 0 means all.
//   - opts: capture options applied to every target.
//
// Returns:
//   - *CaptureStats: counters for the run, also on error.
//   - error: non-nil if fetching from src fails.
func (s *CaptureService) CaptureFromSource(ctx context.Context, src source.Source, limit int, opts *CaptureOptions) (*CaptureStats, error) {
	stats := &CaptureStats{StartTime: time.Now()}

	s.log(ctx).WithFields(logger.Fields{
		"source":  src.GetSourceID(),
		"limit":   limit,
		"workers": s.workers,
	}).Info("Starting batch capture")

	itemsChan := make(chan source.TargetItem, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, itemsChan, stats, opts)
		}()
	}

	var fetchErr error
	cursor := ""
	fetched := 0
feed:
	for ctx.Err() == nil {
		batchLimit := fetchBatchSize
		if limit > 0 {
			remaining := limit - fetched
			if remaining <= 0 {
				break
			}
			batchLimit = min(batchLimit, remaining)
		}

		items, nextCursor, err := src.FetchBatch(ctx, cursor, batchLimit)
		if err != nil {
			fetchErr = fmt.Errorf("failed to fetch targets: %w", err)
			break
		}
		fetched += len(items)

		for _, item := range items {
			select {
			case itemsChan <- item:
			case <-ctx.Done():
				break feed
			}
		}

		if nextCursor == "" || len(items) == 0 {
			break
		}
		cursor = nextCursor
	}

	close(itemsChan)
	wg.Wait()

	stats.EndTime = time.Now()

	logger.With(logger.Fields{
		"total":     stats.Total,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"cached":    stats.Cached,
		"errors":    stats.Errors,
	}).WithDuration(stats.EndTime.Sub(stats.StartTime)).Info(s.log(ctx).WithContext(ctx), "Batch capture completed")

	return stats, fetchErr
}

func (s *CaptureService) worker(ctx context.Context, items <-chan source.TargetItem, stats *CaptureStats, opts *CaptureOptions) {
	for item := range items {
		if ctx.Err() != nil {
			return
		}
		atomic.AddInt64(&stats.Total, 1)

		outcome, err := s.Capture(ctx, item.URL, opts)
		switch {
		case err != nil:
			atomic.AddInt64(&stats.Errors, 1)
			s.log(ctx).WithFields(logger.Fields{
				"source_id":        item.SourceID,
				logger.FieldTarget: item.URL,
			}).WithError(err).Warn("Batch capture failed")
		case outcome.Cached:
			atomic.AddInt64(&stats.Cached, 1)
		case outcome.Screenshot.Captured():
			atomic.AddInt64(&stats.Succeeded, 1)
		default:
			atomic.AddInt64(&stats.Failed, 1)
		}
	}
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

func archiveKey(md5Hash, format string) string {
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("screenshots/%s/%s.%s", md5Hash[:2], md5Hash, ext)
}

func getContentType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
