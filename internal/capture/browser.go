package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/timmy/ninjascan/internal/logger"
)

// ErrClosed is returned by Capture after Close.
var ErrClosed = errors.New("capture: browser closed")

var launchArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-accelerated-2d-canvas",
	"--disable-gpu",
}

// BrowserCapturer renders pages in headless Chromium. The browser starts on
// the first capture and is shared; every capture gets its own browser
// context.
type BrowserCapturer struct {
	opts   Options
	logger *logger.Logger
	slots  chan struct{}

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	closed  bool
}

// NewBrowserCapturer creates a capturer that runs at most maxConcurrent
// renders at once (1 when maxConcurrent <= 0).
func NewBrowserCapturer(opts Options, maxConcurrent int, log *logger.Logger) *BrowserCapturer {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &BrowserCapturer{
		opts:   opts.withDefaults(),
		logger: log.WithField(logger.FieldComponent, "browser"),
		slots:  make(chan struct{}, maxConcurrent),
	}
}

// Capture loads pageURL, waits for the network to go idle plus the settle
// delay and returns a JPEG of the viewport.
func (b *BrowserCapturer) Capture(ctx context.Context, pageURL string) (*Result, error) {
	pageURL, err := ValidateURL(pageURL)
	if err != nil {
		return nil, err
	}

	select {
	case b.slots <- struct{}{}:
		defer func() { <-b.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	browser, err := b.ensureBrowser()
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: b.opts.Width, Height: b.opts.Height},
		DeviceScaleFactor: playwright.Float(1),
		UserAgent:         playwright.String(b.opts.UserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open browser context: %w", err)
	}

	type rendered struct {
		image []byte
		err   error
	}
	done := make(chan rendered, 1)
	go func() {
		image, err := b.render(bctx, pageURL)
		done <- rendered{image: image, err: err}
	}()

	start := time.Now()
	select {
	case r := <-done:
		_ = bctx.Close()
		if r.err != nil {
			return nil, r.err
		}
		logger.With(logger.Fields{"bytes": len(r.image)}).
			WithDuration(time.Since(start)).
			Debug(b.logger.WithContext(ctx), "Rendered %s", pageURL)
		return &Result{
			Image:       r.image,
			ContentType: "image/jpeg",
			URL:         pageURL,
			Timestamp:   time.Now().UTC(),
		}, nil
	case <-ctx.Done():
		// closing the context aborts the pending navigation or screenshot
		_ = bctx.Close()
		return nil, ctx.Err()
	}
}

func (b *BrowserCapturer) render(bctx playwright.BrowserContext, pageURL string) ([]byte, error) {
	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	timeout := float64(b.opts.NavigationTimeout.Milliseconds())
	page.SetDefaultTimeout(timeout)
	page.SetDefaultNavigationTimeout(timeout)

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(timeout),
	}); err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	// lazy-loaded content
	page.WaitForTimeout(float64(b.opts.Settle.Milliseconds()))

	image, err := page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(b.opts.Quality),
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return image, nil
}

func (b *BrowserCapturer) ensureBrowser() (playwright.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.browser != nil && b.browser.IsConnected() {
		return b.browser, nil
	}

	if b.pw == nil {
		if b.opts.Install {
			b.logger.Info("Installing Chromium for browser capture")
			if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
				return nil, fmt.Errorf("failed to install playwright: %w", err)
			}
		}
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
		b.pw = pw
	}

	args := append([]string{}, launchArgs...)
	args = append(args, fmt.Sprintf("--window-size=%d,%d", b.opts.Width, b.opts.Height))
	browser, err := b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}
	b.browser = browser
	b.logger.Info("Chromium launched")
	return browser, nil
}

// Close shuts down the browser and the driver. Captures after Close fail with
// ErrClosed.
func (b *BrowserCapturer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		b.browser = nil
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		b.pw = nil
	}
	return errors.Join(errs...)
}
