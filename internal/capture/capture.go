package capture

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// Defaults for a rendered screenshot.
const (
	DefaultWidth             = 1440
	DefaultHeight            = 900
	DefaultQuality           = 85
	DefaultSettle            = 2 * time.Second
	DefaultNavigationTimeout = 10 * time.Second
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var (
	// ErrMissingURL is returned when no address was given.
	ErrMissingURL = errors.New("capture: url is required")
	// ErrInvalidURL is returned for addresses that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("capture: url must be an absolute http or https URL")
)

// Result is a rendered viewport screenshot.
type Result struct {
	Image       []byte
	ContentType string
	URL         string
	Timestamp   time.Time
}

// Capturer renders a page and returns a screenshot of its viewport.
type Capturer interface {
	Capture(ctx context.Context, pageURL string) (*Result, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context, pageURL string) (*Result, error)

// Capture calls f.
func (f CapturerFunc) Capture(ctx context.Context, pageURL string) (*Result, error) {
	return f(ctx, pageURL)
}

// Options configure a browser capture.
type Options struct {
	Width             int
	Height            int
	Quality           int
	Settle            time.Duration
	NavigationTimeout time.Duration
	UserAgent         string
	// Install downloads the browser driver on first use.
	Install bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// ValidateURL checks that raw is an absolute http or https URL and returns it
// trimmed.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return trimmed, nil
	default:
		return "", ErrInvalidURL
	}
}
