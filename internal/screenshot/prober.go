package screenshot

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const defaultMaxImageBytes = 10 << 20

// Prober performs one image-load attempt. A nil error means the candidate
// loaded as an image.
type Prober interface {
	Probe(ctx context.Context, imageURL string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, imageURL string) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, imageURL string) error {
	return f(ctx, imageURL)
}

// HTTPProberConfig holds configuration for HTTPProber.
type HTTPProberConfig struct {
	Timeout       time.Duration // client-wide, 0 disables
	UserAgent     string
	MaxImageBytes int64
	MaxRedirects  int
}

// HTTPProber loads candidates over HTTP and accepts them only when the body
// decodes as an image.
type HTTPProber struct {
	client   *resty.Client
	maxBytes int64
}

// NewHTTPProber creates a new HTTP prober.
// Parameters:
//   - cfg: prober configuration; nil uses defaults.
//
// Returns:
//   - *HTTPProber: prober backed by a resty client.
func NewHTTPProber(cfg *HTTPProberConfig) *HTTPProber {
	if cfg == nil {
		cfg = &HTTPProberConfig{}
	}

	client := resty.New()
	client.SetHeader("Accept", "image/*")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	redirects := cfg.MaxRedirects
	if redirects <= 0 {
		redirects = 5
	}
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(redirects))

	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}

	return &HTTPProber{client: client, maxBytes: maxBytes}
}

// Probe fetches imageURL and checks that the response is a decodable image.
// Transport errors, non-2xx statuses and non-image bodies are all failures.
func (p *HTTPProber) Probe(ctx context.Context, imageURL string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return fmt.Errorf("failed to request image: %w", err)
	}

	body := resp.RawBody()
	if body == nil {
		return fmt.Errorf("empty response body (status %d)", resp.StatusCode())
	}
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("image request returned HTTP %d", resp.StatusCode())
	}

	if _, _, err := image.DecodeConfig(io.LimitReader(body, p.maxBytes)); err != nil {
		return fmt.Errorf("response is not an image: %w", err)
	}
	return nil
}
