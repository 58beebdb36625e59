package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"https", "https://example.com/page", "https://example.com/page", nil},
		{"http trimmed", "  http://example.com ", "http://example.com", nil},
		{"upper scheme", "HTTPS://Example.com", "HTTPS://Example.com", nil},
		{"empty", "", "", ErrMissingURL},
		{"blank", "   ", "", ErrMissingURL},
		{"no scheme", "example.com", "", ErrInvalidURL},
		{"javascript", "javascript:alert(1)", "", ErrInvalidURL},
		{"file", "file:///etc/passwd", "", ErrInvalidURL},
		{"ftp", "ftp://example.com", "", ErrInvalidURL},
		{"no host", "https://", "", ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateURL(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateURL(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestOptionsDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	if got.Width != 1440 || got.Height != 900 {
		t.Errorf("viewport = %dx%d, want 1440x900", got.Width, got.Height)
	}
	if got.Quality != 85 {
		t.Errorf("quality = %d, want 85", got.Quality)
	}
	if got.Settle != 2*time.Second || got.NavigationTimeout != 10*time.Second {
		t.Errorf("timings = %v/%v", got.Settle, got.NavigationTimeout)
	}
	if got.UserAgent == "" {
		t.Error("expected a default user agent")
	}

	custom := Options{Width: 800, Height: 600, Quality: 120, Settle: time.Second}.withDefaults()
	if custom.Width != 800 || custom.Height != 600 || custom.Settle != time.Second {
		t.Errorf("custom options overwritten: %+v", custom)
	}
	if custom.Quality != 85 {
		t.Errorf("out-of-range quality = %d, want 85", custom.Quality)
	}
}

func TestBrowserCapturer_RejectsBeforeLaunch(t *testing.T) {
	b := NewBrowserCapturer(Options{}, 1, nil)

	if _, err := b.Capture(context.Background(), "not a url"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("invalid url error = %v, want ErrInvalidURL", err)
	}

	// occupy the only slot so Capture has to wait for it
	b.slots <- struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := b.Capture(ctx, "https://example.com"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("busy capture error = %v, want deadline exceeded", err)
	}
	<-b.slots

	if b.pw != nil || b.browser != nil {
		t.Error("browser started for a rejected capture")
	}
}

func TestBrowserCapturer_ClosedNeverLaunches(t *testing.T) {
	b := NewBrowserCapturer(Options{}, 2, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close on idle capturer: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := b.Capture(context.Background(), "https://example.com"); !errors.Is(err, ErrClosed) {
		t.Errorf("Capture after Close = %v, want ErrClosed", err)
	}
}

func TestCapturerFunc(t *testing.T) {
	var c Capturer = CapturerFunc(func(ctx context.Context, pageURL string) (*Result, error) {
		return &Result{URL: pageURL, ContentType: "image/jpeg"}, nil
	})
	res, err := c.Capture(context.Background(), "https://example.com")
	if err != nil || res.URL != "https://example.com" {
		t.Errorf("CapturerFunc = %+v, %v", res, err)
	}
}
