package screenshot

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantURL   string
		wantHost  string
		wantClean string
		wantErr   error
	}{
		{
			name:      "bare domain",
			raw:       "example.com",
			wantURL:   "https://example.com",
			wantHost:  "example.com",
			wantClean: "example.com",
		},
		{
			name:      "https with path and whitespace",
			raw:       "  https://example.com/pricing?a=1  ",
			wantURL:   "https://example.com/pricing?a=1",
			wantHost:  "example.com",
			wantClean: "example.com/pricing?a=1",
		},
		{
			name:      "http is upgraded",
			raw:       "http://shop.example.org",
			wantURL:   "https://shop.example.org",
			wantHost:  "shop.example.org",
			wantClean: "shop.example.org",
		},
		{
			name:      "upper case scheme",
			raw:       "HTTPS://Example.com",
			wantURL:   "https://Example.com",
			wantHost:  "Example.com",
			wantClean: "Example.com",
		},
		{name: "empty", raw: "", wantErr: ErrNoTarget},
		{name: "whitespace only", raw: " \t\n", wantErr: ErrNoTarget},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.URL != tc.wantURL {
				t.Errorf("URL = %q, want %q", got.URL, tc.wantURL)
			}
			if got.Host != tc.wantHost {
				t.Errorf("Host = %q, want %q", got.Host, tc.wantHost)
			}
			if got.Clean != tc.wantClean {
				t.Errorf("Clean = %q, want %q", got.Clean, tc.wantClean)
			}
		})
	}
}

func TestTargetKeyIsLowerCaseHost(t *testing.T) {
	target, err := Normalize("https://WWW.Example.COM/About")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := target.Key(); got != "www.example.com" {
		t.Errorf("Key() = %q, want %q", got, "www.example.com")
	}
}

func TestDefaultProviders_ExampleCandidates(t *testing.T) {
	target, err := Normalize("example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Candidate{
		{ProviderMShots, "https://s0.wp.com/mshots/v1/https%3A%2F%2Fexample.com?w=1200&h=800"},
		{ProviderMicrolink, "https://api.microlink.io/screenshot?url=https%3A%2F%2Fexample.com&viewport.width=1200&viewport.height=800&type=jpeg"},
		{ProviderPagePeeker, "https://free.pagepeeker.com/v2/thumbs.php?size=l&url=https%3A%2F%2Fexample.com"},
		{ProviderScreenshotMachine, "https://api.screenshotmachine.com/?key=demo&url=https%3A%2F%2Fexample.com&dimension=1200x800&format=png"},
		{ProviderPlaceholder, "https://via.placeholder.com/1200x800/f1f5f9/64748b?text=example.com%0AWebsite%0APreview"},
	}

	resolver, err := NewResolver(Options{
		Providers: DefaultProviders(ProviderOptions{}),
		Prober:    ProberFunc(func(ctx context.Context, imageURL string) error { return nil }),
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	got := resolver.Candidates(target)
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d:\n got  %+v\n want %+v", i+1, got[i], want[i])
		}
	}
}

func TestPlaceholderUsesHostOnly(t *testing.T) {
	target, _ := Normalize("https://example.com/deep/page")
	url := Placeholder(ProviderOptions{Width: 640, Height: 480}).Build(target)

	if !strings.HasPrefix(url, "https://via.placeholder.com/640x480/") {
		t.Errorf("unexpected dimensions in %q", url)
	}
	if !strings.HasSuffix(url, "text=example.com%0AWebsite%0APreview") {
		t.Errorf("placeholder text should only carry the host, got %q", url)
	}
}

func TestScreenshotMachineUsesConfiguredKey(t *testing.T) {
	target, _ := Normalize("example.com")
	url := ScreenshotMachine(ProviderOptions{ScreenshotMachineKey: "abc 123"}).Build(target)
	if !strings.Contains(url, "key=abc%20123&") {
		t.Errorf("expected escaped api key in %q", url)
	}
}

func TestSelectProviders(t *testing.T) {
	t.Run("order preserved", func(t *testing.T) {
		providers, err := SelectProviders([]string{"placeholder", " MShots "}, ProviderOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(providers) != 2 || providers[0].Name != ProviderPlaceholder || providers[1].Name != ProviderMShots {
			t.Errorf("unexpected providers: %+v", providers)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := SelectProviders([]string{"mshots", "nope"}, ProviderOptions{})
		if !errors.Is(err, ErrUnknownProvider) {
			t.Errorf("expected ErrUnknownProvider, got %v", err)
		}
	})

	t.Run("duplicate provider", func(t *testing.T) {
		if _, err := SelectProviders([]string{"mshots", "mshots"}, ProviderOptions{}); err == nil {
			t.Error("expected error for duplicate provider")
		}
	})

	t.Run("local placeholder needs base url", func(t *testing.T) {
		_, err := SelectProviders([]string{"local"}, ProviderOptions{})
		if !errors.Is(err, ErrProviderConfig) {
			t.Errorf("expected ErrProviderConfig, got %v", err)
		}
	})

	t.Run("local placeholder url", func(t *testing.T) {
		providers, err := SelectProviders([]string{"local"}, ProviderOptions{PublicBaseURL: "http://localhost:8080/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		target, _ := Normalize("example.com")
		want := "http://localhost:8080/api/v1/placeholder?w=1200&h=800&text=example.com%0AWebsite%0APreview"
		if got := providers[0].Build(target); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}
