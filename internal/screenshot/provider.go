package screenshot

import (
	"fmt"
	"strings"
)

// Provider names accepted by SelectProviders.
const (
	ProviderMShots            = "mshots"
	ProviderMicrolink         = "microlink"
	ProviderPagePeeker        = "pagepeeker"
	ProviderScreenshotMachine = "screenshotmachine"
	ProviderPlaceholder       = "placeholder"
	ProviderLocalPlaceholder  = "local"
)

// DefaultProviderOrder is the reference probe priority.
var DefaultProviderOrder = []string{
	ProviderMShots,
	ProviderMicrolink,
	ProviderPagePeeker,
	ProviderScreenshotMachine,
	ProviderPlaceholder,
}

// Provider turns a normalized target into one candidate image URL.
type Provider struct {
	Name  string
	Build func(Target) string
}

// Candidate is one fully-formed provider image URL.
type Candidate struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// ProviderOptions parameterize the built-in provider templates.
type ProviderOptions struct {
	Width  int
	Height int

	// ScreenshotMachineKey defaults to "demo".
	ScreenshotMachineKey string

	// PublicBaseURL is this service's externally reachable base URL,
	// required by the local placeholder provider.
	PublicBaseURL string
}

func (o ProviderOptions) withDefaults() ProviderOptions {
	if o.Width <= 0 {
		o.Width = 1200
	}
	if o.Height <= 0 {
		o.Height = 800
	}
	if o.ScreenshotMachineKey == "" {
		o.ScreenshotMachineKey = "demo"
	}
	o.PublicBaseURL = strings.TrimSuffix(o.PublicBaseURL, "/")
	return o
}

// PlaceholderText is the overlay text used by placeholder candidates.
func PlaceholderText(t Target) string {
	return t.Host + "\nWebsite\nPreview"
}

// MShots is the free WordPress thumbnail-by-URL service.
func MShots(opts ProviderOptions) Provider {
	opts = opts.withDefaults()
	return Provider{
		Name: ProviderMShots,
		Build: func(t Target) string {
			return fmt.Sprintf("https://s0.wp.com/mshots/v1/%s?w=%d&h=%d", t.Encoded(), opts.Width, opts.Height)
		},
	}
}

// Microlink is a generic screenshot API.
func Microlink(opts ProviderOptions) Provider {
	opts = opts.withDefaults()
	return Provider{
		Name: ProviderMicrolink,
		Build: func(t Target) string {
			return fmt.Sprintf("https://api.microlink.io/screenshot?url=%s&viewport.width=%d&viewport.height=%d&type=jpeg",
				t.Encoded(), opts.Width, opts.Height)
		},
	}
}

// PagePeeker is a simple thumbnail service with a size class.
func PagePeeker(ProviderOptions) Provider {
	return Provider{
		Name: ProviderPagePeeker,
		Build: func(t Target) string {
			return "https://free.pagepeeker.com/v2/thumbs.php?size=l&url=" + t.Encoded()
		},
	}
}

// ScreenshotMachine is a keyed screenshot API.
func ScreenshotMachine(opts ProviderOptions) Provider {
	opts = opts.withDefaults()
	return Provider{
		Name: ProviderScreenshotMachine,
		Build: func(t Target) string {
			return fmt.Sprintf("https://api.screenshotmachine.com/?key=%s&url=%s&dimension=%dx%d&format=png",
				encodeComponent(opts.ScreenshotMachineKey), t.Encoded(), opts.Width, opts.Height)
		},
	}
}

// Placeholder is a synthetic image with the host name as overlay text.
// It never depends on the target being reachable.
func Placeholder(opts ProviderOptions) Provider {
	opts = opts.withDefaults()
	return Provider{
		Name: ProviderPlaceholder,
		Build: func(t Target) string {
			return fmt.Sprintf("https://via.placeholder.com/%dx%d/f1f5f9/64748b?text=%s",
				opts.Width, opts.Height, encodeComponent(PlaceholderText(t)))
		},
	}
}

// LocalPlaceholder points at this service's own placeholder renderer.
func LocalPlaceholder(opts ProviderOptions) (Provider, error) {
	opts = opts.withDefaults()
	if opts.PublicBaseURL == "" {
		return Provider{}, fmt.Errorf("%w: %s needs a public base url", ErrProviderConfig, ProviderLocalPlaceholder)
	}
	return Provider{
		Name: ProviderLocalPlaceholder,
		Build: func(t Target) string {
			return fmt.Sprintf("%s/api/v1/placeholder?w=%d&h=%d&text=%s",
				opts.PublicBaseURL, opts.Width, opts.Height, encodeComponent(PlaceholderText(t)))
		},
	}, nil
}

// DefaultProviders returns the reference provider list in probe order.
func DefaultProviders(opts ProviderOptions) []Provider {
	providers, err := SelectProviders(DefaultProviderOrder, opts)
	if err != nil {
		// DefaultProviderOrder names only built-in providers that need no options
		panic(err)
	}
	return providers
}

// SelectProviders builds an ordered provider list from names. Order is
// preserved; duplicates and unknown names are rejected.
func SelectProviders(names []string, opts ProviderOptions) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			return nil, fmt.Errorf("screenshot: provider %q listed twice", name)
		}
		seen[name] = true

		var p Provider
		switch name {
		case ProviderMShots:
			p = MShots(opts)
		case ProviderMicrolink:
			p = Microlink(opts)
		case ProviderPagePeeker:
			p = PagePeeker(opts)
		case ProviderScreenshotMachine:
			p = ScreenshotMachine(opts)
		case ProviderPlaceholder:
			p = Placeholder(opts)
		case ProviderLocalPlaceholder:
			local, err := LocalPlaceholder(opts)
			if err != nil {
				return nil, err
			}
			p = local
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
		}
		providers = append(providers, p)
	}

	return providers, nil
}
