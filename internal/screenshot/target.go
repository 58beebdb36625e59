package screenshot

import (
	"net/url"
	"regexp"
	"strings"
)

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// Target is a normalized screenshot request.
type Target struct {
	Raw   string `json:"raw"`
	Clean string `json:"clean"` // scheme stripped
	Host  string `json:"host"`  // Clean up to the first '/'
	URL   string `json:"url"`   // https:// + Clean
}

// Normalize trims raw, strips a leading http:// or https:// and re-prefixes
// https://. An empty input yields ErrNoTarget.
func Normalize(raw string) (Target, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Target{}, ErrNoTarget
	}

	clean := schemePrefix.ReplaceAllString(trimmed, "")
	host := clean
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}

	return Target{
		Raw:   raw,
		Clean: clean,
		Host:  host,
		URL:   "https://" + clean,
	}, nil
}

// Key is the lookup key used for persisted screenshots.
func (t Target) Key() string {
	return strings.ToLower(t.Host)
}

// Encoded returns the target URL escaped as a single query/path component.
func (t Target) Encoded() string {
	return encodeComponent(t.URL)
}

// encodeComponent escapes s like a browser's encodeURIComponent: spaces
// become %20 rather than '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
