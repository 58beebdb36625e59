package list

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/timmy/ninjascan/internal/source"
)

// ManifestItem is one JSON line in a target list.
type ManifestItem struct {
	ID   string   `json:"id"`
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// Adapter implements source.Source over an in-memory target list. Lists are
// read from plain text (one target per line) or JSON Lines; both may be mixed.
// Blank lines and lines starting with # are skipped.
type Adapter struct {
	sourceID string
	items    []source.TargetItem
}

// FromStrings creates an adapter over raw targets. Entries are kept as given,
// including blank ones, so callers see their own input reflected in stats.
func FromStrings(sourceID string, targets []string) *Adapter {
	items := make([]source.TargetItem, 0, len(targets))
	for i, raw := range targets {
		items = append(items, source.TargetItem{
			SourceID: fmt.Sprintf("%s_%d", sourceID, i+1),
			URL:      raw,
		})
	}
	return &Adapter{sourceID: sourceID, items: items}
}

// FromReader parses a target list from r.
// Parameters:
//   - sourceID: identifier used as prefix for item IDs.
//   - r: plain text or JSON Lines input.
//
// Returns:
//   - *Adapter: adapter over the parsed items.
//   - error: non-nil on read errors or malformed JSON lines.
func FromReader(sourceID string, r io.Reader) (*Adapter, error) {
	a := &Adapter{sourceID: sourceID}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		item := source.TargetItem{
			SourceID: fmt.Sprintf("%s_%d", sourceID, lineNo),
			URL:      line,
		}
		if strings.HasPrefix(line, "{") {
			var m ManifestItem
			if err := json.Unmarshal([]byte(line), &m); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			item.URL = m.URL
			item.Tags = m.Tags
			if m.ID != "" {
				item.SourceID = fmt.Sprintf("%s_%s", sourceID, m.ID)
			}
		}
		a.items = append(a.items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading target list: %w", err)
	}

	return a, nil
}

// FromFile reads a target list from path; "-" reads stdin.
func FromFile(path string) (*Adapter, error) {
	if path == "-" {
		return FromReader("stdin", os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	return FromReader("file:"+path, f)
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return a.sourceID
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Target list (%s, %d items)", a.sourceID, len(a.items))
}

// Len returns the number of targets.
func (a *Adapter) Len() int {
	return len(a.items)
}

// FetchBatch returns items starting at the index encoded in cursor.
// Parameters:
//   - ctx: unused for in-memory lists.
//   - cursor: pagination cursor as an index string.
//   - limit: maximum number of items to fetch.
//
// Returns:
//   - []source.TargetItem: batch of targets.
//   - string: next cursor or empty if no more items.
//   - error: non-nil for an invalid cursor.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.TargetItem, string, error) {
	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}

	if startIndex >= len(a.items) {
		return []source.TargetItem{}, "", nil
	}

	endIndex := min(startIndex+limit, len(a.items))
	batch := a.items[startIndex:endIndex]

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}

	return batch, nextCursor, nil
}
