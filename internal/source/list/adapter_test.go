package list

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFromReader(t *testing.T) {
	input := strings.Join([]string{
		"# seed list",
		"example.com",
		"",
		`{"id":"go","url":"https://golang.org/doc","tags":["docs"]}`,
		"  news.ycombinator.com  ",
	}, "\n")

	a, err := FromReader("seed", strings.NewReader(input))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if a.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", a.Len())
	}

	items, next, err := a.FetchBatch(context.Background(), "", 10)
	if err != nil || next != "" {
		t.Fatalf("FetchBatch = %v, %q, %v", items, next, err)
	}
	if items[0].URL != "example.com" || items[0].SourceID != "seed_2" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].URL != "https://golang.org/doc" || items[1].SourceID != "seed_go" || len(items[1].Tags) != 1 {
		t.Errorf("unexpected json item: %+v", items[1])
	}
	if items[2].URL != "news.ycombinator.com" {
		t.Errorf("unexpected trimmed item: %+v", items[2])
	}
}

func TestFromReader_MalformedJSON(t *testing.T) {
	if _, err := FromReader("bad", strings.NewReader("{not json")); err == nil {
		t.Error("expected error for malformed json line")
	}
}

func TestFetchBatch_Paging(t *testing.T) {
	a := FromStrings("batch", []string{"a", "b", "c", "d", "e"})
	ctx := context.Background()

	var got []string
	cursor := ""
	pages := 0
	for {
		items, next, err := a.FetchBatch(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("FetchBatch: %v", err)
		}
		pages++
		for _, item := range items {
			got = append(got, item.URL)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if strings.Join(got, ",") != "a,b,c,d,e" || pages != 3 {
		t.Errorf("got %v in %d pages", got, pages)
	}

	if _, _, err := a.FetchBatch(ctx, "x", 2); err == nil {
		t.Error("expected error for invalid cursor")
	}
	items, next, err := a.FetchBatch(ctx, "9", 2)
	if err != nil || len(items) != 0 || next != "" {
		t.Errorf("out of range FetchBatch = %v, %q, %v", items, next, err)
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(path, []byte("example.com\nexample.org\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if a.Len() != 2 || a.GetSourceID() != "file:"+path {
		t.Errorf("unexpected adapter: %s with %d items", a.GetSourceID(), a.Len())
	}

	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
