package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTargets(t *testing.T) {
	fromArgs, err := loadTargets([]string{"example.com", "example.org"}, "")
	if err != nil || fromArgs.Len() != 2 {
		t.Fatalf("loadTargets(args) = %v, %v", fromArgs, err)
	}

	path := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(path, []byte("# hosts\nexample.com\n\n  https://golang.org/doc  \n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fromFile, err := loadTargets(nil, path)
	if err != nil {
		t.Fatalf("loadTargets(file): %v", err)
	}
	items, _, err := fromFile.FetchBatch(context.Background(), "", fromFile.Len())
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(items) != 2 || items[1].URL != "https://golang.org/doc" {
		t.Errorf("unexpected items: %+v", items)
	}

	if _, err := loadTargets([]string{"example.com"}, path); err == nil {
		t.Error("expected error when mixing arguments and -file")
	}
}
