package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/ninjascan/internal/config"
	"github.com/timmy/ninjascan/internal/domain"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *ScreenshotRepository {
	t.Helper()

	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "nested", "screenshots.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewScreenshotRepository(db)
}

func seed(t *testing.T, repo *ScreenshotRepository, shots ...domain.Screenshot) {
	t.Helper()
	for i := range shots {
		if err := repo.Create(context.Background(), &shots[i]); err != nil {
			t.Fatalf("Create %s: %v", shots[i].ID, err)
		}
	}
}

func TestInitDB_UnsupportedDriver(t *testing.T) {
	if _, err := InitDB(&config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Error("expected an error for an unsupported driver")
	}
}

func TestLatestByHost(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	seed(t, repo,
		domain.Screenshot{ID: "old", Host: "example.com", Target: "https://example.com", Status: domain.CaptureStatusCaptured, CapturedAt: base},
		domain.Screenshot{ID: "newer", Host: "example.com", Target: "https://example.com", Status: domain.CaptureStatusCaptured, CapturedAt: base.Add(time.Hour)},
		domain.Screenshot{ID: "newest-failed", Host: "example.com", Target: "https://example.com", Status: domain.CaptureStatusFailed, CapturedAt: base.Add(2 * time.Hour)},
		domain.Screenshot{ID: "other", Host: "other.test", Target: "https://other.test", Status: domain.CaptureStatusCaptured, CapturedAt: base.Add(3 * time.Hour)},
	)

	tests := []struct {
		name   string
		host   string
		status domain.CaptureStatus
		wantID string
	}{
		{"any status", "example.com", "", "newest-failed"},
		{"captured only", "example.com", domain.CaptureStatusCaptured, "newer"},
		{"failed only", "example.com", domain.CaptureStatusFailed, "newest-failed"},
		{"other host", "other.test", "", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shot, err := repo.LatestByHost(ctx, tt.host, tt.status)
			if err != nil {
				t.Fatalf("LatestByHost: %v", err)
			}
			if shot.ID != tt.wantID {
				t.Errorf("LatestByHost(%q, %q) = %s, want %s", tt.host, tt.status, shot.ID, tt.wantID)
			}
		})
	}

	if _, err := repo.LatestByHost(ctx, "missing.test", ""); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("missing host error = %v, want ErrRecordNotFound", err)
	}
	if _, err := repo.LatestByHost(ctx, "other.test", domain.CaptureStatusFailed); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("status filter error = %v, want ErrRecordNotFound", err)
	}
}

func TestListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// inserted out of order on purpose
	seed(t, repo,
		domain.Screenshot{ID: "b", Host: "b.test", Target: "https://b.test", Status: domain.CaptureStatusCaptured, CapturedAt: base.Add(2 * time.Minute)},
		domain.Screenshot{ID: "a", Host: "a.test", Target: "https://a.test", Status: domain.CaptureStatusCaptured, CapturedAt: base.Add(1 * time.Minute)},
		domain.Screenshot{ID: "d", Host: "d.test", Target: "https://d.test", Status: domain.CaptureStatusFailed, CapturedAt: base.Add(4 * time.Minute)},
		domain.Screenshot{ID: "c", Host: "c.test", Target: "https://c.test", Status: domain.CaptureStatusCaptured, CapturedAt: base.Add(3 * time.Minute)},
	)

	page, total, err := repo.ListRecent(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if len(page) != 2 || page[0].ID != "d" || page[1].ID != "c" {
		t.Errorf("first page = %v, want [d c]", ids(page))
	}

	page, _, err = repo.ListRecent(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListRecent offset: %v", err)
	}
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "a" {
		t.Errorf("second page = %v, want [b a]", ids(page))
	}

	page, total, err = repo.ListRecent(ctx, 10, 10)
	if err != nil || len(page) != 0 || total != 4 {
		t.Errorf("past the end = %v, %d, %v", ids(page), total, err)
	}
}

func TestDeleteByHost(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	seed(t, repo,
		domain.Screenshot{ID: "a1", Host: "a.test", Target: "https://a.test", Status: domain.CaptureStatusCaptured, StorageKey: "screenshots/aa/shared.png", CapturedAt: now},
		domain.Screenshot{ID: "a2", Host: "a.test", Target: "https://a.test", Status: domain.CaptureStatusFailed, CapturedAt: now},
		domain.Screenshot{ID: "b1", Host: "b.test", Target: "https://b.test", Status: domain.CaptureStatusCaptured, StorageKey: "screenshots/aa/shared.png", CapturedAt: now},
	)

	if n, err := repo.CountByStorageKey(ctx, "screenshots/aa/shared.png"); err != nil || n != 2 {
		t.Fatalf("CountByStorageKey before delete = %d, %v; want 2", n, err)
	}

	deleted, err := repo.DeleteByHost(ctx, "a.test")
	if err != nil {
		t.Fatalf("DeleteByHost: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted %v, want a1 and a2", ids(deleted))
	}
	if deleted[0].StorageKey == "" && deleted[1].StorageKey == "" {
		t.Error("deleted records lost their storage key")
	}

	if _, err := repo.LatestByHost(ctx, "a.test", ""); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("a.test still present: %v", err)
	}
	if shot, err := repo.LatestByHost(ctx, "b.test", ""); err != nil || shot.ID != "b1" {
		t.Errorf("b.test record = %v, %v", shot, err)
	}
	if n, err := repo.CountByStorageKey(ctx, "screenshots/aa/shared.png"); err != nil || n != 1 {
		t.Errorf("CountByStorageKey after delete = %d, %v; want 1", n, err)
	}

	deleted, err = repo.DeleteByHost(ctx, "a.test")
	if err != nil || len(deleted) != 0 {
		t.Errorf("second DeleteByHost = %v, %v", ids(deleted), err)
	}
}

func ids(shots []domain.Screenshot) []string {
	out := make([]string, len(shots))
	for i, s := range shots {
		out[i] = s.ID
	}
	return out
}
