package domain

import "time"

// CaptureStatus represents the outcome of a screenshot capture.
// Values include CaptureStatusCaptured and CaptureStatusFailed.
type CaptureStatus string

const (
	CaptureStatusCaptured CaptureStatus = "captured"
	CaptureStatusFailed   CaptureStatus = "failed"
)

// Screenshot is a persisted website preview for one host.
// ImageURL is the provider candidate that loaded; ArchiveURL points at the
// archived copy in object storage when archival is enabled.
type Screenshot struct {
	ID          string        `gorm:"type:text;primaryKey" json:"id"`
	Host        string        `gorm:"type:text;not null;index:idx_screenshots_host" json:"host"`
	Target      string        `gorm:"type:text;not null" json:"target"`
	Provider    string        `gorm:"type:text" json:"provider,omitempty"`
	ImageURL    string        `gorm:"type:text" json:"image_url,omitempty"`
	Status      CaptureStatus `gorm:"type:text;index:idx_screenshots_status;default:captured" json:"status"`
	Reason      string        `gorm:"type:text" json:"reason,omitempty"`
	Attempts    int           `json:"attempts"`
	StorageKey  string        `gorm:"type:text" json:"storage_key,omitempty"`
	ArchiveURL  string        `gorm:"type:text" json:"archive_url,omitempty"`
	ContentType string        `gorm:"type:text" json:"content_type,omitempty"`
	Width       int           `json:"width,omitempty"`
	Height      int           `json:"height,omitempty"`
	FileSize    int64         `json:"file_size,omitempty"`
	MD5Hash     string        `gorm:"type:text" json:"md5_hash,omitempty"`
	CapturedAt  time.Time     `gorm:"index:idx_screenshots_captured_at" json:"captured_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Screenshot.
func (Screenshot) TableName() string {
	return "screenshots"
}

// Captured reports whether the record holds a usable image.
func (s *Screenshot) Captured() bool {
	return s.Status == CaptureStatusCaptured && s.ImageURL != ""
}

// DisplayURL prefers the archived copy over the third-party URL.
func (s *Screenshot) DisplayURL() string {
	if s.ArchiveURL != "" {
		return s.ArchiveURL
	}
	return s.ImageURL
}
