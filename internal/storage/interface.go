package storage

import (
	"context"
	"io"
)

// ObjectStorage holds archived screenshot images under content-addressed keys.
type ObjectStorage interface {
	// EnsureBucket creates the configured bucket when it is missing.
	EnsureBucket(ctx context.Context) error

	// Upload writes an image under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens the image stored under key. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL is the public address of key.
	GetURL(key string) string

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is stored, so identical images upload once.
	Exists(ctx context.Context, key string) (bool, error)
}
