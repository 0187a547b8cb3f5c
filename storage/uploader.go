package storage

import (
	"context"
	"io"
)

// UploadResult identifies a stored export: the object key, its public
// location, and the ETag the backend returned.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader is the object-storage seam for event exports (ranking and
// bracket CSV snapshots). Implementations own bucket addressing; callers only
// pick keys.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}
