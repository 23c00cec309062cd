package port

import (
	"context"
	"io"
)

// UploadInput describes one archived object.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	// Size is the body length in bytes, or 0 when unknown.
	Size int64
	// Metadata is stored with the object (S3 user metadata, GCS custom metadata).
	Metadata map[string]string
}

// UploadOutput is where an object ended up.
type UploadOutput struct {
	Location string
	ETag     string
}

// ObjectStorage archives source files and record JSON.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	// Delete removes an object; deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}
