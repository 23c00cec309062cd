package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"docextract/internal/config"
	"docextract/internal/port"
)

// defaultChunkSize is the writer's default resumable chunk size.
const defaultChunkSize = 16 << 20

type gcsClient struct {
	client *storage.Client
}

// NewGCSClient creates a new Google Cloud Storage-backed ObjectStorage implementation.
// Without a credentials file the application default credentials are used.
func NewGCSClient(ctx context.Context, cfg *config.GCSConfig) (port.ObjectStorage, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	return &gcsClient{client: client}, nil
}

func (c *gcsClient) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	w := c.client.Bucket(input.Bucket).Object(input.Key).NewWriter(ctx)
	w.ContentType = input.ContentType
	w.Metadata = input.Metadata
	if input.Size > 0 && input.Size < defaultChunkSize {
		// small objects go up in a single request
		w.ChunkSize = 0
	}

	if _, err := io.Copy(w, input.Body); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gcs upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gcs upload finalize: %w", err)
	}

	out := &port.UploadOutput{Location: fmt.Sprintf("gs://%s/%s", input.Bucket, input.Key)}
	if attrs := w.Attrs(); attrs != nil {
		out.ETag = attrs.Etag
	}
	return out, nil
}

// Delete removes an object. A missing object is not an error.
func (c *gcsClient) Delete(ctx context.Context, bucket, key string) error {
	err := c.client.Bucket(bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete: %w", err)
	}
	return nil
}
