// Package storage selects the archive backend from configuration.
package storage

import (
	"context"
	"fmt"
	"strings"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/port"
	"docextract/internal/storage/gcs"
	"docextract/internal/storage/noop"
	"docextract/internal/storage/s3"
)

// New returns the ObjectStorage for cfg.Provider together with the bucket to write to.
// The none provider returns a no-op store and an empty bucket.
func New(ctx context.Context, cfg *config.StorageConfig) (port.ObjectStorage, string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return noop.NewStorage(), "", nil
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, "", fmt.Errorf("%w: storage.s3.bucket", domain.ErrConfigurationMissing)
		}
		c, err := s3.NewS3Client(ctx, &cfg.S3)
		return c, cfg.S3.Bucket, err
	case "gcs":
		if cfg.GCS.Bucket == "" {
			return nil, "", fmt.Errorf("%w: storage.gcs.bucket", domain.ErrConfigurationMissing)
		}
		c, err := gcs.NewGCSClient(ctx, &cfg.GCS)
		return c, cfg.GCS.Bucket, err
	default:
		return nil, "", fmt.Errorf("%w: unknown storage provider %q", domain.ErrInvalidConfiguration, cfg.Provider)
	}
}
