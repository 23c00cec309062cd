package noop

import (
	"context"
	"fmt"
	"io"

	"docextract/internal/port"
)

// Storage discards every object. It is used when archiving is disabled.
type Storage struct{}

// NewStorage creates a no-op ObjectStorage.
func NewStorage() port.ObjectStorage {
	return Storage{}
}

func (Storage) Upload(_ context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	if input.Body != nil {
		if _, err := io.Copy(io.Discard, input.Body); err != nil {
			return nil, fmt.Errorf("noop upload: %w", err)
		}
	}
	return &port.UploadOutput{Location: "noop://" + input.Bucket + "/" + input.Key}, nil
}

func (Storage) Delete(context.Context, string, string) error {
	return nil
}
