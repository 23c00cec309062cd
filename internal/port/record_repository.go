package port

import (
	"context"

	"github.com/google/uuid"

	"docextract/internal/domain"
)

// RecordRepository persists extraction records.
type RecordRepository interface {
	// Save inserts the record, replacing any earlier record for the same document.
	Save(ctx context.Context, rec *domain.StoredRecord) error
	GetByID(ctx context.Context, documentID uuid.UUID) (*domain.StoredRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.StoredRecord, error)
}
