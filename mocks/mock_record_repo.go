package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docextract/internal/domain"
)

// MockRecordRepository is a mock implementation of port.RecordRepository.
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Save(ctx context.Context, rec *domain.StoredRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRecordRepository) GetByID(ctx context.Context, documentID uuid.UUID) (*domain.StoredRecord, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoredRecord), args.Error(1)
}

func (m *MockRecordRepository) ListRecent(ctx context.Context, limit int) ([]domain.StoredRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredRecord), args.Error(1)
}
