package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docextract/internal/domain"
	"docextract/internal/service"
)

// MockExtractionService is a mock implementation of service.ExtractionService.
type MockExtractionService struct {
	mock.Mock
}

func (m *MockExtractionService) Process(ctx context.Context, input service.ProcessInput) (*service.ProcessResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}

func (m *MockExtractionService) GetRecord(ctx context.Context, documentID uuid.UUID) (*domain.StoredRecord, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoredRecord), args.Error(1)
}

func (m *MockExtractionService) ListRecent(ctx context.Context, limit int) ([]domain.StoredRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredRecord), args.Error(1)
}
