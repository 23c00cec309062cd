package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docextract/internal/domain"
)

// MockDocumentProcessor is a mock implementation of service.DocumentProcessor.
type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) Process(ctx context.Context, doc domain.Document, customFields []string) (*domain.Record, error) {
	args := m.Called(ctx, doc, customFields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}
