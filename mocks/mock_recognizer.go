package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docextract/internal/domain"
)

// MockRecognizer is a mock implementation of port.Recognizer.
type MockRecognizer struct {
	mock.Mock
}

func (m *MockRecognizer) Recognize(ctx context.Context, page domain.Page) ([]domain.OCRToken, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OCRToken), args.Error(1)
}
