package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docextract/internal/port"
)

// MockProvider is a mock implementation of parser.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Classify(ctx context.Context, input port.ClassifyInput) (*port.Classification, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.Classification), args.Error(1)
}

func (m *MockProvider) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ExtractOutput), args.Error(1)
}
