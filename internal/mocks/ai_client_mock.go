package mocks

import (
	"context"

	"storyteller-bot/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockAIClient is a mock type for the AIClient type
type MockAIClient struct {
	mock.Mock
}

// GenerateText provides a mock function with given fields: ctx, userID, systemPrompt, userInput, params
func (_m *MockAIClient) GenerateText(ctx context.Context, userID string, systemPrompt string, userInput string, params service.GenerationParams) (string, service.UsageInfo, error) {
	ret := _m.Called(ctx, userID, systemPrompt, userInput, params)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, service.GenerationParams) string); ok {
		r0 = rf(ctx, userID, systemPrompt, userInput, params)
	} else {
		r0 = ret.String(0)
	}

	var r1 service.UsageInfo
	if rf, ok := ret.Get(1).(func(context.Context, string, string, string, service.GenerationParams) service.UsageInfo); ok {
		r1 = rf(ctx, userID, systemPrompt, userInput, params)
	} else if ret.Get(1) != nil {
		r1 = ret.Get(1).(service.UsageInfo)
	}

	var r2 error
	if rf, ok := ret.Get(2).(func(context.Context, string, string, string, service.GenerationParams) error); ok {
		r2 = rf(ctx, userID, systemPrompt, userInput, params)
	} else {
		r2 = ret.Error(2)
	}

	return r0, r1, r2
}

// NewMockAIClient creates a new instance of MockAIClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockAIClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.AIClient = (*MockAIClient)(nil)
