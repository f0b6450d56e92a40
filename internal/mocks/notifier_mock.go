package mocks

import (
	"context"

	"storyteller-bot/internal/messaging"
	"storyteller-bot/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock type for the Notifier type
type MockNotifier struct {
	mock.Mock
}

// StoryGenerated provides a mock function with given fields: ctx, event
func (_m *MockNotifier) StoryGenerated(ctx context.Context, event models.StoryGeneratedEvent) error {
	ret := _m.Called(ctx, event)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, models.StoryGeneratedEvent) error); ok {
		r0 = rf(ctx, event)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockNotifier creates a new instance of MockNotifier. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ messaging.Notifier = (*MockNotifier)(nil)
