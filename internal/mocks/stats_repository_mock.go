package mocks

import (
	"context"

	"storyteller-bot/internal/models"
	"storyteller-bot/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockStatsRepository is a mock type for the StatsRepository type
type MockStatsRepository struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, userID
func (_m *MockStatsRepository) Get(ctx context.Context, userID int64) (models.UserStats, error) {
	ret := _m.Called(ctx, userID)

	var r0 models.UserStats
	if rf, ok := ret.Get(0).(func(context.Context, int64) models.UserStats); ok {
		r0 = rf(ctx, userID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.UserStats)
	}

	return r0, ret.Error(1)
}

// Save provides a mock function with given fields: ctx, userID, stats
func (_m *MockStatsRepository) Save(ctx context.Context, userID int64, stats models.UserStats) error {
	return _m.Called(ctx, userID, stats).Error(0)
}

// Delete provides a mock function with given fields: ctx, userID
func (_m *MockStatsRepository) Delete(ctx context.Context, userID int64) error {
	return _m.Called(ctx, userID).Error(0)
}

// NewMockStatsRepository creates a new instance of MockStatsRepository.
func NewMockStatsRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStatsRepository {
	m := &MockStatsRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ repository.StatsRepository = (*MockStatsRepository)(nil)
