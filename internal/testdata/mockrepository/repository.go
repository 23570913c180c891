package mockrepository

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"funnel-analytics-service/internal/model"
	"funnel-analytics-service/internal/repository"
)

type Repository struct {
	mock.Mock
}

// Interface compliance check
var _ repository.FunnelRepository = &Repository{}

func (m *Repository) RunFunnel(ctx context.Context, q repository.FunnelQuery) (model.StepReach, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.(model.StepReach), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) FetchSessionEvents(ctx context.Context, q repository.FunnelQuery) ([]model.SessionEvents, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.([]model.SessionEvents), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) CountSessions(ctx context.Context, q repository.FunnelQuery) (uint64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *Repository) FetchAverageBookingValue(ctx context.Context, location string) (float64, error) {
	args := m.Called(ctx, location)
	return args.Get(0).(float64), args.Error(1)
}

func (m *Repository) FetchStepLatencies(ctx context.Context, q repository.FunnelQuery) ([]model.LatencyQuantiles, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.([]model.LatencyQuantiles), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) FetchLastStepDwell(ctx context.Context, q repository.FunnelQuery) (float64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(float64), args.Error(1)
}

func (m *Repository) FetchPriceStats(ctx context.Context, q repository.FunnelQuery) ([]model.PriceStepStats, error) {
	args := m.Called(ctx, q)
	if v := args.Get(0); v != nil {
		return v.([]model.PriceStepStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) FetchDropOffPaths(ctx context.Context, q repository.FunnelQuery, step int) (map[string]uint64, error) {
	args := m.Called(ctx, q, step)
	if v := args.Get(0); v != nil {
		return v.(map[string]uint64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) FetchCohortRecovery(ctx context.Context, q repository.FunnelQuery, step int, recoveryWindow time.Duration) (uint64, uint64, float64, error) {
	args := m.Called(ctx, q, step, recoveryWindow)
	return args.Get(0).(uint64), args.Get(1).(uint64), args.Get(2).(float64), args.Error(3)
}

func (m *Repository) FetchFrictionPoints(ctx context.Context, stage uint8) ([]model.FrictionPoint, error) {
	args := m.Called(ctx, stage)
	if v := args.Get(0); v != nil {
		return v.([]model.FrictionPoint), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Repository) ListEventTypes(ctx context.Context, sinceDays int) ([]model.EventTypeInfo, error) {
	args := m.Called(ctx, sinceDays)
	if v := args.Get(0); v != nil {
		return v.([]model.EventTypeInfo), args.Error(1)
	}
	return nil, args.Error(1)
}
