package mockservice

import (
	"context"

	"github.com/stretchr/testify/mock"

	"funnel-analytics-service/internal/model"
	"funnel-analytics-service/internal/preset"
	"funnel-analytics-service/internal/service"
)

type Service struct {
	mock.Mock
}

// Interface compliance check
var _ service.FunnelService = &Service{}

func (m *Service) ComputeFunnel(ctx context.Context, req model.FunnelRequest) (model.FunnelResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.FunnelResponse), args.Error(1)
}

func (m *Service) ComputeLatency(ctx context.Context, req model.FunnelRequest) ([]model.StepLatency, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.([]model.StepLatency), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Service) ComputePriceSensitivity(ctx context.Context, req model.FunnelRequest) ([]model.PriceStepStats, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.([]model.PriceStepStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Service) ComputeDropOffPaths(ctx context.Context, req model.FunnelRequest, step int) (model.PathAnalysis, error) {
	args := m.Called(ctx, req, step)
	return args.Get(0).(model.PathAnalysis), args.Error(1)
}

func (m *Service) ComputeCohortRecovery(ctx context.Context, req model.FunnelRequest, step int) (model.CohortRecovery, error) {
	args := m.Called(ctx, req, step)
	return args.Get(0).(model.CohortRecovery), args.Error(1)
}

func (m *Service) GetFrictionPoints(ctx context.Context, stepName string) ([]model.FrictionPoint, error) {
	args := m.Called(ctx, stepName)
	if v := args.Get(0); v != nil {
		return v.([]model.FrictionPoint), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Service) ListPresets() []preset.Funnel {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]preset.Funnel)
	}
	return nil
}

type Metadata struct {
	mock.Mock
}

var _ service.MetadataService = &Metadata{}

func (m *Metadata) DiscoverEventTypes(ctx context.Context) ([]model.EventTypeInfo, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.EventTypeInfo), args.Error(1)
	}
	return nil, args.Error(1)
}
