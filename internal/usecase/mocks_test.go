package usecase_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/siting-service/internal/domain"
)

// MockCoverageRepository is a mock of CoverageRepository
type MockCoverageRepository struct {
	mock.Mock
}

func (m *MockCoverageRepository) Save(ctx context.Context, artifact *domain.CoverageArtifact) error {
	args := m.Called(ctx, artifact)
	return args.Error(0)
}

func (m *MockCoverageRepository) GetByKey(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CoverageArtifact), args.Error(1)
}

func (m *MockCoverageRepository) Exists(ctx context.Context, key domain.CoverageKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCoverageRepository) ListKeys(ctx context.Context, region string) ([]domain.CoverageKey, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CoverageKey), args.Error(1)
}

func (m *MockCoverageRepository) Delete(ctx context.Context, key domain.CoverageKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockCacheRepository is a mock of CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepository) GetCoverage(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CoverageArtifact), args.Error(1)
}

func (m *MockCacheRepository) SetCoverage(ctx context.Context, artifact *domain.CoverageArtifact, ttl time.Duration) error {
	args := m.Called(ctx, artifact, ttl)
	return args.Error(0)
}

func (m *MockCacheRepository) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, name, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCacheRepository) ReleaseLock(ctx context.Context, name, token string) error {
	args := m.Called(ctx, name, token)
	return args.Error(0)
}

// MockLocationSource is a mock of LocationSource
type MockLocationSource struct {
	mock.Mock
}

func (m *MockLocationSource) Network(ctx context.Context, region string, mode domain.TravelMode) (*domain.Network, error) {
	args := m.Called(ctx, region, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Network), args.Error(1)
}

func (m *MockLocationSource) Demand(ctx context.Context, region string) ([]domain.DemandPoint, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DemandPoint), args.Error(1)
}

func (m *MockLocationSource) Supply(ctx context.Context, region string) ([]domain.SupplyCandidate, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SupplyCandidate), args.Error(1)
}

// MockScenarioRepository is a mock of ScenarioRepository
type MockScenarioRepository struct {
	mock.Mock
}

func (m *MockScenarioRepository) SaveRun(ctx context.Context, run *domain.ScenarioRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockScenarioRepository) GetRun(ctx context.Context, id uuid.UUID) (*domain.ScenarioRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScenarioRun), args.Error(1)
}

func (m *MockScenarioRepository) LatestRuns(ctx context.Context, regions []string) ([]*domain.ScenarioRun, error) {
	args := m.Called(ctx, regions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ScenarioRun), args.Error(1)
}

// MockCoverageProvider is a mock of CoverageProvider
type MockCoverageProvider struct {
	mock.Mock
}

func (m *MockCoverageProvider) Get(ctx context.Context, key domain.CoverageKey) (*domain.CoverageArtifact, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CoverageArtifact), args.Error(1)
}
