package batch_test

import (
	"amortization-engine/internal/batch"
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/event"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) LatestObservation(ctx context.Context) (*rate.Observation, error) {
	args := m.Called(ctx)
	if obs, ok := args.Get(0).(*rate.Observation); ok {
		return obs, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) SaveObservation(ctx context.Context, obs *rate.Observation) error {
	return m.Called(ctx, obs).Error(0)
}

func (m *MockRateRepository) LatestObservation(ctx context.Context, seriesID string) (*rate.Observation, error) {
	args := m.Called(ctx, seriesID)
	if obs, ok := args.Get(0).(*rate.Observation); ok {
		return obs, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockObservationStore struct {
	mock.Mock
}

func (m *MockObservationStore) Store(ctx context.Context, obs *rate.Observation) error {
	return m.Called(ctx, obs).Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishScheduleGenerated(ctx context.Context, ev event.ScheduleGeneratedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockEventPublisher) PublishBenchmarkRateRefreshed(ctx context.Context, ev event.BenchmarkRateRefreshedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func latest() *rate.Observation {
	return &rate.Observation{
		SeriesID:  "DPRIME",
		Date:      time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Rate:      decimal.RequireFromString("8.5"),
		Source:    rate.SourceFred,
		FetchedAt: time.Now().UTC(),
	}
}

func TestRateRefreshJob_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("stores, caches and announces the latest rate", func(t *testing.T) {
		upstream, repo, cache, publisher := new(MockProvider), new(MockRateRepository), new(MockObservationStore), new(MockEventPublisher)
		obs := latest()
		upstream.On("LatestObservation", ctx).Return(obs, nil).Once()
		repo.On("SaveObservation", ctx, obs).Return(nil).Once()
		cache.On("Store", ctx, obs).Return(nil).Once()
		publisher.On("PublishBenchmarkRateRefreshed", ctx, mock.MatchedBy(func(ev event.BenchmarkRateRefreshedEvent) bool {
			return ev.SeriesID == "DPRIME" && ev.Rate.Equal(obs.Rate) && ev.ObservationDate.Equal(obs.Date)
		})).Return(nil).Once()

		job := batch.NewRateRefreshJob(upstream, repo, cache, publisher, discardLogger)

		assert.NoError(t, job.Run(ctx))
		upstream.AssertExpectations(t)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})

	t.Run("upstream failure aborts before storing", func(t *testing.T) {
		upstream, repo := new(MockProvider), new(MockRateRepository)
		upstream.On("LatestObservation", ctx).
			Return(nil, apperrors.WrapRateError(errors.New("timeout"), "FRED request failed")).Once()

		job := batch.NewRateRefreshJob(upstream, repo, nil, nil, discardLogger)
		err := job.Run(ctx)

		assert.True(t, errors.Is(err, apperrors.ErrRateUnavailable))
		repo.AssertNotCalled(t, "SaveObservation", mock.Anything, mock.Anything)
	})

	t.Run("store failure fails the run and skips the event", func(t *testing.T) {
		upstream, repo, publisher := new(MockProvider), new(MockRateRepository), new(MockEventPublisher)
		obs := latest()
		upstream.On("LatestObservation", ctx).Return(obs, nil).Once()
		repo.On("SaveObservation", ctx, obs).
			Return(apperrors.WrapDatabaseError(errors.New("conn reset"), "failed to save benchmark observation")).Once()

		job := batch.NewRateRefreshJob(upstream, repo, nil, publisher, discardLogger)
		err := job.Run(ctx)

		assert.True(t, errors.Is(err, apperrors.ErrDatabase))
		publisher.AssertNotCalled(t, "PublishBenchmarkRateRefreshed", mock.Anything, mock.Anything)
	})

	t.Run("cache and broker failures are tolerated", func(t *testing.T) {
		upstream, repo, cache, publisher := new(MockProvider), new(MockRateRepository), new(MockObservationStore), new(MockEventPublisher)
		obs := latest()
		upstream.On("LatestObservation", ctx).Return(obs, nil).Once()
		repo.On("SaveObservation", ctx, obs).Return(nil).Once()
		cache.On("Store", ctx, obs).Return(errors.New("redis down")).Once()
		publisher.On("PublishBenchmarkRateRefreshed", ctx, mock.Anything).Return(errors.New("broker down")).Once()

		job := batch.NewRateRefreshJob(upstream, repo, cache, publisher, discardLogger)

		assert.NoError(t, job.Run(ctx))
		cache.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})
}

func TestNewRateRefreshJob_PanicsOnMissingDependencies(t *testing.T) {
	assert.Panics(t, func() {
		batch.NewRateRefreshJob(nil, new(MockRateRepository), nil, nil, discardLogger)
	})
}
