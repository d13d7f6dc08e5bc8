package rates

import (
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRateRepository struct {
	mock.Mock
}

func (_m *MockRateRepository) SaveObservation(ctx context.Context, obs *rate.Observation) error {
	return _m.Called(ctx, obs).Error(0)
}

func (_m *MockRateRepository) LatestObservation(ctx context.Context, seriesID string) (*rate.Observation, error) {
	ret := _m.Called(ctx, seriesID)
	var r0 *rate.Observation
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*rate.Observation)
	}
	return r0, ret.Error(1)
}

func TestStoredProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored observation", func(t *testing.T) {
		repo := new(MockRateRepository)
		repo.On("LatestObservation", ctx, "DPRIME").Return(sampleObservation(), nil).Once()

		obs, err := NewStoredProvider(repo, "DPRIME").LatestObservation(ctx)

		require.NoError(t, err)
		assert.Equal(t, rate.SourceDatabase, obs.Source)
		repo.AssertExpectations(t)
	})

	t.Run("missing series is unavailable", func(t *testing.T) {
		repo := new(MockRateRepository)
		repo.On("LatestObservation", ctx, "DPRIME").
			Return(nil, fmt.Errorf("%w: no observation", apperrors.ErrNotFound)).Once()

		_, err := NewStoredProvider(repo, "DPRIME").LatestObservation(ctx)

		assert.True(t, errors.Is(err, apperrors.ErrRateUnavailable))
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("database failure is unavailable", func(t *testing.T) {
		repo := new(MockRateRepository)
		repo.On("LatestObservation", ctx, "DPRIME").
			Return(nil, apperrors.WrapDatabaseError(errors.New("conn reset"), "query failed")).Once()

		_, err := NewStoredProvider(repo, "DPRIME").LatestObservation(ctx)

		assert.True(t, errors.Is(err, apperrors.ErrRateUnavailable))
		assert.True(t, errors.Is(err, apperrors.ErrDatabase))
	})
}
