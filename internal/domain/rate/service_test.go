package rate

import (
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockProvider struct {
	mock.Mock
}

func (_m *MockProvider) LatestObservation(ctx context.Context) (*Observation, error) {
	ret := _m.Called(ctx)

	var r0 *Observation
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Observation)
	}
	return r0, ret.Error(1)
}

func TestBenchmarkService_CurrentRate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the observation rate", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("LatestObservation", ctx).Return(&Observation{
			SeriesID: "DPRIME",
			Date:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Rate:     decimal.RequireFromString("8.50"),
			Source:   SourceFred,
		}, nil).Once()

		svc := NewBenchmarkService(provider, logger)
		got, err := svc.CurrentRate(ctx)

		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString("8.5")))
		provider.AssertExpectations(t)
	})

	t.Run("wraps provider failures", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("LatestObservation", ctx).Return(nil, errors.New("timeout")).Once()

		svc := NewBenchmarkService(provider, logger)
		_, err := svc.CurrentRate(ctx)

		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrRateUnavailable))
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "RATE_UNAVAILABLE", appErr.Code)
	})

	t.Run("nil observation is unavailable", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("LatestObservation", ctx).Return(nil, nil).Once()

		svc := NewBenchmarkService(provider, logger)
		_, err := svc.LatestObservation(ctx)

		assert.True(t, errors.Is(err, apperrors.ErrRateUnavailable))
	})
}
