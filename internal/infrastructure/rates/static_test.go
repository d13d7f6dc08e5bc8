package rates

import (
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	t.Run("returns the configured rate", func(t *testing.T) {
		p, err := NewStaticProvider("DPRIME", "7.25")
		require.NoError(t, err)
		p.now = func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) }

		obs, err := p.LatestObservation(context.Background())

		require.NoError(t, err)
		assert.True(t, obs.Rate.Equal(decimal.RequireFromString("7.25")))
		assert.Equal(t, rate.SourceStatic, obs.Source)
		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), obs.Date)
	})

	t.Run("rejects non numeric rates", func(t *testing.T) {
		_, err := NewStaticProvider("DPRIME", "eight")
		assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	})

	t.Run("rejects negative rates", func(t *testing.T) {
		_, err := NewStaticProvider("DPRIME", "-1")
		assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	})
}
