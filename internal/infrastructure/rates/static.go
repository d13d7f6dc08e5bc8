package rates

import (
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StaticProvider always returns the same rate. Used offline and for what-if calculations.
type StaticProvider struct {
	seriesID string
	value    decimal.Decimal
	now      func() time.Time
}

func NewStaticProvider(seriesID, value string) (*StaticProvider, error) {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: static rate %q is not a number", apperrors.ErrInvalidArgument, value)
	}
	if parsed.IsNegative() {
		return nil, fmt.Errorf("%w: static rate %q is negative", apperrors.ErrInvalidArgument, value)
	}
	return &StaticProvider{seriesID: seriesID, value: parsed, now: time.Now}, nil
}

func (p *StaticProvider) LatestObservation(_ context.Context) (*rate.Observation, error) {
	now := p.now().UTC()
	return &rate.Observation{
		SeriesID:  p.seriesID,
		Date:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Rate:      p.value,
		Source:    rate.SourceStatic,
		FetchedAt: now,
	}, nil
}

var _ rate.Provider = (*StaticProvider)(nil)
