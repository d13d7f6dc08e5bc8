package rate

import (
	"amortization-engine/internal/infrastructure/monitoring"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

type BenchmarkService interface {
	// CurrentRate fetches the benchmark annual rate once per call.
	CurrentRate(ctx context.Context) (decimal.Decimal, error)

	LatestObservation(ctx context.Context) (*Observation, error)
}

type benchmarkServiceImpl struct {
	provider Provider
	logger   *slog.Logger
}

func NewBenchmarkService(provider Provider, logger *slog.Logger) BenchmarkService {
	return &benchmarkServiceImpl{
		provider: provider,
		logger:   logger.With("component", "BenchmarkService"),
	}
}

func (s *benchmarkServiceImpl) CurrentRate(ctx context.Context) (decimal.Decimal, error) {
	obs, err := s.LatestObservation(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return obs.Rate, nil
}

func (s *benchmarkServiceImpl) LatestObservation(ctx context.Context) (*Observation, error) {
	obs, err := s.provider.LatestObservation(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Benchmark rate lookup failed", "error", err)
		if errors.Is(err, apperrors.ErrRateUnavailable) {
			return nil, err
		}
		return nil, apperrors.WrapRateError(err, "benchmark rate lookup failed")
	}
	if obs == nil {
		return nil, fmt.Errorf("%w: provider returned no observation", apperrors.ErrRateUnavailable)
	}

	s.logger.DebugContext(ctx, "Benchmark rate resolved",
		"seriesId", obs.SeriesID,
		"date", obs.Date.Format("2006-01-02"),
		"rate", obs.Rate.String(),
		"source", obs.Source,
	)
	monitoring.RecordCurrentRate(obs.SeriesID, obs.Rate.InexactFloat64())
	return obs, nil
}
