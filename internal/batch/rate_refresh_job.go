package batch

import (
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/event"
	"amortization-engine/internal/infrastructure/monitoring"
	"context"
	"fmt"
	"log/slog"
	"time"
)

const rateRefreshJobName = "RateRefresh"

// ObservationStore receives every freshly fetched observation, e.g. the rate cache.
type ObservationStore interface {
	Store(ctx context.Context, obs *rate.Observation) error
}

type RateRefreshJob struct {
	upstream  rate.Provider
	repo      rate.Repository
	cache     ObservationStore
	publisher event.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewRateRefreshJob builds the job. cache and publisher are optional.
func NewRateRefreshJob(
	upstream rate.Provider,
	repo rate.Repository,
	cache ObservationStore,
	publisher event.EventPublisher,
	logger *slog.Logger,
) *RateRefreshJob {
	if upstream == nil || repo == nil || logger == nil {
		panic("RateRefreshJob dependencies cannot be nil")
	}
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &RateRefreshJob{
		upstream:  upstream,
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger.With("job", rateRefreshJobName),
		now:       time.Now,
	}
}

// Run fetches the latest benchmark observation and persists it. Cache and
// event failures are logged but do not fail the run once the row is stored.
func (j *RateRefreshJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting benchmark rate refresh job.")

	obs, err := j.upstream.LatestObservation(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to fetch benchmark rate, aborting job.", slog.Any("error", err))
		monitoring.RecordBatchRun(rateRefreshJobName, "error")
		return fmt.Errorf("cannot run job, failed to fetch benchmark rate: %w", err)
	}
	logCtx := j.logger.With(
		slog.String("seriesId", obs.SeriesID),
		slog.String("date", obs.Date.Format(time.DateOnly)),
		slog.String("rate", obs.Rate.String()),
	)

	if err := j.repo.SaveObservation(ctx, obs); err != nil {
		logCtx.ErrorContext(ctx, "Failed to store benchmark rate.", slog.Any("error", err))
		monitoring.RecordBatchRun(rateRefreshJobName, "error")
		return fmt.Errorf("failed to store benchmark rate: %w", err)
	}

	if j.cache != nil {
		if err := j.cache.Store(ctx, obs); err != nil {
			logCtx.WarnContext(ctx, "Failed to refresh benchmark rate cache.", slog.Any("error", err))
		}
	}

	refreshed := event.BenchmarkRateRefreshedEvent{
		SeriesID:        obs.SeriesID,
		ObservationDate: obs.Date,
		Rate:            obs.Rate,
		Timestamp:       j.now().UTC(),
	}
	if err := j.publisher.PublishBenchmarkRateRefreshed(ctx, refreshed); err != nil {
		logCtx.WarnContext(ctx, "Failed to publish benchmark rate refreshed event.", slog.Any("error", err))
	}

	monitoring.RecordBatchRun(rateRefreshJobName, "success")
	monitoring.RecordCurrentRate(obs.SeriesID, obs.Rate.InexactFloat64())
	logCtx.InfoContext(ctx, "Benchmark rate refresh job finished.", slog.Duration("duration", time.Since(startTime)))
	return nil
}
