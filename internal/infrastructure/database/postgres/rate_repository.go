package postgres

import (
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/infrastructure/monitoring"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

const (
	createBenchmarkRatesTable = `
	CREATE TABLE IF NOT EXISTS benchmark_rates (
		series_id        TEXT           NOT NULL,
		observation_date DATE           NOT NULL,
		rate             NUMERIC(12, 6) NOT NULL,
		source           TEXT           NOT NULL,
		fetched_at       TIMESTAMPTZ    NOT NULL,
		PRIMARY KEY (series_id, observation_date)
	)`

	upsertObservation = `
	INSERT INTO benchmark_rates (series_id, observation_date, rate, source, fetched_at)
	VALUES ($1, $2, $3::numeric, $4, $5)
	ON CONFLICT (series_id, observation_date)
	DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source, fetched_at = EXCLUDED.fetched_at`

	selectLatestObservation = `
	SELECT series_id, observation_date, rate::text, source, fetched_at
	FROM benchmark_rates
	WHERE series_id = $1
	ORDER BY observation_date DESC
	LIMIT 1`
)

type RateRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ rate.Repository = (*RateRepository)(nil)

func NewRateRepository(db DBPool, logger *slog.Logger) *RateRepository {
	if db == nil {
		panic("DBPool cannot be nil for RateRepository")
	}
	return &RateRepository{db: db, logger: logger.With("component", "RateRepository")}
}

func (r *RateRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createBenchmarkRatesTable); err != nil {
		r.logger.ErrorContext(ctx, "Failed to create benchmark_rates table", "error", err)
		return apperrors.WrapDatabaseError(err, "failed to create benchmark_rates table")
	}
	return nil
}

func (r *RateRepository) SaveObservation(ctx context.Context, obs *rate.Observation) error {
	if obs == nil {
		return fmt.Errorf("%w: observation is nil", apperrors.ErrInvalidArgument)
	}

	startTime := time.Now()
	status := "success"
	_, err := r.db.Exec(ctx, upsertObservation,
		obs.SeriesID,
		obs.Date,
		obs.Rate.String(),
		obs.Source,
		obs.FetchedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("SaveObservation", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to save benchmark observation", "seriesId", obs.SeriesID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to save benchmark observation")
	}

	r.logger.InfoContext(ctx, "Benchmark observation saved",
		"seriesId", obs.SeriesID, "date", obs.Date.Format(time.DateOnly), "rate", obs.Rate.String())
	return nil
}

func (r *RateRepository) LatestObservation(ctx context.Context, seriesID string) (*rate.Observation, error) {
	startTime := time.Now()
	status := "success"

	var (
		obs     rate.Observation
		rawRate string
	)
	err := r.db.QueryRow(ctx, selectLatestObservation, seriesID).Scan(
		&obs.SeriesID,
		&obs.Date,
		&rawRate,
		&obs.Source,
		&obs.FetchedAt,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		status = "error"
	}
	monitoring.RecordDBQuery("LatestObservation", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "No benchmark observation stored", "seriesId", seriesID)
			return nil, fmt.Errorf("%w: no observation for series %s", apperrors.ErrNotFound, seriesID)
		}
		r.logger.ErrorContext(ctx, "Failed to load benchmark observation", "seriesId", seriesID, "error", err)
		return nil, apperrors.WrapDatabaseError(err, "failed to load benchmark observation")
	}

	obs.Rate, err = decimal.NewFromString(rawRate)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err, fmt.Sprintf("stored rate %q is not a number", rawRate))
	}
	obs.Date = obs.Date.UTC()
	return &obs, nil
}
