package rates

import (
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/infrastructure/monitoring"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"time"
)

// StoredProvider serves the newest observation persisted by the refresh job.
type StoredProvider struct {
	repo     rate.Repository
	seriesID string
}

func NewStoredProvider(repo rate.Repository, seriesID string) *StoredProvider {
	return &StoredProvider{repo: repo, seriesID: seriesID}
}

func (p *StoredProvider) LatestObservation(ctx context.Context) (*rate.Observation, error) {
	start := time.Now()
	obs, err := p.repo.LatestObservation(ctx, p.seriesID)
	if err != nil {
		monitoring.RecordRateFetch(rate.SourceDatabase, "error", time.Since(start))
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.WrapRateError(err, fmt.Sprintf("no stored observation for series %s", p.seriesID))
		}
		return nil, apperrors.WrapRateError(err, "failed to load stored benchmark rate")
	}
	monitoring.RecordRateFetch(rate.SourceDatabase, "success", time.Since(start))
	obs.Source = rate.SourceDatabase
	return obs, nil
}

var _ rate.Provider = (*StoredProvider)(nil)
