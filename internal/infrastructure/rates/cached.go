package rates

import (
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/infrastructure/monitoring"
	"amortization-engine/internal/pkg/apperrors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix = "benchmark_rate:"

	defaultFetchTimeout = 30 * time.Second
)

func CacheKey(seriesID string) string {
	return cacheKeyPrefix + seriesID
}

// CachedProvider keeps the latest observation in a shared cache for ttl.
// Concurrent misses for the same series share one upstream call, which runs
// detached from any single caller's cancellation. Cache failures degrade to a
// direct upstream lookup.
type CachedProvider struct {
	inner        rate.Provider
	cache        Cache
	key          string
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
	logger       *slog.Logger
}

func NewCachedProvider(inner rate.Provider, cache Cache, seriesID string, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{
		inner:        inner,
		cache:        cache,
		key:          CacheKey(seriesID),
		ttl:          ttl,
		fetchTimeout: defaultFetchTimeout,
		logger:       logger.With("component", "CachedProvider", "key", CacheKey(seriesID)),
	}
}

func (p *CachedProvider) LatestObservation(ctx context.Context) (*rate.Observation, error) {
	if obs, ok := p.lookup(ctx); ok {
		return obs, nil
	}

	ch := p.group.DoChan(p.key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
		defer cancel()

		obs, err := p.inner.LatestObservation(fetchCtx)
		if err != nil {
			return nil, err
		}
		if err := p.Store(fetchCtx, obs); err != nil {
			p.logger.WarnContext(fetchCtx, "Failed to cache benchmark rate", "error", err)
		}
		return obs, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperrors.WrapRateError(ctx.Err(), "benchmark rate lookup abandoned")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			p.logger.DebugContext(ctx, "Shared in-flight benchmark rate lookup")
		}
		obs := *res.Val.(*rate.Observation)
		return &obs, nil
	}
}

// Store overwrites the cached observation.
func (p *CachedProvider) Store(ctx context.Context, obs *rate.Observation) error {
	body, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}
	return p.cache.Set(ctx, p.key, string(body), p.ttl)
}

func (p *CachedProvider) lookup(ctx context.Context) (*rate.Observation, bool) {
	raw, found, err := p.cache.Get(ctx, p.key)
	if err != nil {
		p.logger.WarnContext(ctx, "Benchmark rate cache unavailable", "error", err)
		monitoring.RecordRateCache("error")
		return nil, false
	}
	if !found {
		monitoring.RecordRateCache("miss")
		return nil, false
	}

	var obs rate.Observation
	if err := json.Unmarshal([]byte(raw), &obs); err != nil {
		p.logger.WarnContext(ctx, "Discarding corrupt cached benchmark rate", "error", err)
		monitoring.RecordRateCache("corrupt")
		return nil, false
	}
	monitoring.RecordRateCache("hit")
	return &obs, true
}

var _ rate.Provider = (*CachedProvider)(nil)
