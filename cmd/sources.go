package main

import (
	"amortization-engine/internal/config"
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/infrastructure/rates"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// rateSources holds the providers wired for one process. serving answers
// schedule requests; refresh feeds the refresh job and is nil when no FRED
// key is configured.
type rateSources struct {
	serving rate.Provider
	refresh rate.Provider
	cache   *rates.CachedProvider
}

func newUpstreamProvider(cfg *config.Config, repo rate.Repository, logger *slog.Logger) (rate.Provider, error) {
	switch cfg.Rate.Source {
	case config.RateSourceFred:
		return rates.NewFredClient(cfg.Rate.Fred, cfg.Rate.SeriesID, logger)
	case config.RateSourceDatabase:
		if repo == nil {
			return nil, fmt.Errorf("rate source %q requires database.url", cfg.Rate.Source)
		}
		return rates.NewStoredProvider(repo, cfg.Rate.SeriesID), nil
	case config.RateSourceStatic:
		return rates.NewStaticProvider(cfg.Rate.SeriesID, cfg.Rate.StaticRate)
	default:
		return nil, fmt.Errorf("unknown rate source %q", cfg.Rate.Source)
	}
}

func initializeRateSources(cfg *config.Config, repo rate.Repository, redisClient *redis.Client, logger *slog.Logger) (*rateSources, error) {
	upstream, err := newUpstreamProvider(cfg, repo, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Benchmark rate source selected", "source", cfg.Rate.Source, "series", cfg.Rate.SeriesID)

	sources := &rateSources{serving: upstream}

	if redisClient != nil && cfg.Rate.CacheTTL > 0 {
		sources.cache = rates.NewCachedProvider(upstream, rates.NewRedisCache(redisClient), cfg.Rate.SeriesID, cfg.Rate.CacheTTL, logger)
		sources.serving = sources.cache
		logger.Info("Benchmark rate cache enabled", "ttl", cfg.Rate.CacheTTL)
	}

	switch {
	case cfg.Rate.Source == config.RateSourceFred:
		sources.refresh = upstream
	case cfg.Rate.Fred.APIKey != "":
		fred, err := rates.NewFredClient(cfg.Rate.Fred, cfg.Rate.SeriesID, logger)
		if err != nil {
			return nil, err
		}
		sources.refresh = fred
	}

	return sources, nil
}
