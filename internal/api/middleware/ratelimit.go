package middleware

import (
	"amortization-engine/internal/config"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const unknownClientIP = "unknown"

// RateLimiterMiddleware limits requests per client IP. With a Redis client
// the counters are shared across replicas using a fixed one second window;
// without one, a token bucket per IP is kept in memory.
type RateLimiterMiddleware struct {
	redisClient *redis.Client
	limiters    sync.Map
	cfg         config.RateLimitConfig
	logger      *slog.Logger
	window      time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewRateLimiterMiddleware(cfg config.RateLimitConfig, redisClient *redis.Client, logger *slog.Logger) *RateLimiterMiddleware {
	rl := &RateLimiterMiddleware{
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger.With("component", "RateLimiter"),
		window:      time.Second,
		stop:        make(chan struct{}),
	}

	switch {
	case !cfg.Enabled:
		rl.logger.Info("Rate limiting is disabled via configuration.")
	case redisClient != nil:
		rl.logger.Info("Rate limiter backed by Redis", "rps", cfg.RPS, "window", rl.window)
	default:
		rl.logger.Info("Rate limiter backed by memory", "rps", cfg.RPS, "burst", cfg.Burst)
		go rl.cleanupLimiters(10 * time.Minute)
	}

	return rl
}

func (rl *RateLimiterMiddleware) IsEnabled() bool {
	return rl.cfg.Enabled
}

// Close stops the background cleanup of idle in-memory limiters.
func (rl *RateLimiterMiddleware) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.IsEnabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)
		if ip == unknownClientIP {
			rl.logger.ErrorContext(r.Context(), "Blocking request due to unknown client IP for rate limiting")
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}

		if !rl.allow(r.Context(), ip) {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", "ip", ip)
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiterMiddleware) allow(ctx context.Context, ip string) bool {
	if rl.redisClient == nil {
		return rl.getLimiter(ip).Allow()
	}

	allowed, err := rl.allowRedis(ctx, ip)
	if err != nil {
		// Redis errors fall back to the local bucket.
		rl.logger.ErrorContext(ctx, "Redis rate limit check failed", "error", err, "ip", ip)
		return rl.getLimiter(ip).Allow()
	}
	return allowed
}

func (rl *RateLimiterMiddleware) allowRedis(ctx context.Context, ip string) (bool, error) {
	key := "ratelimit:" + ip

	pipe := rl.redisClient.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline for %s: %w", key, err)
	}

	limit := int64(rl.cfg.RPS)
	if limit < 1 {
		limit = 1
	}
	return incrCmd.Val() <= limit, nil
}

func (rl *RateLimiterMiddleware) getLimiter(ip string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(ip); ok {
		return limiter.(*rate.Limiter)
	}
	limiter, _ := rl.limiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst))
	return limiter.(*rate.Limiter)
}

func (rl *RateLimiterMiddleware) cleanupLimiters(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.limiters.Range(func(key, value any) bool {
				if limiter := value.(*rate.Limiter); limiter.Tokens() >= float64(rl.cfg.Burst) {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); xRealIP != "" {
		if net.ParseIP(xRealIP) != nil {
			return xRealIP
		}
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	if parsed := net.ParseIP(r.RemoteAddr); parsed != nil {
		return parsed.String()
	}

	rl.logger.Warn("Could not determine client IP for rate limiting", "remoteAddr", r.RemoteAddr)
	return unknownClientIP
}
