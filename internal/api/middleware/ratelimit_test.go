package middleware

import (
	"amortization-engine/internal/config"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows a burst then blocks", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(cfg, nil, logger)
		t.Cleanup(rl.Close)
		handler := rl.Middleware(okHandler)

		req := httptest.NewRequest(http.MethodPost, "/api/loan/calculate", nil)
		req.RemoteAddr = "127.0.0.1:12345"

		for i := 0; i < cfg.Burst; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))

		var body map[string]map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Rate limit exceeded", body["error"]["message"])
	})

	t.Run("limits are per client", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 1}, nil, logger)
		t.Cleanup(rl.Close)
		handler := rl.Middleware(okHandler)

		for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, addr)
		}
	})

	t.Run("disabled limiter passes everything", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: false}, nil, logger)
		handler := rl.Middleware(okHandler)

		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("unknown client is forbidden", func(t *testing.T) {
		rl := NewRateLimiterMiddleware(cfg, nil, logger)
		t.Cleanup(rl.Close)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "not-an-address"
		rec := httptest.NewRecorder()
		rl.Middleware(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("redis outage falls back to the local bucket", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		})
		t.Cleanup(func() { _ = client.Close() })

		rl := NewRateLimiterMiddleware(config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 1}, client, logger)
		handler := rl.Middleware(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.1.1:80"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}

func TestExtractIP(t *testing.T) {
	rl := NewRateLimiterMiddleware(config.RateLimitConfig{}, nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"}, "127.0.0.1:1", "192.168.1.1"},
		{"invalid forwarded for uses real ip", map[string]string{"X-Forwarded-For": "garbage", "X-Real-IP": "10.0.0.9"}, "127.0.0.1:1", "10.0.0.9"},
		{"remote addr", nil, "203.0.113.7:4444", "203.0.113.7"},
		{"bare remote ip", nil, "203.0.113.8", "203.0.113.8"},
		{"unknown", nil, "nonsense", unknownClientIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, rl.extractIP(req))
		})
	}
}
