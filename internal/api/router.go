package api

import (
	"amortization-engine/internal/api/handler"
	mw "amortization-engine/internal/api/middleware"
	"amortization-engine/internal/config"
	"amortization-engine/internal/domain/loan"
	"amortization-engine/internal/domain/rate"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRequestTimeout = 60 * time.Second

func SetupRouter(
	amortizationService loan.AmortizationService,
	benchmarkService rate.BenchmarkService,
	rateLimiter *mw.RateLimiterMiddleware,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, rateLimiter, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupAuthRoutes(router, cfg, logger)
	setupAPIRoutes(router, amortizationService, benchmarkService, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return router
}

func setupMiddleware(router *chi.Mux, rateLimiter *mw.RateLimiterMiddleware, cfg *config.Config, logger *slog.Logger) {
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(timeout))
	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware)
	}
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupAPIRoutes(router *chi.Mux, amortizationService loan.AmortizationService, benchmarkService rate.BenchmarkService, cfg *config.Config, logger *slog.Logger) {
	loanHandler := handler.NewLoanHandler(amortizationService, logger)
	rateHandler := handler.NewRateHandler(benchmarkService, logger)

	router.Route("/api", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/loan/calculate", loanHandler.CalculateSchedule)
		r.Get("/rates/benchmark", rateHandler.GetBenchmarkRate)
	})
}
