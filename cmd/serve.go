package main

import (
	"amortization-engine/internal/api"
	"amortization-engine/internal/api/middleware"
	"amortization-engine/internal/batch"
	"amortization-engine/internal/config"
	"amortization-engine/internal/domain/loan"
	"amortization-engine/internal/domain/rate"
	"amortization-engine/internal/event"
	"amortization-engine/internal/infrastructure/database/postgres"
	"amortization-engine/internal/infrastructure/logging"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	rabbitMQRetryCount        = 5
	defaultRateRefreshSpec    = "0 6 * * *"
	defaultRateRefreshTimeout = 5 * time.Minute
)

func runServe(configPath string) error {
	cfg, logger, err := initializeApp(configPath)
	if err != nil {
		return err
	}

	dbPool, rateRepo, err := initializeDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDatabase(dbPool, logger)

	redisClient := initializeRedisClient(cfg, logger)
	rabbitMQConn := setupRabbitMQ(cfg, logger)
	publisher := initializePublisher(cfg, rabbitMQConn, logger)

	var repo rate.Repository
	if rateRepo != nil {
		repo = rateRepo
	}
	sources, err := initializeRateSources(cfg, repo, redisClient, logger)
	if err != nil {
		logger.Error("Failed to configure benchmark rate source", "error", err)
		closeRabbitMQConnection(rabbitMQConn, logger)
		closeRedisClient(redisClient, logger)
		return err
	}

	benchmarkService := rate.NewBenchmarkService(sources.serving, logger)
	amortizationService := loan.NewAmortizationService(benchmarkService, publisher, logger)

	cronScheduler := startBatchJobs(cfg, logger, newRefreshJob(sources, repo, publisher, logger))

	rateLimiter := initializeRateLimiter(cfg, redisClient, logger)
	defer rateLimiter.Close()
	router := api.SetupRouter(amortizationService, benchmarkService, rateLimiter, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	return handleShutdown(srv, cronScheduler, rabbitMQConn, redisClient, shutdownChan, serverErrors, logger)
}

func initializeApp(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.Logger)
	logger.Info("Application starting...", "version", version, "config_path", configPath)

	return cfg, logger, nil
}

// initializeDatabase returns nil values when no database URL is configured.
func initializeDatabase(cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, *postgres.RateRepository, error) {
	if cfg.Database.URL == "" {
		logger.Info("Database URL not configured, benchmark rate snapshots are disabled.")
		return nil, nil, nil
	}

	logger.Info("Initializing database connection pool...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		return nil, nil, err
	}

	rateRepo := postgres.NewRateRepository(dbPool, logger)
	if err := rateRepo.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to prepare benchmark_rates table", "error", err)
		dbPool.Close()
		return nil, nil, err
	}
	return dbPool, rateRepo, nil
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	if dbPool == nil {
		return
	}
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

// initializeRedisClient returns nil when Redis is not configured or unreachable;
// the cache and the rate limiter then run without it.
func initializeRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		logger.Info("Redis address not configured, running without shared cache.")
		return nil
	}

	logger.Info("Initializing central Redis client...")
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if status := rdb.Ping(ctx); status.Err() != nil {
		logger.Warn("Failed to connect to Redis, running without shared cache", "error", status.Err(), "addr", cfg.Redis.Addr)
		_ = rdb.Close()
		return nil
	}

	logger.Info("Central Redis client connected successfully.", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return rdb
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		logger.Info("Redis client was not initialized, skipping close.")
		return
	}
	logger.Info("Closing central Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close central Redis client connection gracefully", "error", err)
	} else {
		logger.Info("Central Redis client connection closed.")
	}
}

func initializeRateLimiter(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *middleware.RateLimiterMiddleware {
	return middleware.NewRateLimiterMiddleware(cfg.Server.RateLimit, redisClient, logger)
}

func rabbitMQURI(cfg config.RabbitMQConfig) (string, error) {
	if cfg.Host == "" {
		return "", fmt.Errorf("RabbitMQ host is not configured")
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return "", fmt.Errorf("RabbitMQ username and password must be provided together")
	}

	port := cfg.Port
	if port == 0 {
		port = 5672
	}
	if cfg.Username != "" {
		return fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Username, cfg.Password, cfg.Host, port), nil
	}
	return fmt.Sprintf("amqp://%s:%d/", cfg.Host, port), nil
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 1; i <= rabbitMQRetryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", rabbitMQRetryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", rabbitMQRetryCount, err)
}

// setupRabbitMQ returns nil when publishing is disabled or the broker is unreachable.
func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) *amqp.Connection {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, domain events will not be published.")
		return nil
	}

	uri, err := rabbitMQURI(cfg.RabbitMQ)
	if err != nil {
		logger.Error("Invalid RabbitMQ configuration", "error", err)
		return nil
	}

	conn, err := connectRabbitMQ(uri, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ, domain events will not be published", "error", err)
		return nil
	}
	return conn
}

func initializePublisher(cfg *config.Config, conn *amqp.Connection, logger *slog.Logger) event.EventPublisher {
	if conn == nil {
		return event.NoopPublisher{}
	}
	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err)
		return event.NoopPublisher{}
	}
	return publisher
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	switch {
	case rabbitConn == nil:
		logger.Info("RabbitMQ connection was not established, skipping close.")
	case rabbitConn.IsClosed():
		logger.Info("RabbitMQ connection already closed, skipping close.")
	default:
		logger.Info("Closing RabbitMQ connection...")
		if err := rabbitConn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
		} else {
			logger.Info("RabbitMQ connection closed.")
		}
	}
}

// newRefreshJob returns nil unless both a FRED upstream and the snapshot table are available.
func newRefreshJob(sources *rateSources, repo rate.Repository, publisher event.EventPublisher, logger *slog.Logger) *batch.RateRefreshJob {
	if sources.refresh == nil || repo == nil {
		return nil
	}

	var store batch.ObservationStore
	if sources.cache != nil {
		store = sources.cache
	}
	return batch.NewRateRefreshJob(sources.refresh, repo, store, publisher, logger)
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, refreshJob *batch.RateRefreshJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	switch {
	case !cfg.Batch.RateRefreshEnabled:
		logger.Info("Benchmark rate refresh job disabled via configuration.")
	case refreshJob == nil:
		logger.Warn("Benchmark rate refresh job enabled but requires database.url and rate.fred.apiKey, skipping.")
	default:
		scheduleRateRefresh(c, cfg.Batch, refreshJob, logger)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func scheduleRateRefresh(c *cron.Cron, cfg config.BatchConfig, refreshJob *batch.RateRefreshJob, logger *slog.Logger) {
	scheduleSpec := cfg.RateRefreshSchedule
	if scheduleSpec == "" {
		scheduleSpec = defaultRateRefreshSpec
		logger.Warn("Rate refresh schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.RateRefreshTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultRateRefreshTimeout
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "RateRefresh")
		jobLogger.Info("Cron triggered: Running benchmark rate refresh job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := refreshJob.Run(ctx); runErr != nil {
			jobLogger.Error("Benchmark rate refresh job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Benchmark rate refresh job finished successfully.")
		}
	}))
	if err != nil {
		logger.Error("Failed to schedule benchmark rate refresh job", "schedule", scheduleSpec, slog.Any("error", err))
		return
	}
	logger.Info("Scheduled benchmark rate refresh job", "schedule", scheduleSpec, "job_id", jobID)
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, rabbitConn *amqp.Connection, redisClient *redis.Client,
	shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) error {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	triggerReason, serveErr := waitForShutdownTrigger(shutdownChan, serverErrors, logger)

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	stopCronScheduler(cronScheduler, logger)
	closeRabbitMQConnection(rabbitConn, logger)
	closeRedisClient(redisClient, logger)
	if serveErr == nil {
		shutdownHTTPServer(srv, serverErrors, logger)
	}

	logger.Info("Application shutdown process complete.")
	return serveErr
}

func waitForShutdownTrigger(shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) (string, error) {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received.", "signal", sig.String())
		return "signal: " + sig.String(), nil
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			return "server error", err
		}
		logger.Info("Server goroutine finished before signal.")
		return "server exited", nil
	}
}

func stopCronScheduler(cronScheduler *cron.Cron, logger *slog.Logger) {
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}
