package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Rate     RateConfig     `mapstructure:"rate"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	ReadTimeout    time.Duration   `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration   `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration   `mapstructure:"idleTimeout"`
	RequestTimeout time.Duration   `mapstructure:"requestTimeout"`
	RateLimit      RateLimitConfig `mapstructure:"rateLimit"`
	Auth           AuthConfig      `mapstructure:"auth"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwtSecret"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"maxConns"`
	MaxConnIdleTime time.Duration `mapstructure:"maxConnIdleTime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitMQConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	ExchangeName string `mapstructure:"exchangeName"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type MetricsConfig struct {
	Path string `mapstructure:"path"`
}

// RateConfig selects and tunes the benchmark rate source.
// Source is one of "fred", "database" or "static".
type RateConfig struct {
	Source     string        `mapstructure:"source"`
	SeriesID   string        `mapstructure:"seriesId"`
	StaticRate string        `mapstructure:"staticRate"`
	CacheTTL   time.Duration `mapstructure:"cacheTTL"`
	Fred       FredConfig    `mapstructure:"fred"`
}

type FredConfig struct {
	BaseURL           string        `mapstructure:"baseURL"`
	APIKey            string        `mapstructure:"apiKey"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requestsPerMinute"`
	Lookback          int           `mapstructure:"lookback"`
}

type BatchConfig struct {
	RateRefreshEnabled  bool          `mapstructure:"rateRefreshEnabled"`
	RateRefreshSchedule string        `mapstructure:"rateRefreshSchedule"`
	RateRefreshTimeout  time.Duration `mapstructure:"rateRefreshTimeout"`
}

const (
	RateSourceFred     = "fred"
	RateSourceDatabase = "database"
	RateSourceStatic   = "static"
)

func LoadConfig(path string) (*Config, error) {
	loadDotEnv(path)

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Info("Config file not found, using defaults and environment variables.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Rate.Source = strings.ToLower(cfg.Rate.Source)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.idleTimeout", 60*time.Second)
	v.SetDefault("server.requestTimeout", 60*time.Second)
	v.SetDefault("server.rateLimit.enabled", true)
	v.SetDefault("server.rateLimit.rps", 10)
	v.SetDefault("server.rateLimit.burst", 20)
	v.SetDefault("server.auth.enabled", false)
	v.SetDefault("server.auth.jwtSecret", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.maxConns", 5)
	v.SetDefault("database.maxConnIdleTime", 5*time.Minute)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.username", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.exchangeName", "amortization-engine")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("rate.source", RateSourceFred)
	v.SetDefault("rate.seriesId", "DPRIME")
	v.SetDefault("rate.staticRate", "")
	v.SetDefault("rate.cacheTTL", time.Hour)
	v.SetDefault("rate.fred.baseURL", "https://api.stlouisfed.org/fred")
	v.SetDefault("rate.fred.apiKey", "")
	v.SetDefault("rate.fred.timeout", 10*time.Second)
	v.SetDefault("rate.fred.requestsPerMinute", 120)
	v.SetDefault("rate.fred.lookback", 10)
	v.SetDefault("batch.rateRefreshEnabled", false)
	v.SetDefault("batch.rateRefreshSchedule", "0 6 * * *")
	v.SetDefault("batch.rateRefreshTimeout", 30*time.Second)
}

// bindLegacyEnv keeps the plain FRED_API_KEY and PORT variables working.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("rate.fred.apiKey", "RATE_FRED_APIKEY", "FRED_API_KEY")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
}

func loadDotEnv(path string) {
	envFile := filepath.Join(path, ".env")
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "path", envFile, "error", err)
	}
}
