package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tradegate/pkg/errors"
)

type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	ClickHouse     ClickHouseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	MarketData     MarketDataConfig
	Regime         RegimeConfig
	CircuitBreaker CircuitBreakerConfig
	Risk           RiskConfig
	ErrorTracking  ErrorTrackingConfig
	Workers        WorkerConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"tradegate"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Version     string `envconfig:"APP_VERSION" default:"dev"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9102"`
}

// DatabaseConfig selects the ticket store backend.
// Driver is "postgres" or "sqlite3"; the sqlite file lives at SQLitePath.
type DatabaseConfig struct {
	Driver     string `envconfig:"DB_DRIVER" default:"sqlite3"`
	Host       string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port       int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User       string `envconfig:"POSTGRES_USER" default:"tradegate"`
	Password   string `envconfig:"POSTGRES_PASSWORD"`
	Database   string `envconfig:"POSTGRES_DB" default:"tradegate"`
	SSLMode    string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns   int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"tradegate.db"`
}

func (c DatabaseConfig) IsPostgres() bool {
	return c.Driver == "postgres"
}

// DSN returns the connection string for the configured driver
func (c DatabaseConfig) DSN() string {
	if c.IsPostgres() {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
		)
	}
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return fmt.Sprintf("file:%s?%s", c.SQLitePath, q.Encode())
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"tradegate"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
}

// MarketDataConfig controls the caching and rate limiting around the market data provider
type MarketDataConfig struct {
	FixturePath       string        `envconfig:"MARKET_DATA_FIXTURES"`
	CacheTTL          time.Duration `envconfig:"MARKET_DATA_CACHE_TTL" default:"15m"`
	CacheSize         int           `envconfig:"MARKET_DATA_CACHE_SIZE" default:"256"`
	RequestsPerSecond float64       `envconfig:"MARKET_DATA_RPS" default:"5"`
	Burst             int           `envconfig:"MARKET_DATA_BURST" default:"10"`
}

// RegimeConfig holds the hard-gate thresholds of the regime classifier
type RegimeConfig struct {
	VIXSpikePct          float64       `envconfig:"REGIME_VIX_SPIKE_PCT" default:"10"`
	VIXCeiling           float64       `envconfig:"REGIME_VIX_CEILING" default:"35"`
	MacroEventWindow     time.Duration `envconfig:"REGIME_MACRO_EVENT_WINDOW" default:"48h"`
	ATRAccelerationRatio float64       `envconfig:"REGIME_ATR_ACCELERATION" default:"1.5"`
	CalendarPath         string        `envconfig:"REGIME_CALENDAR_PATH"`
}

type CircuitBreakerConfig struct {
	WeeklyDrawdownPct  float64 `envconfig:"BREAKER_WEEKLY_DRAWDOWN_PCT" default:"5"`
	VIXPercentileLimit float64 `envconfig:"BREAKER_VIX_PERCENTILE_LIMIT" default:"80"`
	VIXSpikePct        float64 `envconfig:"BREAKER_VIX_SPIKE_PCT" default:"20"`
	MacroBlackoutDays  int     `envconfig:"BREAKER_MACRO_BLACKOUT_DAYS" default:"1"`
}

type RiskConfig struct {
	MaxTradeRiskPct   float64 `envconfig:"RISK_MAX_TRADE_PCT" default:"1.5"`
	MaxWeeklyLossPct  float64 `envconfig:"RISK_MAX_WEEKLY_LOSS_PCT" default:"5"`
	KillSwitchPct     float64 `envconfig:"RISK_KILL_SWITCH_PCT" default:"3"`
	ClusterWindowDays int     `envconfig:"RISK_CLUSTER_WINDOW_DAYS" default:"3"`
	CorrelationWindow int     `envconfig:"RISK_CORRELATION_WINDOW" default:"60"`
	Equity            float64 `envconfig:"ACCOUNT_EQUITY" default:"100000"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	RegimeSnapshotInterval time.Duration `envconfig:"WORKER_REGIME_SNAPSHOT_INTERVAL" default:"5m"`
	RegimeSnapshotEnabled  bool          `envconfig:"WORKER_REGIME_SNAPSHOT_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the engines cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return errors.NewValidationError("DB_DRIVER", "must be postgres or sqlite3", c.Database.Driver)
	}
	if c.Risk.Equity <= 0 {
		return errors.NewValidationError("ACCOUNT_EQUITY", "must be positive", c.Risk.Equity)
	}
	if c.MarketData.CacheSize <= 0 {
		return errors.NewValidationError("MARKET_DATA_CACHE_SIZE", "must be positive", c.MarketData.CacheSize)
	}
	return nil
}
