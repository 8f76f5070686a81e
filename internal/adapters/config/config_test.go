package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Risk.MaxTradeRiskPct)
	assert.Equal(t, 5.0, cfg.Risk.MaxWeeklyLossPct)
	assert.Equal(t, 3.0, cfg.Risk.KillSwitchPct)
	assert.Equal(t, 3, cfg.Risk.ClusterWindowDays)

	assert.Equal(t, 5.0, cfg.CircuitBreaker.WeeklyDrawdownPct)
	assert.Equal(t, 80.0, cfg.CircuitBreaker.VIXPercentileLimit)
	assert.Equal(t, 20.0, cfg.CircuitBreaker.VIXSpikePct)
	assert.Equal(t, 1, cfg.CircuitBreaker.MacroBlackoutDays)

	assert.Equal(t, 10.0, cfg.Regime.VIXSpikePct)
	assert.Equal(t, 35.0, cfg.Regime.VIXCeiling)
	assert.Equal(t, 48*time.Hour, cfg.Regime.MacroEventWindow)

	assert.Equal(t, 15*time.Minute, cfg.MarketData.CacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("RISK_MAX_TRADE_PCT", "2.5")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.IsPostgres())
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	assert.Equal(t, 2.5, cfg.Risk.MaxTradeRiskPct)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestSQLiteDSN(t *testing.T) {
	cfg := DatabaseConfig{Driver: "sqlite3", SQLitePath: "/tmp/t.db"}
	dsn := cfg.DSN()

	assert.Contains(t, dsn, "file:/tmp/t.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
}
