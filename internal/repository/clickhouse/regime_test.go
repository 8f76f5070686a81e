package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/regime"
	"tradegate/internal/testsupport"
)

func TestRegimeRepository_StoreAndHistory(t *testing.T) {
	client := testsupport.NewTestClickHouse(t)
	repo := NewRegimeRepository(client.Conn())
	ctx := context.Background()

	require.NoError(t, repo.Migrate(ctx))

	base := time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)
	for i, vol := range []regime.VolRegime{regime.VolCompressed, regime.VolExpanding, regime.VolStressed} {
		snap := &regime.Snapshot{
			VolRegime:         vol,
			CorrelationRegime: regime.CorrelationMedium,
			RiskAppetite:      regime.RiskNeutral,
			Details: regime.Details{
				Volatility: regime.VolatilityDetail{Regime: vol, VIXCurrent: 15 + float64(i)*10},
				Macro:      regime.MacroDetail{Proximity: regime.MacroNormal, Signals: []string{}},
			},
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Store(ctx, snap))
	}

	latest, err := repo.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, regime.VolStressed, latest.VolRegime)
	assert.Equal(t, 35.0, latest.Details.Volatility.VIXCurrent)

	history, err := repo.History(ctx, base.Add(30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))
}
