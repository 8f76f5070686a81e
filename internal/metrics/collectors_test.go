package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain/ticket"
	"tradegate/internal/metrics"
	pgrepo "tradegate/internal/repository/postgres"
	"tradegate/internal/testsupport"
	"tradegate/pkg/logger"
)

func TestTicketStoreCollector(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewSQLiteDB(t)
	repo := pgrepo.NewTicketRepository(db)
	require.NoError(t, repo.Migrate(ctx))

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Propose(ctx, &ticket.Ticket{ID: id, Underlying: "SPY", Strategy: "credit_spread", Status: ticket.StatusPending})
		require.NoError(t, err)
	}
	_, err := repo.Approve(ctx, "a")
	require.NoError(t, err)
	_, err = repo.Reject(ctx, "b", nil)
	require.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(metrics.NewTicketStoreCollector(logger.NewNop(), db))

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]map[string]float64{}
	for _, mf := range families {
		values := map[string]float64{}
		for _, m := range mf.GetMetric() {
			require.Len(t, m.GetLabel(), 1)
			values[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
		got[mf.GetName()] = values
	}

	assert.Equal(t, map[string]float64{"pending": 1, "approved": 1, "rejected": 1}, got["tradegate_tickets"])
	assert.Equal(t, map[string]float64{"approved": 1, "rejected": 1}, got["tradegate_audit_rows"])
}
