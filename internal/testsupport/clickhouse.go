package testsupport

import (
	"context"
	"testing"

	"tradegate/internal/adapters/clickhouse"
)

// NewTestClickHouse connects to the integration ClickHouse and truncates the
// regime snapshot table around the test. Skipped without CLICKHOUSE_* variables.
func NewTestClickHouse(t *testing.T) *clickhouse.Client {
	t.Helper()

	client, err := clickhouse.NewClient(context.Background(), LoadClickHouseConfig(t))
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Exec(context.Background(), "DROP TABLE IF EXISTS regime_snapshots")
		_ = client.Close()
	})

	return client
}
