package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"tradegate/internal/adapters/config"
	"tradegate/internal/adapters/postgres"
	"tradegate/internal/adapters/sqlite"
)

// NewSQLiteDB opens a fresh SQLite file under the test's temp dir
func NewSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:     "sqlite3",
		SQLitePath: filepath.Join(t.TempDir(), "tickets.db"),
	}
	client, err := sqlite.NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client.DB()
}

// NewTestPostgres connects to the integration database and drops the store
// tables once the test finishes. Skipped without POSTGRES_* variables.
func NewTestPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	client, err := postgres.NewClient(context.Background(), LoadPostgresConfig(t))
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	db := client.DB()
	dropStoreTables(db)
	t.Cleanup(func() {
		dropStoreTables(db)
		_ = client.Close()
	})

	return db
}

func dropStoreTables(db *sqlx.DB) {
	for _, table := range []string{"approvals", "rejections", "fills", "daily_pnl", "tickets"} {
		_, _ = db.Exec("DROP TABLE IF EXISTS " + table)
	}
}
