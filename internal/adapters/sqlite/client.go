package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"tradegate/internal/adapters/config"
	"tradegate/pkg/errors"
)

// Client wraps a single-node SQLite database behind sqlx
type Client struct {
	db *sqlx.DB
}

// NewClient opens the SQLite file named by cfg. Writers are serialized through one
// connection; the DSN starts every transaction with BEGIN IMMEDIATE.
func NewClient(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	return Open(ctx, cfg.DSN())
}

// Open connects to an explicit sqlite3 DSN
func Open(ctx context.Context, dsn string) (*Client, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL")
	}

	return &Client{db: db}, nil
}

// DB returns the underlying sqlx.DB instance
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Close closes the database
func (c *Client) Close() error {
	return c.db.Close()
}

// Health checks the database handle
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
