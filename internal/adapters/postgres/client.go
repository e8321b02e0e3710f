package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"hypertrader/internal/adapters/config"
	"hypertrader/pkg/errors"
)

const connectTimeout = 10 * time.Second

// Client owns the pooled connection used by the trade journal
type Client struct {
	db *sqlx.DB
}

// NewClient connects and sizes the pool. The journal writes at most one row per
// executed trade, so the pool stays small.
func NewClient(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrapf(err, "connect postgres %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Client{db: db}, nil
}

func (c *Client) DB() *sqlx.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}
