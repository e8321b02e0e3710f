package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"hypertrader/internal/adapters/postgres"
)

// PostgresTx wraps a transaction that is rolled back when the test ends, so
// journal rows never leak between tests
type PostgresTx struct {
	db         *sqlx.DB
	tx         *sqlx.Tx
	rolledBack bool
}

// NewTestPostgres connects using POSTGRES_* variables and opens the test
// transaction. The test is skipped when Postgres is not configured.
func NewTestPostgres(t *testing.T) *PostgresTx {
	t.Helper()
	ctx := context.Background()

	client, err := postgres.NewClient(ctx, LoadPostgresConfig(t))
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	tx, err := client.DB().BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("postgres begin: %v", err)
	}

	p := &PostgresTx{db: client.DB(), tx: tx}
	t.Cleanup(p.Rollback)
	return p
}

func (p *PostgresTx) Tx() *sqlx.Tx { return p.tx }

func (p *PostgresTx) DB() *sqlx.DB { return p.db }

// Rollback is idempotent
func (p *PostgresTx) Rollback() {
	if p.rolledBack {
		return
	}
	_ = p.tx.Rollback()
	p.rolledBack = true
}
