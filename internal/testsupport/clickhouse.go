package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"hypertrader/internal/adapters/clickhouse"
)

// NewTestClickHouse connects using CLICKHOUSE_* variables, skipping the test
// when they are not set
func NewTestClickHouse(t *testing.T) driver.Conn {
	t.Helper()

	client, err := clickhouse.NewClient(context.Background(), LoadClickHouseConfig(t))
	if err != nil {
		t.Fatalf("clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client.Conn()
}

// DeleteAfter removes the rows a test wrote to an append-only table. ClickHouse
// has no transactions, so tests scope their rows by a unique key value.
func DeleteAfter(t *testing.T, conn driver.Conn, table, column, value string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s DELETE WHERE %s = ?", table, column), value)
	})
}
