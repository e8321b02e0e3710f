package testsupport

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresTx_RollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	p := NewTestPostgres(t)
	ctx := context.Background()

	_, err := p.Tx().ExecContext(ctx, "CREATE TABLE rollback_probe (id SERIAL PRIMARY KEY)")
	require.NoError(t, err)
	_, err = p.Tx().ExecContext(ctx, "INSERT INTO rollback_probe DEFAULT VALUES")
	require.NoError(t, err)

	p.Rollback()
	p.Rollback()

	var table sql.NullString
	require.NoError(t, p.DB().QueryRowContext(ctx, "SELECT to_regclass('public.rollback_probe')").Scan(&table))
	assert.False(t, table.Valid, "table created inside the test transaction must be gone")
}
