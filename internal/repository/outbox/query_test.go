package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/Additional-Code/storefront/internal/testutil/dbtest"
)

func TestPendingQueryLocksOnPostgres(t *testing.T) {
	// rendering only; nothing is sent to the sqlite handle
	pg := bun.NewDB(dbtest.Open(t).Writer.DB, pgdialect.New())

	query := pendingQuery(pg, 5).String()
	assert.Contains(t, query, "sent_at IS NULL")
	assert.Contains(t, query, "LIMIT 5")
	assert.Contains(t, query, "FOR UPDATE SKIP LOCKED")
}

func TestPendingQueryWithoutRowLocksOnSQLite(t *testing.T) {
	query := pendingQuery(dbtest.Open(t).Writer, 0).String()
	assert.NotContains(t, query, "FOR UPDATE")
	assert.Contains(t, query, "LIMIT 100")
}
