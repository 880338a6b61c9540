// Package dbtest opens a migrated in-memory sqlite database for package tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/database"
	"github.com/Additional-Code/storefront/internal/migration"
)

// Open returns connections to a fresh schema. The pool is pinned to a single
// connection so every query sees the same in-memory database; callers must not
// query through the pool while a transaction is open.
func Open(t testing.TB) *database.Connections {
	t.Helper()

	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.NewForDB("sqlite", conns.Writer, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	return conns
}
