package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/storefront/internal/entity"
	"github.com/Additional-Code/storefront/internal/repository/stock"
	"github.com/Additional-Code/storefront/internal/testutil/dbtest"
)

func TestDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	repo := stock.NewRepository(dbtest.Open(t))

	entry := &entity.StockEntry{ProductID: 10, ColorID: 1, SizeID: 2, RemainingQuantity: 5}
	require.NoError(t, repo.Create(ctx, nil, entry))
	require.NotZero(t, entry.ID)

	require.NoError(t, repo.Decrement(ctx, nil, entry.ID, 2))

	remaining, err := repo.Remaining(ctx, nil, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	err = repo.Decrement(ctx, nil, entry.ID, 4)
	assert.ErrorIs(t, err, stock.ErrNotUpdated)

	remaining, err = repo.Remaining(ctx, nil, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	require.NoError(t, repo.Decrement(ctx, nil, entry.ID, 3))
	soldOut, err := repo.IsSoldOut(ctx, nil, entry.ID)
	require.NoError(t, err)
	assert.True(t, soldOut)
}

func TestDecrementRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	repo := stock.NewRepository(dbtest.Open(t))

	assert.ErrorIs(t, repo.Decrement(ctx, nil, 1, 0), stock.ErrInvalidQuantity)
	assert.ErrorIs(t, repo.Decrement(ctx, nil, 999, 1), stock.ErrNotUpdated)
}

func TestIsSoldOutUnknownStock(t *testing.T) {
	repo := stock.NewRepository(dbtest.Open(t))

	_, err := repo.IsSoldOut(context.Background(), nil, 42)
	assert.ErrorIs(t, err, stock.ErrNotFound)
}

func TestDecrementRolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	repo := stock.NewRepository(conns)

	entry := &entity.StockEntry{ProductID: 1, ColorID: 1, SizeID: 1, RemainingQuantity: 4}
	require.NoError(t, repo.Create(ctx, nil, entry))

	abort := errors.New("abort")
	err := conns.Writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := repo.Decrement(ctx, tx, entry.ID, 4); err != nil {
			return err
		}
		return abort
	})
	require.ErrorIs(t, err, abort)

	remaining, err := repo.Remaining(ctx, nil, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

func TestRestock(t *testing.T) {
	ctx := context.Background()
	repo := stock.NewRepository(dbtest.Open(t))

	entry := &entity.StockEntry{ProductID: 3, ColorID: 1, SizeID: 1}
	require.NoError(t, repo.Create(ctx, nil, entry))

	soldOut, err := repo.IsSoldOut(ctx, nil, entry.ID)
	require.NoError(t, err)
	assert.True(t, soldOut)

	require.NoError(t, repo.Restock(ctx, nil, entry.ID, 7))
	remaining, err := repo.Remaining(ctx, nil, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	assert.ErrorIs(t, repo.Restock(ctx, nil, entry.ID+100, 1), stock.ErrNotFound)
}
