package cart_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/storefront/internal/entity"
	"github.com/Additional-Code/storefront/internal/repository/cart"
	"github.com/Additional-Code/storefront/internal/repository/stock"
	"github.com/Additional-Code/storefront/internal/testutil/dbtest"
)

func seedCart(t *testing.T, repo *cart.Repository, stockID, userID int64) *entity.CartItem {
	t.Helper()
	item := &entity.CartItem{
		UserID:          userID,
		ProductID:       10,
		StockID:         stockID,
		Quantity:        1,
		OriginalPrice:   decimal.RequireFromString("20000"),
		DiscountRate:    decimal.RequireFromString("0.1"),
		DiscountedPrice: decimal.RequireFromString("18000"),
	}
	require.NoError(t, repo.Create(context.Background(), nil, item))
	require.NotZero(t, item.ID)
	return item
}

func TestDeactivateOwnItem(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	stocks := stock.NewRepository(conns)
	repo := cart.NewRepository(conns)

	entry := &entity.StockEntry{ProductID: 10, ColorID: 1, SizeID: 1, RemainingQuantity: 3}
	require.NoError(t, stocks.Create(ctx, nil, entry))

	first := seedCart(t, repo, entry.ID, 7)
	second := seedCart(t, repo, entry.ID, 7)

	require.NoError(t, repo.Deactivate(ctx, nil, first.ID, 7, entry.ID))

	got, err := repo.Get(ctx, nil, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.True(t, got.DiscountedPrice.Equal(decimal.NewFromInt(18000)))

	active, err := repo.ActiveByUser(ctx, nil, 7)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	// a second soft delete finds nothing active
	assert.ErrorIs(t, repo.Deactivate(ctx, nil, first.ID, 7, entry.ID), cart.ErrNotDeleted)
}

func TestDeactivateScopedToOwner(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	stocks := stock.NewRepository(conns)
	repo := cart.NewRepository(conns)

	entry := &entity.StockEntry{ProductID: 10, ColorID: 1, SizeID: 1, RemainingQuantity: 3}
	require.NoError(t, stocks.Create(ctx, nil, entry))
	item := seedCart(t, repo, entry.ID, 7)

	assert.ErrorIs(t, repo.Deactivate(ctx, nil, item.ID, 8, entry.ID), cart.ErrNotDeleted)

	got, err := repo.Get(ctx, nil, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
}

func TestDeactivateScopedToStock(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	stocks := stock.NewRepository(conns)
	repo := cart.NewRepository(conns)

	black := &entity.StockEntry{ProductID: 10, ColorID: 1, SizeID: 1, RemainingQuantity: 3}
	white := &entity.StockEntry{ProductID: 10, ColorID: 2, SizeID: 1, RemainingQuantity: 3}
	require.NoError(t, stocks.Create(ctx, nil, black))
	require.NoError(t, stocks.Create(ctx, nil, white))
	item := seedCart(t, repo, black.ID, 7)

	assert.ErrorIs(t, repo.Deactivate(ctx, nil, item.ID, 7, white.ID), cart.ErrNotDeleted)

	got, err := repo.Get(ctx, nil, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)

	require.NoError(t, repo.Deactivate(ctx, nil, item.ID, 7, black.ID))
}

func TestGetMissing(t *testing.T) {
	repo := cart.NewRepository(dbtest.Open(t))

	_, err := repo.Get(context.Background(), nil, 1)
	assert.ErrorIs(t, err, cart.ErrNotFound)
}
