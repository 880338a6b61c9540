package seeder

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/database"
	"github.com/Additional-Code/storefront/internal/entity"
	cartrepo "github.com/Additional-Code/storefront/internal/repository/cart"
	stockrepo "github.com/Additional-Code/storefront/internal/repository/stock"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	stocks *stockrepo.Repository
	carts  *cartrepo.Repository
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, stocks *stockrepo.Repository, carts *cartrepo.Repository, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, stocks: stocks, carts: carts, logger: logger}
}

type demoProduct struct {
	productID, colorID, sizeID int64
	stock                      int
	price                      string
	sale                       string
}

var demoCatalog = []demoProduct{
	{productID: 101, colorID: 1, sizeID: 2, stock: 20, price: "39000", sale: "0.1"},
	{productID: 101, colorID: 2, sizeID: 3, stock: 5, price: "39000", sale: "0.1"},
	{productID: 205, colorID: 4, sizeID: 1, stock: 1, price: "129000", sale: "0"},
}

// Demo makes sure the demo catalog has stock and that userID has one active
// cart item per variant. Running it again tops stock back up and leaves
// existing cart items alone.
func (s *Seeder) Demo(ctx context.Context, userID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		active, err := s.carts.ActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		inCart := make(map[int64]bool, len(active))
		for _, item := range active {
			inCart[item.StockID] = true
		}

		var stocked, staged int
		for _, p := range demoCatalog {
			entry, err := s.ensureStock(ctx, tx, p)
			if err != nil {
				return err
			}
			stocked++
			if inCart[entry.ID] {
				continue
			}

			price := decimal.RequireFromString(p.price)
			sale := decimal.RequireFromString(p.sale)
			item := &entity.CartItem{
				UserID:          userID,
				ProductID:       p.productID,
				StockID:         entry.ID,
				Quantity:        1,
				OriginalPrice:   price,
				DiscountRate:    sale,
				DiscountedPrice: price.Mul(decimal.NewFromInt(1).Sub(sale)).Round(2),
			}
			if err := s.carts.Create(ctx, tx, item); err != nil {
				return err
			}
			staged++
		}

		s.logger.Info("seeded demo data",
			zap.Int64("user.id", userID),
			zap.Int("stocks", stocked),
			zap.Int("cart_items", staged),
		)
		return nil
	})
}

func (s *Seeder) ensureStock(ctx context.Context, tx bun.IDB, p demoProduct) (*entity.StockEntry, error) {
	entry := new(entity.StockEntry)
	err := tx.NewSelect().Model(entry).
		Where("product_id = ?", p.productID).
		Where("color_id = ?", p.colorID).
		Where("size_id = ?", p.sizeID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		entry = &entity.StockEntry{ProductID: p.productID, ColorID: p.colorID, SizeID: p.sizeID, RemainingQuantity: p.stock}
		return entry, s.stocks.Create(ctx, tx, entry)
	}
	if err != nil {
		return nil, err
	}

	if missing := p.stock - entry.RemainingQuantity; missing > 0 {
		if err := s.stocks.Restock(ctx, tx, entry.ID, missing); err != nil {
			return nil, err
		}
		entry.RemainingQuantity = p.stock
	}
	return entry, nil
}
