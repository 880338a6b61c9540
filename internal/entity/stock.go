package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// StockEntry is the remaining quantity of one (product, color, size) variant.
type StockEntry struct {
	bun.BaseModel `bun:"table:product_stocks"`

	ID                int64 `bun:",pk,autoincrement"`
	ProductID         int64 `bun:"product_id,notnull"`
	ColorID           int64 `bun:"color_id,notnull"`
	SizeID            int64 `bun:"size_id,notnull"`
	RemainingQuantity int   `bun:"remaining_quantity,notnull"`
}

// CartItem is a staged purchase; soft-deleted once it becomes an order item.
type CartItem struct {
	bun.BaseModel `bun:"table:carts"`

	ID              int64           `bun:",pk,autoincrement"`
	UserID          int64           `bun:"user_id,notnull"`
	ProductID       int64           `bun:"product_id,notnull"`
	StockID         int64           `bun:"stock_id,notnull"`
	Quantity        int             `bun:"quantity,notnull"`
	OriginalPrice   decimal.Decimal `bun:"original_price,type:decimal(12,2),notnull"`
	DiscountRate    decimal.Decimal `bun:"discount_rate,type:decimal(5,4),notnull"`
	DiscountedPrice decimal.Decimal `bun:"discounted_price,type:decimal(12,2),notnull"`
	IsDeleted       bool            `bun:"is_deleted,notnull"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// CustomerInformation keeps the last contact details an account checked out with.
type CustomerInformation struct {
	bun.BaseModel `bun:"table:customer_informations"`

	ID        int64     `bun:",pk,autoincrement"`
	AccountID int64     `bun:"account_id,notnull,unique"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	Phone     string    `bun:"phone,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
