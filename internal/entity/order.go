package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderItemStatus enumerates the order_item_status_types rows.
type OrderItemStatus int64

const (
	OrderItemPrepared          OrderItemStatus = 1
	OrderItemShipping          OrderItemStatus = 2
	OrderItemDelivered         OrderItemStatus = 3
	OrderItemPurchaseConfirmed OrderItemStatus = 4
	OrderItemCancelled         OrderItemStatus = 5
)

func (s OrderItemStatus) String() string {
	switch s {
	case OrderItemPrepared:
		return "prepared"
	case OrderItemShipping:
		return "shipping"
	case OrderItemDelivered:
		return "delivered"
	case OrderItemPurchaseConfirmed:
		return "purchase_confirmed"
	case OrderItemCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is the header row written once per checkout.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                 int64           `bun:",pk,autoincrement"`
	OrderNumber        string          `bun:"order_number,notnull,unique"`
	SenderName         string          `bun:"sender_name,notnull"`
	SenderPhone        string          `bun:"sender_phone,notnull"`
	SenderEmail        string          `bun:"sender_email,notnull"`
	RecipientName      string          `bun:"recipient_name,notnull"`
	RecipientPhone     string          `bun:"recipient_phone,notnull"`
	Address1           string          `bun:"address1,notnull"`
	Address2           string          `bun:"address2"`
	PostNumber         string          `bun:"post_number,notnull"`
	UserID             int64           `bun:"user_id,notnull"`
	DeliveryMemoTypeID int64           `bun:"delivery_memo_type_id,notnull"`
	TotalPrice         decimal.Decimal `bun:"total_price,type:decimal(12,2),notnull"`
	CreatedAt          time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// OrderItem is one converted cart line carrying its price snapshot.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID                int64           `bun:",pk,autoincrement"`
	ProductID         int64           `bun:"product_id,notnull"`
	StockID           int64           `bun:"stock_id,notnull"`
	Quantity          int             `bun:"quantity,notnull"`
	OrderID           int64           `bun:"order_id,notnull"`
	CartID            int64           `bun:"cart_id,notnull"`
	OrderDetailNumber string          `bun:"order_detail_number,notnull,unique"`
	StatusID          OrderItemStatus `bun:"order_item_status_type_id,notnull"`
	OriginalPrice     decimal.Decimal `bun:"original_price,type:decimal(12,2),notnull"`
	DiscountedPrice   decimal.Decimal `bun:"discounted_price,type:decimal(12,2),notnull"`
	Sale              decimal.Decimal `bun:"sale,type:decimal(5,4),notnull"`
	CreatedAt         time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// OrderItemHistory is an append-only status audit row.
type OrderItemHistory struct {
	bun.BaseModel `bun:"table:order_item_histories"`

	ID          int64           `bun:",pk,autoincrement"`
	OrderItemID int64           `bun:"order_item_id,notnull"`
	StatusID    OrderItemStatus `bun:"order_item_status_type_id,notnull"`
	UpdaterID   int64           `bun:"updater_id,notnull"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// DeliveryMemoType is either a canonical memo or a free-text one created at checkout.
type DeliveryMemoType struct {
	bun.BaseModel `bun:"table:delivery_memo_types"`

	ID      int64  `bun:",pk,autoincrement"`
	Content string `bun:"content,notnull"`
}

// OrderSequence is the per-day counter behind order numbers.
type OrderSequence struct {
	bun.BaseModel `bun:"table:order_sequences"`

	Day   string `bun:"day,pk"`
	Value int64  `bun:"value,notnull"`
}
