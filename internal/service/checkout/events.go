package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventOrderPlaced is the type of the event written for every committed checkout.
const EventOrderPlaced = "order.placed"

// OrderPlacedEvent is relayed through the outbox to the message bus.
type OrderPlacedEvent struct {
	EventID           string          `json:"event_id"`
	Type              string          `json:"type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	Producer          string          `json:"producer"`
	OrderID           int64           `json:"order_id"`
	OrderNumber       string          `json:"order_number"`
	OrderDetailNumber string          `json:"order_detail_number"`
	UserID            int64           `json:"user_id"`
	ProductID         int64           `json:"product_id"`
	StockID           int64           `json:"stock_id"`
	Quantity          int             `json:"quantity"`
	TotalPrice        decimal.Decimal `json:"total_price"`
}
