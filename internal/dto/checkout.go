package dto

import "github.com/shopspring/decimal"

// CheckoutRequest is the body of POST /checkout.
type CheckoutRequest struct {
	CartID              int64           `json:"cartId"`
	ProductID           int64           `json:"productId"`
	StockID             int64           `json:"stockId"`
	Quantity            int             `json:"quantity"`
	OriginalPrice       decimal.Decimal `json:"originalPrice"`
	Sale                decimal.Decimal `json:"sale"`
	DiscountedPrice     decimal.Decimal `json:"discountedPrice"`
	TotalPrice          decimal.Decimal `json:"totalPrice"`
	SoldOut             bool            `json:"soldOut"`
	SenderName          string          `json:"senderName"`
	SenderPhone         string          `json:"senderPhone"`
	SenderEmail         string          `json:"senderEmail"`
	RecipientName       string          `json:"recipientName"`
	RecipientPhone      string          `json:"recipientPhone"`
	Address1            string          `json:"address1"`
	Address2            string          `json:"address2"`
	PostNumber          string          `json:"postNumber"`
	DeliveryID          int64           `json:"deliveryId"`
	DeliveryMemo        string          `json:"deliveryMemo"`
	DeliveryMemoDefault bool            `json:"deliveryMemoDefault"`
}

// CheckoutResponse carries the created order id. The field keeps the name
// existing clients read it under.
type CheckoutResponse struct {
	CartID int64 `json:"cartId"`
}

// OrderSummaryResponse is returned by GET /checkout/:id.
type OrderSummaryResponse struct {
	OrderNumber string          `json:"order_number"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// CustomerInformationResponse prefills the sender block of the next checkout.
type CustomerInformationResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
