package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/storefront/pkg/errorbank"
)

// Input is a single line-item purchase request.
type Input struct {
	CartID    int64
	ProductID int64
	StockID   int64
	Quantity  int

	// Price snapshot as computed by the pricing layer. Sale is a rate in [0, 1].
	OriginalPrice   decimal.Decimal
	Sale            decimal.Decimal
	DiscountedPrice decimal.Decimal
	TotalPrice      decimal.Decimal

	// SoldOut is the caller's own availability verdict.
	SoldOut bool

	SenderName     string
	SenderPhone    string
	SenderEmail    string
	RecipientName  string
	RecipientPhone string
	Address1       string
	Address2       string
	PostNumber     string

	DeliveryID          int64
	DeliveryMemo        string
	DeliveryMemoDefault bool
}

// Validate checks the request shape. It does not touch storage.
func (in Input) Validate() error {
	switch {
	case in.CartID <= 0:
		return invalidField("cartId")
	case in.ProductID <= 0:
		return invalidField("productId")
	case in.StockID <= 0:
		return invalidField("stockId")
	case in.Quantity <= 0:
		return invalidField("quantity")
	case in.OriginalPrice.IsNegative():
		return invalidField("originalPrice")
	case in.DiscountedPrice.IsNegative():
		return invalidField("discountedPrice")
	case in.TotalPrice.IsNegative():
		return invalidField("totalPrice")
	case in.Sale.IsNegative() || in.Sale.GreaterThan(decimal.NewFromInt(1)):
		return invalidField("sale")
	case in.DeliveryID <= 0:
		return invalidField("deliveryId")
	}

	required := []struct{ name, value string }{
		{"senderName", in.SenderName},
		{"senderPhone", in.SenderPhone},
		{"senderEmail", in.SenderEmail},
		{"recipientName", in.RecipientName},
		{"recipientPhone", in.RecipientPhone},
		{"address1", in.Address1},
		{"postNumber", in.PostNumber},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return invalidField(f.name)
		}
	}
	return nil
}

func invalidField(name string) error {
	return ErrInvalidRequest.With(errorbank.WithDetail("field", name))
}

// verifyPricing checks that the snapshot is self-consistent: the discounted
// price is the original price less the sale rate, rounded to cents, and the
// total is the discounted price times the quantity.
func verifyPricing(in Input) error {
	expected := in.OriginalPrice.Mul(decimal.NewFromInt(1).Sub(in.Sale)).Round(2)
	if !expected.Equal(in.DiscountedPrice.Round(2)) {
		return ErrPriceMismatch.With(
			errorbank.WithDetail("field", "discountedPrice"),
			errorbank.WithDetail("expected", expected.StringFixed(2)),
		)
	}

	total := in.DiscountedPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	if !total.Equal(in.TotalPrice) {
		return ErrPriceMismatch.With(
			errorbank.WithDetail("field", "totalPrice"),
			errorbank.WithDetail("expected", total.StringFixed(2)),
		)
	}
	return nil
}
