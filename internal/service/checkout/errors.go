package checkout

import "github.com/Additional-Code/storefront/pkg/errorbank"

// Named checkout failures. Callers match them with errors.Is; the codes are
// what HTTP clients see in the "message" field.
var (
	ErrInvalidRequest   = errorbank.BadRequest("invalid checkout request", errorbank.WithCode("INVALID_REQUEST"))
	ErrPermissionDenied = errorbank.Forbidden("only customers can place orders", errorbank.WithCode("PERMISSION_DENIED"))
	ErrCheckoutDenied   = errorbank.BadRequest("product is sold out", errorbank.WithCode("CHECKOUT_DENIED"))
	ErrProductNotExist  = errorbank.NotFound("product does not exist", errorbank.WithCode("PRODUCT_NOT_EXIST"))
	ErrPriceMismatch    = errorbank.BadRequest("price snapshot is inconsistent", errorbank.WithCode("PRICE_MISMATCH"))

	ErrDeliveryMemoCreateDenied  = errorbank.BadRequest("delivery memo could not be created", errorbank.WithCode("DELIVERY_MEMO_CREATE_DENIED"))
	ErrOrderCreateDenied         = errorbank.BadRequest("order could not be created", errorbank.WithCode("ORDER_CREATE_DENIED"))
	ErrOrderItemCreateDenied     = errorbank.BadRequest("order item could not be created", errorbank.WithCode("ORDER_ITEM_CREATE_DENIED"))
	ErrOrderHistoryCreateDenied  = errorbank.BadRequest("order history could not be created", errorbank.WithCode("ORDER_HISTORY_CREATE_DENIED"))
	ErrProductRemainUpdateDenied = errorbank.BadRequest("remaining quantity could not be updated", errorbank.WithCode("PRODUCT_REMAIN_UPDATE_DENIED"))
	ErrDeleteDenied              = errorbank.BadRequest("cart item could not be deleted", errorbank.WithCode("DELETE_DENIED"))

	ErrCheckoutInProgress          = errorbank.Conflict("a checkout with this idempotency key is still running", errorbank.WithCode("CHECKOUT_IN_PROGRESS"))
	ErrOrderNotFound               = errorbank.NotFound("order not found", errorbank.WithCode("ORDER_NOT_FOUND"))
	ErrCustomerInformationNotFound = errorbank.NotFound("customer information not found", errorbank.WithCode("CUSTOMER_INFORMATION_NOT_FOUND"))
)

func internalError(message string, err error) error {
	return errorbank.Internal(message, errorbank.WithCode("INTERNAL_SERVER_ERROR"), errorbank.WithCause(err))
}
