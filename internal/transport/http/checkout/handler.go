package checkout

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/storefront/internal/actor"
	"github.com/Additional-Code/storefront/internal/dto"
	"github.com/Additional-Code/storefront/internal/presentation/http/response"
	service "github.com/Additional-Code/storefront/internal/service/checkout"
	"github.com/Additional-Code/storefront/internal/transport/http/middleware"
	"github.com/Additional-Code/storefront/pkg/errorbank"
)

// IdempotencyHeader lets clients retry POST /checkout safely.
const IdempotencyHeader = "Idempotency-Key"

var httpTracer = otel.Tracer("github.com/Additional-Code/storefront/transport/http/checkout")

// Handler exposes checkout endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a checkout Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes under /checkout. Every route requires an actor.
func Register(e *echo.Echo, h *Handler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/checkout", mw...)
	g.POST("", h.checkout)
	g.GET("/customer-information", h.customerInformation)
	g.GET("/:id", h.summary)
}

func (h *Handler) checkout(c echo.Context) error {
	b := response.New(c)

	who, ok := actor.FromContext(c.Request().Context())
	if !ok {
		return b.WithError(middleware.ErrUnauthenticated).Build()
	}

	var payload dto.CheckoutRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(service.ErrInvalidRequest.With(errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "checkout.create", trace.WithAttributes(
		attribute.Int64("cart.id", payload.CartID),
		attribute.Int64("stock.id", payload.StockID),
	))
	defer span.End()

	key := strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader))
	receipt, err := h.svc.Checkout(ctx, who, toInput(payload), key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return b.WithError(err).Build()
	}

	if receipt.Replayed {
		b.WithMeta("idempotentReplay", true)
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.CheckoutResponse{CartID: receipt.OrderID}).Build()
}

func (h *Handler) summary(c echo.Context) error {
	b := response.New(c)

	who, ok := actor.FromContext(c.Request().Context())
	if !ok {
		return b.WithError(middleware.ErrUnauthenticated).Build()
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return b.WithError(service.ErrInvalidRequest.With(errorbank.WithDetail("field", "id"))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "checkout.summary", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	summary, err := h.svc.Summary(ctx, who, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.OrderSummaryResponse{
		OrderNumber: summary.OrderNumber,
		TotalPrice:  summary.TotalPrice,
	}).Build()
}

func (h *Handler) customerInformation(c echo.Context) error {
	b := response.New(c)

	who, ok := actor.FromContext(c.Request().Context())
	if !ok {
		return b.WithError(middleware.ErrUnauthenticated).Build()
	}

	info, err := h.svc.CustomerInformation(c.Request().Context(), who)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.CustomerInformationResponse{
		Name:  info.Name,
		Email: info.Email,
		Phone: info.Phone,
	}).Build()
}

func toInput(p dto.CheckoutRequest) service.Input {
	return service.Input{
		CartID:              p.CartID,
		ProductID:           p.ProductID,
		StockID:             p.StockID,
		Quantity:            p.Quantity,
		OriginalPrice:       p.OriginalPrice,
		Sale:                p.Sale,
		DiscountedPrice:     p.DiscountedPrice,
		TotalPrice:          p.TotalPrice,
		SoldOut:             p.SoldOut,
		SenderName:          p.SenderName,
		SenderPhone:         p.SenderPhone,
		SenderEmail:         p.SenderEmail,
		RecipientName:       p.RecipientName,
		RecipientPhone:      p.RecipientPhone,
		Address1:            p.Address1,
		Address2:            p.Address2,
		PostNumber:          p.PostNumber,
		DeliveryID:          p.DeliveryID,
		DeliveryMemo:        p.DeliveryMemo,
		DeliveryMemoDefault: p.DeliveryMemoDefault,
	}
}
