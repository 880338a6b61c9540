package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/cache"
	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/entity"
	cartrepo "github.com/Additional-Code/storefront/internal/repository/cart"
	customerrepo "github.com/Additional-Code/storefront/internal/repository/customer"
	orderrepo "github.com/Additional-Code/storefront/internal/repository/order"
	outboxrepo "github.com/Additional-Code/storefront/internal/repository/outbox"
	stockrepo "github.com/Additional-Code/storefront/internal/repository/stock"
	service "github.com/Additional-Code/storefront/internal/service/checkout"
	"github.com/Additional-Code/storefront/internal/testutil/dbtest"
	"github.com/Additional-Code/storefront/internal/transport/http/checkout"
	"github.com/Additional-Code/storefront/internal/transport/http/middleware"
)

type harness struct {
	e       *echo.Echo
	stockID int64
	cartID  int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	cfg := config.Config{
		Cache:     config.Cache{DefaultTTL: time.Minute},
		Messaging: config.Messaging{Kafka: config.Kafka{Topic: "checkout.orders"}},
		Checkout:  config.Checkout{CustomMemoTypeID: 5, Location: time.UTC, IdempotencyTTL: time.Hour},
		Auth:      config.Auth{AccountHeader: "X-Account-Id", RoleHeader: "X-Account-Role"},
	}

	conns := dbtest.Open(t)
	stocks := stockrepo.NewRepository(conns)
	carts := cartrepo.NewRepository(conns)

	stock := &entity.StockEntry{ProductID: 10, ColorID: 1, SizeID: 1, RemainingQuantity: 5}
	require.NoError(t, stocks.Create(ctx, nil, stock))
	item := &entity.CartItem{UserID: 7, ProductID: 10, StockID: stock.ID, Quantity: 2}
	require.NoError(t, carts.Create(ctx, nil, item))

	svc := service.NewService(service.Params{
		Connections: conns,
		Stocks:      stocks,
		Carts:       carts,
		Customers:   customerrepo.NewRepository(conns),
		Orders:      orderrepo.NewRepository(conns),
		Outbox:      outboxrepo.NewRepository(conns),
		Cache:       cache.NewMemoryStore(time.Minute),
		Config:      cfg,
		Logger:      zap.NewNop(),
	})

	e := echo.New()
	checkout.Register(e, checkout.NewHandler(svc), middleware.Actor(cfg.Auth, zap.NewNop()))
	return &harness{e: e, stockID: stock.ID, cartID: item.ID}
}

func (h *harness) body() string {
	return `{
		"cartId": ` + strconv.FormatInt(h.cartID, 10) + `,
		"productId": 10,
		"stockId": ` + strconv.FormatInt(h.stockID, 10) + `,
		"quantity": 2,
		"originalPrice": 20000,
		"sale": "0.1",
		"discountedPrice": 18000,
		"totalPrice": 36000,
		"soldOut": false,
		"senderName": "Kim Minji",
		"senderPhone": "010-1234-5678",
		"senderEmail": "minji@example.com",
		"recipientName": "Lee Jiho",
		"recipientPhone": "010-8765-4321",
		"address1": "12 Teheran-ro",
		"address2": "",
		"postNumber": "06234",
		"deliveryId": 1,
		"deliveryMemo": "",
		"deliveryMemoDefault": false
	}`
}

func (h *harness) do(t *testing.T, method, target, body, role string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		req.Header.Set("X-Account-Id", "7")
		req.Header.Set("X-Account-Role", role)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Message      string          `json:"message"`
	ErrorMessage string          `json:"errorMessage"`
	Result       json.RawMessage `json:"result"`
	Meta         map[string]any  `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCheckoutEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/checkout", h.body(), "customer", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "success", env.Message)

	var created struct {
		CartID int64 `json:"cartId"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &created))
	require.Positive(t, created.CartID)

	rec = h.do(t, http.MethodGet, "/checkout/"+strconv.FormatInt(created.CartID, 10), "", "customer", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary struct {
		OrderNumber string          `json:"order_number"`
		TotalPrice  decimal.Decimal `json:"total_price"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Result, &summary))
	assert.Regexp(t, `^\d{8}000001000$`, summary.OrderNumber)
	assert.True(t, summary.TotalPrice.Equal(decimal.NewFromInt(36000)))

	rec = h.do(t, http.MethodGet, "/checkout/customer-information", "", "customer", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"name":"Kim Minji","email":"minji@example.com","phone":"010-1234-5678"}`, string(decode(t, rec).Result))
}

func TestCheckoutErrorEnvelopes(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name    string
		method  string
		target  string
		body    string
		role    string
		status  int
		message string
	}{
		{"seller", http.MethodPost, "/checkout", h.body(), "seller", http.StatusForbidden, "PERMISSION_DENIED"},
		{"no identity", http.MethodPost, "/checkout", h.body(), "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed body", http.MethodPost, "/checkout", "{", "customer", http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad id", http.MethodGet, "/checkout/abc", "", "customer", http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown order", http.MethodGet, "/checkout/999", "", "customer", http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"no prefill yet", http.MethodGet, "/checkout/customer-information", "", "customer", http.StatusNotFound, "CUSTOMER_INFORMATION_NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, tc.method, tc.target, tc.body, tc.role, nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			env := decode(t, rec)
			assert.Equal(t, tc.message, env.Message)
			assert.NotEmpty(t, env.ErrorMessage)
		})
	}
}

func TestCheckoutSoldOutIsBadRequest(t *testing.T) {
	h := newHarness(t)

	body := strings.Replace(h.body(), `"soldOut": false`, `"soldOut": true`, 1)
	rec := h.do(t, http.MethodPost, "/checkout", body, "customer", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CHECKOUT_DENIED", decode(t, rec).Message)
}

func TestCheckoutIdempotencyHeader(t *testing.T) {
	h := newHarness(t)
	headers := map[string]string{checkout.IdempotencyHeader: "retry-1"}

	first := h.do(t, http.MethodPost, "/checkout", h.body(), "customer", headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := h.do(t, http.MethodPost, "/checkout", h.body(), "customer", headers)
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	firstEnv, secondEnv := decode(t, first), decode(t, second)
	assert.JSONEq(t, string(firstEnv.Result), string(secondEnv.Result))
	assert.Nil(t, firstEnv.Meta)
	assert.Equal(t, true, secondEnv.Meta["idempotentReplay"])
}
