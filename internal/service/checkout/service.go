package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/actor"
	"github.com/Additional-Code/storefront/internal/cache"
	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/database"
	"github.com/Additional-Code/storefront/internal/entity"
	cartrepo "github.com/Additional-Code/storefront/internal/repository/cart"
	customerrepo "github.com/Additional-Code/storefront/internal/repository/customer"
	orderrepo "github.com/Additional-Code/storefront/internal/repository/order"
	outboxrepo "github.com/Additional-Code/storefront/internal/repository/outbox"
	stockrepo "github.com/Additional-Code/storefront/internal/repository/stock"
	"github.com/Additional-Code/storefront/pkg/errorbank"
)

const instrumentationName = "github.com/Additional-Code/storefront/service/checkout"

var serviceTracer = otel.Tracer(instrumentationName)

const idempotencyPending = "pending"

// Service places orders and serves what a buyer needs around checkout.
type Service struct {
	writer    *bun.DB
	stocks    *stockrepo.Repository
	carts     *cartrepo.Repository
	customers *customerrepo.Repository
	orders    *orderrepo.Repository
	outbox    *outboxrepo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	cfg       config.Checkout
	topic     string
	producer  string
	logger    *zap.Logger
	now       func() time.Time

	placed metric.Int64Counter
	denied metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Stocks      *stockrepo.Repository
	Carts       *cartrepo.Repository
	Customers   *customerrepo.Repository
	Orders      *orderrepo.Repository
	Outbox      *outboxrepo.Repository
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := p.Cache
	if store == nil {
		store = cache.NoopStore{}
	}
	checkoutCfg := p.Config.Checkout
	if checkoutCfg.Location == nil {
		checkoutCfg.Location = time.UTC
	}

	meter := otel.Meter(instrumentationName)
	var denied metric.Int64Counter
	placed, err := meter.Int64Counter("checkout.orders.placed", metric.WithDescription("Orders committed by checkout"))
	if err != nil {
		placed = noop.Int64Counter{}
	}
	denied, err = meter.Int64Counter("checkout.orders.denied", metric.WithDescription("Checkout attempts rejected, by error code"))
	if err != nil {
		denied = noop.Int64Counter{}
	}

	return &Service{
		writer:    p.Connections.Writer,
		stocks:    p.Stocks,
		carts:     p.Carts,
		customers: p.Customers,
		orders:    p.Orders,
		outbox:    p.Outbox,
		cache:     store,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		cfg:       checkoutCfg,
		topic:     p.Config.Messaging.Kafka.Topic,
		producer:  p.Config.Observability.ServiceName,
		logger:    logger,
		now:       time.Now,
		placed:    placed,
		denied:    denied,
	}
}

// Receipt is the outcome of a committed checkout.
type Receipt struct {
	OrderID int64
	// Replayed is set when the order was created by an earlier request with
	// the same idempotency key.
	Replayed bool
}

// Checkout places the order in its own transaction. Every write commits
// together or, on any error or panic, none of them do. A non-empty
// idempotencyKey makes retries of the same request return the first order.
func (s *Service) Checkout(ctx context.Context, who actor.Actor, in Input, idempotencyKey string) (Receipt, error) {
	ctx, span := serviceTracer.Start(ctx, "CheckoutService.Checkout", trace.WithAttributes(
		attribute.Int64("account.id", who.AccountID),
		attribute.Int64("stock.id", in.StockID),
	))
	defer span.End()

	var (
		idemKey   string
		committed bool
	)
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		idemKey = s.idempotencyKey(who, key)
		receipt, claimed, err := s.claim(ctx, idemKey)
		if err != nil {
			return Receipt{}, err
		}
		if !claimed {
			span.SetAttributes(attribute.Bool("checkout.replayed", true))
			return receipt, nil
		}
		// runs on errors and panics alike; a committed key stays for replays
		defer func() {
			if !committed {
				s.release(ctx, idemKey)
			}
		}()
	}

	var (
		orderID int64
		summary summaryRecord
	)
	err := s.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		id, rec, err := s.placeOrder(ctx, tx, who, in)
		orderID, summary = id, rec
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")

		var appErr *errorbank.AppError
		if errors.As(err, &appErr) {
			return Receipt{}, err
		}
		return Receipt{}, internalError("checkout transaction failed", err)
	}
	committed = true

	if idemKey != "" {
		if err := s.cache.Set(ctx, idemKey, []byte(strconv.FormatInt(orderID, 10)), s.cfg.IdempotencyTTL); err != nil {
			s.logger.Warn("store idempotency key failed", zap.String("key", idemKey), zap.Error(err))
		}
	}
	if err := s.storeSummary(ctx, orderID, summary); err != nil {
		s.logger.Warn("order summary cache write failed", zap.Int64("order.id", orderID), zap.Error(err))
	}

	return Receipt{OrderID: orderID}, nil
}

// PlaceOrder runs the checkout steps on tx and returns the new order id. It
// never commits or rolls back; the caller owns the transaction and must roll
// it back whenever an error is returned.
func (s *Service) PlaceOrder(ctx context.Context, tx bun.IDB, who actor.Actor, in Input) (int64, error) {
	id, _, err := s.placeOrder(ctx, tx, who, in)
	return id, err
}

func (s *Service) placeOrder(ctx context.Context, tx bun.IDB, who actor.Actor, in Input) (int64, summaryRecord, error) {
	ctx, span := serviceTracer.Start(ctx, "CheckoutService.PlaceOrder", trace.WithAttributes(
		attribute.Int64("account.id", who.AccountID),
		attribute.Int64("cart.id", in.CartID),
		attribute.Int64("stock.id", in.StockID),
		attribute.Int("stock.quantity", in.Quantity),
	))
	defer span.End()

	if err := s.guard(ctx, tx, who, in); err != nil {
		s.denied.Add(ctx, 1, metric.WithAttributes(attribute.String("code", errorbank.From(err).Code())))
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout denied")
		return 0, summaryRecord{}, err
	}

	p := &placement{tx: tx, actor: who, input: in, at: s.now().In(s.cfg.Location)}
	for _, st := range s.steps() {
		if err := s.runStep(ctx, st, p); err != nil {
			s.denied.Add(ctx, 1, metric.WithAttributes(attribute.String("code", errorbank.From(err).Code())))
			span.RecordError(err)
			span.SetStatus(codes.Error, st.name+" failed")
			s.logger.Warn("checkout step failed",
				zap.String("step", st.name),
				zap.Int64("account.id", who.AccountID),
				zap.Int64("stock.id", in.StockID),
				zap.Error(err),
			)
			return 0, summaryRecord{}, err
		}
	}

	s.placed.Add(ctx, 1)
	s.logger.Info("order placed",
		zap.Int64("order.id", p.order.ID),
		zap.String("order.number", p.order.OrderNumber),
		zap.Int64("account.id", who.AccountID),
	)

	return p.order.ID, summaryRecord{
		UserID:      who.AccountID,
		OrderNumber: p.order.OrderNumber,
		TotalPrice:  p.order.TotalPrice,
	}, nil
}

// guard rejects the request before anything is written.
func (s *Service) guard(ctx context.Context, tx bun.IDB, who actor.Actor, in Input) error {
	if !who.IsCustomer() {
		return ErrPermissionDenied
	}
	if in.SoldOut {
		return ErrCheckoutDenied.With(errorbank.WithDetail("reason", "declared"))
	}
	if err := in.Validate(); err != nil {
		return err
	}

	soldOut, err := s.stocks.IsSoldOut(ctx, tx, in.StockID)
	if errors.Is(err, stockrepo.ErrNotFound) {
		return ErrProductNotExist.With(errorbank.WithDetail("stockId", in.StockID))
	}
	if err != nil {
		return internalError("failed to check stock", err)
	}
	if soldOut {
		return ErrCheckoutDenied.With(errorbank.WithDetail("reason", "stock"))
	}

	if s.cfg.VerifyPricing {
		if err := verifyPricing(in); err != nil {
			return err
		}
	}
	return nil
}

// placement is the state threaded through the steps of one checkout.
type placement struct {
	tx     bun.IDB
	actor  actor.Actor
	input  Input
	at     time.Time
	memoID int64
	seq    int64
	order  *entity.Order
	item   *entity.OrderItem
}

type step struct {
	name string
	run  func(ctx context.Context, p *placement) error
}

// steps lists the checkout writes in the order they must happen.
func (s *Service) steps() []step {
	return []step{
		{"delivery_memo", s.resolveDeliveryMemo},
		{"order_sequence", s.allocateSequence},
		{"order", s.createOrder},
		{"order_item", s.createOrderItem},
		{"order_history", s.appendHistory},
		{"stock", s.decrementStock},
		{"cart", s.deactivateCart},
		{"customer_information", s.upsertCustomerInformation},
		{"outbox", s.enqueueOrderPlaced},
	}
}

func (s *Service) runStep(ctx context.Context, st step, p *placement) error {
	ctx, span := serviceTracer.Start(ctx, "checkout.step."+st.name)
	defer span.End()

	if err := st.run(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
		return err
	}
	return nil
}

func (s *Service) isCustomMemo(in Input) bool {
	return in.DeliveryID == s.cfg.CustomMemoTypeID &&
		strings.TrimSpace(in.DeliveryMemo) != "" &&
		!in.DeliveryMemoDefault
}

func (s *Service) resolveDeliveryMemo(ctx context.Context, p *placement) error {
	if !s.isCustomMemo(p.input) {
		p.memoID = p.input.DeliveryID
		return nil
	}
	id, err := s.orders.CreateDeliveryMemo(ctx, p.tx, strings.TrimSpace(p.input.DeliveryMemo))
	if err != nil {
		return deny(ErrDeliveryMemoCreateDenied, orderrepo.ErrNotCreated, "failed to create delivery memo", err)
	}
	p.memoID = id
	return nil
}

func (s *Service) allocateSequence(ctx context.Context, p *placement) error {
	start, end := dayBounds(p.at)
	seq, err := s.orders.NextSequence(ctx, p.tx, p.at.Format(dayLayout), start, end)
	if err != nil {
		return internalError("failed to allocate order number", err)
	}
	p.seq = seq
	return nil
}

func (s *Service) createOrder(ctx context.Context, p *placement) error {
	in := p.input
	p.order = &entity.Order{
		OrderNumber:        FormatOrderNumber(p.at, p.seq),
		SenderName:         in.SenderName,
		SenderPhone:        in.SenderPhone,
		SenderEmail:        in.SenderEmail,
		RecipientName:      in.RecipientName,
		RecipientPhone:     in.RecipientPhone,
		Address1:           in.Address1,
		Address2:           in.Address2,
		PostNumber:         in.PostNumber,
		UserID:             p.actor.AccountID,
		DeliveryMemoTypeID: p.memoID,
		TotalPrice:         in.TotalPrice,
		CreatedAt:          p.at.UTC(),
	}
	if err := s.orders.Create(ctx, p.tx, p.order); err != nil {
		return deny(ErrOrderCreateDenied, orderrepo.ErrNotCreated, "failed to create order", err)
	}
	return nil
}

func (s *Service) createOrderItem(ctx context.Context, p *placement) error {
	in := p.input
	p.item = &entity.OrderItem{
		ProductID:         in.ProductID,
		StockID:           in.StockID,
		Quantity:          in.Quantity,
		OrderID:           p.order.ID,
		CartID:            in.CartID,
		OrderDetailNumber: FormatOrderDetailNumber(p.at, p.seq, 1),
		StatusID:          entity.OrderItemPrepared,
		OriginalPrice:     in.OriginalPrice,
		DiscountedPrice:   in.DiscountedPrice,
		Sale:              in.Sale,
		CreatedAt:         p.at.UTC(),
	}
	if err := s.orders.CreateItem(ctx, p.tx, p.item); err != nil {
		return deny(ErrOrderItemCreateDenied, orderrepo.ErrNotCreated, "failed to create order item", err)
	}
	return nil
}

func (s *Service) appendHistory(ctx context.Context, p *placement) error {
	history := &entity.OrderItemHistory{
		OrderItemID: p.item.ID,
		StatusID:    p.item.StatusID,
		UpdaterID:   p.actor.AccountID,
		CreatedAt:   p.at.UTC(),
	}
	if err := s.orders.AppendHistory(ctx, p.tx, history); err != nil {
		return deny(ErrOrderHistoryCreateDenied, orderrepo.ErrNotCreated, "failed to append order history", err)
	}
	return nil
}

func (s *Service) decrementStock(ctx context.Context, p *placement) error {
	err := s.stocks.Decrement(ctx, p.tx, p.input.StockID, p.input.Quantity)
	if errors.Is(err, stockrepo.ErrInvalidQuantity) {
		return ErrProductRemainUpdateDenied.With(errorbank.WithCause(err))
	}
	if err != nil {
		return deny(ErrProductRemainUpdateDenied, stockrepo.ErrNotUpdated, "failed to update stock", err)
	}
	return nil
}

func (s *Service) deactivateCart(ctx context.Context, p *placement) error {
	if err := s.carts.Deactivate(ctx, p.tx, p.input.CartID, p.actor.AccountID, p.input.StockID); err != nil {
		return deny(ErrDeleteDenied, cartrepo.ErrNotDeleted, "failed to delete cart item", err)
	}
	return nil
}

func (s *Service) upsertCustomerInformation(ctx context.Context, p *placement) error {
	info := &entity.CustomerInformation{
		AccountID: p.actor.AccountID,
		Name:      p.input.SenderName,
		Email:     p.input.SenderEmail,
		Phone:     p.input.SenderPhone,
		UpdatedAt: p.at.UTC(),
	}
	if err := s.customers.Upsert(ctx, p.tx, info); err != nil {
		return internalError("failed to save customer information", err)
	}
	return nil
}

func (s *Service) enqueueOrderPlaced(ctx context.Context, p *placement) error {
	event := OrderPlacedEvent{
		EventID:           uuid.NewString(),
		Type:              EventOrderPlaced,
		OccurredAt:        p.at.UTC(),
		Producer:          s.producer,
		OrderID:           p.order.ID,
		OrderNumber:       p.order.OrderNumber,
		OrderDetailNumber: p.item.OrderDetailNumber,
		UserID:            p.actor.AccountID,
		ProductID:         p.input.ProductID,
		StockID:           p.input.StockID,
		Quantity:          p.input.Quantity,
		TotalPrice:        p.order.TotalPrice,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return internalError("failed to encode order event", err)
	}

	row := &entity.OutboxEvent{
		EventID:   event.EventID,
		Topic:     s.topic,
		EventKey:  fmt.Sprintf("order-%d", p.order.ID),
		Payload:   payload,
		CreatedAt: p.at.UTC(),
	}
	if err := s.outbox.Insert(ctx, p.tx, row); err != nil {
		return internalError("failed to enqueue order event", err)
	}
	return nil
}

// deny maps the repository's "nothing happened" error onto the named checkout
// error; anything else is an unclassified storage failure.
func deny(named *errorbank.AppError, noRows error, message string, err error) error {
	if errors.Is(err, noRows) {
		return named.With(errorbank.WithCause(err))
	}
	return internalError(message, err)
}

// OrderSummary is what a buyer sees after checkout.
type OrderSummary struct {
	OrderNumber string          `json:"order_number"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type summaryRecord struct {
	UserID      int64           `json:"user_id"`
	OrderNumber string          `json:"order_number"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Summary returns the order number and total of an order the actor may see.
// Customers only see their own orders; master accounts see every order.
func (s *Service) Summary(ctx context.Context, who actor.Actor, orderID int64) (OrderSummary, error) {
	ctx, span := serviceTracer.Start(ctx, "CheckoutService.Summary", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	rec, err := s.loadSummary(ctx, orderID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Debug("order summary cache miss", zap.Int64("order.id", orderID))
		} else {
			s.logger.Warn("order summary cache read failed", zap.Int64("order.id", orderID), zap.Error(err))
		}

		order, err := s.orders.GetByID(ctx, nil, orderID)
		if errors.Is(err, orderrepo.ErrNotFound) {
			return OrderSummary{}, ErrOrderNotFound
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return OrderSummary{}, internalError("failed to load order", err)
		}
		rec = summaryRecord{UserID: order.UserID, OrderNumber: order.OrderNumber, TotalPrice: order.TotalPrice}
		if err := s.storeSummary(ctx, orderID, rec); err != nil {
			s.logger.Warn("order summary cache write failed", zap.Int64("order.id", orderID), zap.Error(err))
		}
	}

	if who.Role != actor.RoleMaster && rec.UserID != who.AccountID {
		return OrderSummary{}, ErrOrderNotFound
	}
	return OrderSummary{OrderNumber: rec.OrderNumber, TotalPrice: rec.TotalPrice}, nil
}

// CacheOrderPlaced warms the summary cache from a relayed event.
func (s *Service) CacheOrderPlaced(ctx context.Context, event OrderPlacedEvent) error {
	if event.OrderID <= 0 {
		return fmt.Errorf("order placed event without order id")
	}
	return s.storeSummary(ctx, event.OrderID, summaryRecord{
		UserID:      event.UserID,
		OrderNumber: event.OrderNumber,
		TotalPrice:  event.TotalPrice,
	})
}

// CustomerInformation returns the contact details the actor last checked out with.
func (s *Service) CustomerInformation(ctx context.Context, who actor.Actor) (*entity.CustomerInformation, error) {
	ctx, span := serviceTracer.Start(ctx, "CheckoutService.CustomerInformation", trace.WithAttributes(attribute.Int64("account.id", who.AccountID)))
	defer span.End()

	info, err := s.customers.Get(ctx, nil, who.AccountID)
	if errors.Is(err, customerrepo.ErrNotFound) {
		return nil, ErrCustomerInformationNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, internalError("failed to load customer information", err)
	}
	return info, nil
}

func (s *Service) summaryKey(orderID int64) string {
	return fmt.Sprintf("checkout:summary:%d", orderID)
}

func (s *Service) loadSummary(ctx context.Context, orderID int64) (summaryRecord, error) {
	raw, err := s.cache.Get(ctx, s.summaryKey(orderID))
	if err != nil {
		return summaryRecord{}, err
	}
	var rec summaryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return summaryRecord{}, err
	}
	return rec, nil
}

func (s *Service) storeSummary(ctx context.Context, orderID int64, rec summaryRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.summaryKey(orderID), raw, s.cacheTTL)
}

func (s *Service) idempotencyKey(who actor.Actor, key string) string {
	return fmt.Sprintf("checkout:idempotency:%d:%s", who.AccountID, key)
}

// release frees a claimed key so the client can retry, even when ctx is
// already cancelled.
func (s *Service) release(ctx context.Context, key string) {
	if err := s.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("release idempotency key failed", zap.String("key", key), zap.Error(err))
	}
}

// claim reserves key for this request. When another request already holds it,
// the earlier order is returned instead. Cache outages do not block checkout.
func (s *Service) claim(ctx context.Context, key string) (Receipt, bool, error) {
	ok, err := s.cache.SetIfAbsent(ctx, key, []byte(idempotencyPending), s.cfg.IdempotencyTTL)
	if err != nil {
		s.logger.Warn("idempotency claim failed; continuing without it", zap.String("key", key), zap.Error(err))
		return Receipt{}, true, nil
	}
	if ok {
		return Receipt{}, true, nil
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		// a miss here means the holder released the key between the two calls
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		}
		return Receipt{}, false, ErrCheckoutInProgress
	}
	if string(raw) == idempotencyPending {
		return Receipt{}, false, ErrCheckoutInProgress
	}
	orderID, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return Receipt{}, false, internalError("corrupt idempotency record", err)
	}
	return Receipt{OrderID: orderID, Replayed: true}, false, nil
}
