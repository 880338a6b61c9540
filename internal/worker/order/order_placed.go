package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/messaging"
	"github.com/Additional-Code/storefront/internal/service/checkout"
	"github.com/Additional-Code/storefront/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/storefront/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderPlacedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

type summaryWarmer interface {
	CacheOrderPlaced(ctx context.Context, event checkout.OrderPlacedEvent) error
}

// NewOrderPlacedHandler warms the order summary cache from relayed checkout events.
func NewOrderPlacedHandler(svc *checkout.Service, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Name:    "order_placed",
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: orderPlacedHandler(svc, logger),
	}
}

func orderPlacedHandler(svc summaryWarmer, logger *zap.Logger) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.placed", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("event.id", msg.Headers[messaging.HeaderEventID]),
		))
		defer span.End()

		var event checkout.OrderPlacedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order placed", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		if event.Type != checkout.EventOrderPlaced {
			logger.Debug("skipping event", zap.String("type", event.Type))
			return nil
		}

		if err := svc.CacheOrderPlaced(ctx, event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cache warm failed")
			return fmt.Errorf("warm order summary %d: %w", event.OrderID, err)
		}

		logger.Info("order placed event processed",
			zap.Int64("order.id", event.OrderID),
			zap.String("order.number", event.OrderNumber),
			zap.String("event.id", event.EventID),
		)
		return nil
	}
}
