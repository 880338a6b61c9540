// Package outbox relays committed outbox events to the message bus.
package outbox

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/entity"
	"github.com/Additional-Code/storefront/internal/messaging"
	outboxrepo "github.com/Additional-Code/storefront/internal/repository/outbox"
)

var relayTracer = otel.Tracer("github.com/Additional-Code/storefront/worker/outbox")

// Store is the part of the outbox repository the relay needs.
type Store interface {
	Claim(ctx context.Context, limit int, sentAt func() time.Time, publish func(context.Context, []entity.OutboxEvent) error) (int, error)
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Outbox *outboxrepo.Repository
	Client messaging.Client
	Config config.Config
	Logger *zap.Logger
}

// Relay polls the outbox and publishes pending events. Several relays may run
// against one database; each batch is claimed by exactly one of them. Delivery
// is still at least once: a crash between publish and commit publishes the
// batch again.
type Relay struct {
	store    Store
	client   messaging.Client
	interval time.Duration
	batch    int
	enabled  bool
	logger   *zap.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelay constructs the Relay from Fx dependencies.
func NewRelay(p Params) *Relay {
	enabled := p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled && p.Client.Enabled()
	return newRelay(p.Outbox, p.Client, p.Config.Messaging.Workers.PollInterval, p.Config.Checkout.OutboxBatch, enabled, p.Logger)
}

func newRelay(store Store, client messaging.Client, interval time.Duration, batch int, enabled bool, logger *zap.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		store:    store,
		client:   client,
		interval: interval,
		batch:    batch,
		enabled:  enabled,
		logger:   logger,
		now:      time.Now,
	}
}

// Module wires the relay into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewRelay),
	fx.Invoke(func(lc fx.Lifecycle, r *Relay) {
		lc.Append(fx.Hook{
			OnStart: r.start,
			OnStop:  r.stop,
		})
	}),
)

// RelayOnce publishes at most one batch of pending events and reports how many
// were marked sent.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	ctx, span := relayTracer.Start(ctx, "outbox.relay")
	defer span.End()

	n, err := r.store.Claim(ctx, r.batch, func() time.Time { return r.now().UTC() }, func(ctx context.Context, events []entity.OutboxEvent) error {
		msgs := make([]messaging.Message, 0, len(events))
		for _, ev := range events {
			msgs = append(msgs, toMessage(ev))
		}
		span.SetAttributes(attribute.Int("outbox.batch", len(events)))
		return r.client.Publish(ctx, msgs...)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relay failed")
		return 0, err
	}

	if n > 0 {
		r.logger.Debug("outbox events relayed", zap.Int("count", n))
	}
	return n, nil
}

func toMessage(ev entity.OutboxEvent) messaging.Message {
	return messaging.Message{
		Topic:   ev.Topic,
		Key:     []byte(ev.EventKey),
		Value:   ev.Payload,
		Headers: map[string]string{messaging.HeaderEventID: ev.EventID},
	}
}

func (r *Relay) start(context.Context) error {
	if !r.enabled {
		r.logger.Info("outbox relay disabled")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(runCtx)
	}()

	r.logger.Info("outbox relay started", zap.Duration("interval", r.interval), zap.Int("batch", r.batch))
	return nil
}

func (r *Relay) stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		r.logger.Info("outbox relay stopped")

		return nil
	}
}

func (r *Relay) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		// drain full batches before waiting for the next tick
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("outbox relay failed", zap.Error(err))
				}
				break
			}
			if n < r.batch {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

var _ Store = (*outboxrepo.Repository)(nil)
