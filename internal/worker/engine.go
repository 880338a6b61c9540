package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
	"github.com/Additional-Code/storefront/internal/messaging"
)

const (
	consumeRetryMin = time.Second
	consumeRetryMax = 30 * time.Second
)

// HandlerRegistration binds a message topic to a handler. Name shows up in logs.
type HandlerRegistration struct {
	Name    string
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs a fixed pool of consumers and routes each message to the
// handler registered for its topic.
type Engine struct {
	client      messaging.Client
	logger      *zap.Logger
	enabled     bool
	concurrency int
	routes      map[string]HandlerRegistration
	handled     metric.Int64Counter

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	routes := make(map[string]HandlerRegistration, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		if prev, ok := routes[r.Topic]; ok {
			logger.Warn("duplicate worker handler; keeping the last one",
				zap.String("topic", r.Topic), zap.String("replaced", prev.Name), zap.String("handler", r.Name))
		}
		routes[r.Topic] = r
	}

	handled, err := otel.Meter("github.com/Additional-Code/storefront/worker").Int64Counter(
		"worker.messages.handled",
		metric.WithDescription("Messages taken off the bus, by handler and outcome"),
	)
	if err != nil {
		handled = noop.Int64Counter{}
	}

	return &Engine{
		client:      p.Client,
		logger:      logger,
		enabled:     p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		concurrency: max(p.Config.Messaging.Workers.Concurrency, 1),
		routes:      routes,
		handled:     handled,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(context.Context) error {
	switch {
	case !e.enabled:
		e.logger.Info("worker engine disabled")
		return nil
	case len(e.routes) == 0:
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	var wg sync.WaitGroup
	for id := 0; id < e.concurrency; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.consume(runCtx, id)
		}()
	}
	go func() {
		wg.Wait()
		close(e.done)
	}()

	topics := make([]string, 0, len(e.routes))
	for topic := range e.routes {
		topics = append(topics, topic)
	}
	e.logger.Info("worker engine started", zap.Int("workers", e.concurrency), zap.Strings("topics", topics))
	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// consume keeps one consumer attached to the bus until ctx ends, backing off
// exponentially while the bus keeps failing.
func (e *Engine) consume(ctx context.Context, workerID int) {
	retry := consumeRetryMin
	for ctx.Err() == nil {
		started := time.Now()
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, workerID, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		// a consumer that ran for a while before failing starts over from the short delay
		if time.Since(started) > consumeRetryMax {
			retry = consumeRetryMin
		}
		e.logger.Error("consume loop error", zap.Int("worker", workerID), zap.Duration("retry_in", retry), zap.Error(err))

		select {
		case <-time.After(retry):
		case <-ctx.Done():
			return
		}
		retry = min(retry*2, consumeRetryMax)
	}
}

// dispatch routes msg to its handler. A panicking handler fails only that message.
func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) (err error) {
	reg, ok := e.routes[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		e.record(ctx, "", "unrouted")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("worker handler panicked", zap.String("handler", reg.Name), zap.Any("panic", r))
			err = fmt.Errorf("handler %s panicked: %v", reg.Name, r)
			e.record(ctx, reg.Name, "panic")
		}
	}()

	e.logger.Debug("processing message",
		zap.String("topic", msg.Topic),
		zap.String("handler", reg.Name),
		zap.Int("worker", workerID),
	)

	if err := reg.Handler(ctx, msg); err != nil {
		e.record(ctx, reg.Name, "error")
		return err
	}
	e.record(ctx, reg.Name, "ok")
	return nil
}

func (e *Engine) record(ctx context.Context, handler, outcome string) {
	e.handled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("outcome", outcome),
	))
}
