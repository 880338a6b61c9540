package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/storefront/internal/config"
)

// HeaderEventID carries the outbox event id so consumers can drop duplicates.
const HeaderEventID = "event-id"

// Message is a record published to or consumed from the bus. An empty Topic
// on publish means the client's default topic.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	// Publish writes msgs as one batch; either all are acknowledged or an error is returned.
	Publish(ctx context.Context, msgs ...Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
	Enabled() bool
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// noopClient is used when messaging is disabled.
type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, ...Message) error { return nil }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }
func (n noopClient) Enabled() bool { return false }

// handlerAttempts bounds how often one message is handed to a failing
// handler before it is committed and skipped.
const handlerAttempts = 3

// kafkaReader is the part of *kafka.Reader the client consumes through.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaClient implements the Client via kafka-go.
type kafkaClient struct {
	writer     *kafka.Writer
	reader     kafkaReader
	topic      string
	retryDelay time.Duration
	logger     *zap.Logger
}

func (k *kafkaClient) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		topic := m.Topic
		if topic == "" {
			topic = k.topic
		}
		out = append(out, kafka.Message{Topic: topic, Key: m.Key, Value: m.Value, Headers: toKafkaHeaders(m.Headers)})
	}
	return k.writer.WriteMessages(ctx, out...)
}

// Consume fetches until ctx ends. A message is committed once its handler
// succeeds, or after handlerAttempts failures so one bad record cannot stall
// the partition.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))
			if err := k.wait(ctx); err != nil {
				return err
			}
			continue
		}

		if err := k.handle(ctx, handler, msg); err != nil {
			return err
		}
		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle runs handler for msg with retries. It only returns an error when ctx ends.
func (k *kafkaClient) handle(ctx context.Context, handler Handler, msg kafka.Message) error {
	wrapped := Message{
		Topic:   msg.Topic,
		Key:     append([]byte(nil), msg.Key...),
		Value:   append([]byte(nil), msg.Value...),
		Offset:  msg.Offset,
		Time:    msg.Time,
		Headers: fromKafkaHeaders(msg.Headers),
	}

	for attempt := 1; ; attempt++ {
		err := handler(ctx, wrapped)
		if err == nil {
			return nil
		}
		fields := []zap.Field{
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		}
		if attempt >= handlerAttempts {
			k.logger.Error("message handler failed; skipping message", fields...)
			return nil
		}
		k.logger.Warn("message handler failed; retrying", fields...)
		if err := k.wait(ctx); err != nil {
			return err
		}
	}
}

func (k *kafkaClient) wait(ctx context.Context) error {
	t := time.NewTimer(k.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (k *kafkaClient) Topic() string { return k.topic }
func (k *kafkaClient) Enabled() bool { return true }

func toKafkaHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(h))
	for key, value := range h {
		out = append(out, kafka.Header{Key: key, Value: []byte(value)})
	}
	return out
}

func fromKafkaHeaders(h []kafka.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	m := make(map[string]string, len(h))
	for _, header := range h {
		m[header.Key] = string(header.Value)
	}
	return m
}

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")

		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic

	// Topic is set per message so the relay can route events stored with their own topic.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Messaging.Kafka.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger, errors: true},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Messaging.Kafka.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          topic,
		MinBytes:       cfg.Messaging.Kafka.MinBytes,
		MaxBytes:       cfg.Messaging.Kafka.MaxBytes,
		CommitInterval: cfg.Messaging.Kafka.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  cfg.Messaging.Kafka.ConnectTimeout,
			ClientID: cfg.Messaging.Kafka.ClientID,
		},
	})

	client := &kafkaClient{writer: writer, reader: reader, topic: topic, retryDelay: time.Second, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")

			return errors.Join(writer.Close(), reader.Close())
		},
	})

	return client, nil
}

// kafkaLogger adapts zap to kafka-go's Printf loggers.
type kafkaLogger struct {
	logger *zap.Logger
	errors bool
}

func (k kafkaLogger) Printf(msg string, args ...any) {
	if k.errors {
		k.logger.Sugar().Errorf(msg, args...)
		return
	}
	k.logger.Sugar().Debugf(msg, args...)
}
