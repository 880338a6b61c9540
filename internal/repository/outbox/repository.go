package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/storefront/internal/database"
	"github.com/Additional-Code/storefront/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/storefront/repository/outbox")

// Repository stores events next to the business rows that produced them.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Insert enqueues an event. Pass the business transaction as db so the event
// commits or rolls back together with it.
func (r *Repository) Insert(ctx context.Context, db bun.IDB, event *entity.OutboxEvent) error {
	if event == nil {
		return errors.New("nil outbox event")
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	ctx, span := repoTracer.Start(ctx, "OutboxRepository.Insert", trace.WithAttributes(
		attribute.String("event.id", event.EventID),
		attribute.String("messaging.topic", event.Topic),
	))
	defer span.End()

	if _, err := r.write(db).NewInsert().Model(event).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// FetchPending returns up to limit unsent events, oldest first. A nil db reads
// from the writer; a lagging replica would hand out events twice. Inside a
// transaction the rows stay locked until commit and rows locked by another
// relay are skipped.
func (r *Repository) FetchPending(ctx context.Context, db bun.IDB, limit int) ([]entity.OutboxEvent, error) {
	ctx, span := repoTracer.Start(ctx, "OutboxRepository.FetchPending", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var events []entity.OutboxEvent
	if err := pendingQuery(r.write(db), limit).Model(&events).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return events, nil
}

func pendingQuery(db bun.IDB, limit int) *bun.SelectQuery {
	if limit <= 0 {
		limit = 100
	}
	q := db.NewSelect().
		Model((*entity.OutboxEvent)(nil)).
		Where("sent_at IS NULL").
		Order("id ASC").
		Limit(limit)
	if database.SupportsSkipLocked(db) {
		q = q.For("UPDATE SKIP LOCKED")
	}
	return q
}

// MarkSent stamps the given events as delivered.
func (r *Repository) MarkSent(ctx context.Context, db bun.IDB, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, span := repoTracer.Start(ctx, "OutboxRepository.MarkSent", trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	_, err := r.write(db).NewUpdate().
		Model((*entity.OutboxEvent)(nil)).
		Set("sent_at = ?", at.UTC()).
		Where("id IN (?)", bun.In(ids)).
		Where("sent_at IS NULL").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return nil
}

// Claim locks up to limit pending events, hands them to publish and marks them
// sent at sentAt() once publish succeeds, all in one writer transaction.
// Concurrent relays each get a disjoint batch. When publish fails the events
// stay pending.
func (r *Repository) Claim(ctx context.Context, limit int, sentAt func() time.Time, publish func(context.Context, []entity.OutboxEvent) error) (int, error) {
	var claimed int
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		events, err := r.FetchPending(ctx, tx, limit)
		if err != nil || len(events) == 0 {
			return err
		}
		if err := publish(ctx, events); err != nil {
			return err
		}

		ids := make([]int64, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ID)
		}
		if err := r.MarkSent(ctx, tx, ids, sentAt()); err != nil {
			return err
		}
		claimed = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return claimed, nil
}

// PendingCount reports how many events are waiting to be relayed.
func (r *Repository) PendingCount(ctx context.Context) (int, error) {
	return r.reader.NewSelect().Model((*entity.OutboxEvent)(nil)).Where("sent_at IS NULL").Count(ctx)
}

func (r *Repository) write(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.writer
}
