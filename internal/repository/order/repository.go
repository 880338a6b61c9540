package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/storefront/internal/database"
	"github.com/Additional-Code/storefront/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/storefront/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrNotCreated is returned when an insert produced no identifier.
	ErrNotCreated = errors.New("row not created")
)

// Repository encapsulates read/write access for orders, their items and history.
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

// CreateDeliveryMemo stores a free-text memo and returns its id.
func (r *Repository) CreateDeliveryMemo(ctx context.Context, db bun.IDB, content string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateDeliveryMemo")
	defer span.End()

	memo := &entity.DeliveryMemoType{Content: content}
	if err := r.insert(ctx, span, r.write(db), memo); err != nil {
		return 0, err
	}
	if memo.ID == 0 {
		span.SetStatus(codes.Error, "no id returned")
		return 0, ErrNotCreated
	}
	return memo.ID, nil
}

// NextSequence increments and returns the order counter for day (YYYYMMDD).
// The first call of a day seeds the counter from the orders already created
// inside [dayStart, dayEnd) so numbering survives a counter table reset.
// Callers run it inside the checkout transaction; the updated row stays
// locked until commit, serialising concurrent checkouts of the same day.
func (r *Repository) NextSequence(ctx context.Context, db bun.IDB, day string, dayStart, dayEnd time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.NextSequence", trace.WithAttributes(attribute.String("order.day", day)))
	defer span.End()

	conn := r.write(db)

	res, err := conn.NewUpdate().
		Model((*entity.OrderSequence)(nil)).
		Set("value = value + 1").
		Where("day = ?", day).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}

	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		existing, err := r.CountCreatedBetween(ctx, conn, dayStart, dayEnd)
		if err != nil {
			return 0, err
		}

		query := "INSERT INTO order_sequences (day, value) VALUES (?, ?) ON CONFLICT (day) DO UPDATE SET value = order_sequences.value + 1"
		if database.IsMySQL(conn) {
			query = "INSERT INTO order_sequences (day, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = value + 1"
		}
		if _, err := conn.NewRaw(query, day, existing+1).Exec(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert failed")
			return 0, err
		}
	}

	var value int64
	err = conn.NewSelect().
		Model((*entity.OrderSequence)(nil)).
		Column("value").
		Where("day = ?", day).
		Scan(ctx, &value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return 0, err
	}

	span.SetAttributes(attribute.Int64("order.sequence", value))
	return value, nil
}

// CountCreatedBetween counts orders created inside [from, to).
func (r *Repository) CountCreatedBetween(ctx context.Context, db bun.IDB, from, to time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountCreatedBetween")
	defer span.End()

	n, err := r.read(db).NewSelect().
		Model((*entity.Order)(nil)).
		Where("created_at >= ?", from.UTC()).
		Where("created_at < ?", to.UTC()).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, err
	}
	return int64(n), nil
}

// Create persists a new order header.
func (r *Repository) Create(ctx context.Context, db bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.OrderNumber)))
	defer span.End()

	if err := r.insert(ctx, span, r.write(db), order); err != nil {
		return err
	}
	if order.ID == 0 {
		span.SetStatus(codes.Error, "no id returned")
		return ErrNotCreated
	}
	return nil
}

// CreateItem persists one order line.
func (r *Repository) CreateItem(ctx context.Context, db bun.IDB, item *entity.OrderItem) error {
	if item == nil {
		return errors.New("nil order item")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateItem", trace.WithAttributes(
		attribute.Int64("order.id", item.OrderID),
		attribute.String("order.detail_number", item.OrderDetailNumber),
	))
	defer span.End()

	if err := r.insert(ctx, span, r.write(db), item); err != nil {
		return err
	}
	if item.ID == 0 {
		span.SetStatus(codes.Error, "no id returned")
		return ErrNotCreated
	}
	return nil
}

// AppendHistory records a status transition. History rows are never updated.
func (r *Repository) AppendHistory(ctx context.Context, db bun.IDB, history *entity.OrderItemHistory) error {
	if history == nil {
		return errors.New("nil order item history")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.AppendHistory", trace.WithAttributes(
		attribute.Int64("order_item.id", history.OrderItemID),
		attribute.String("order_item.status", history.StatusID.String()),
	))
	defer span.End()

	if err := r.insert(ctx, span, r.write(db), history); err != nil {
		return err
	}
	if history.ID == 0 {
		span.SetStatus(codes.Error, "no id returned")
		return ErrNotCreated
	}
	return nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, db bun.IDB, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.read(db).NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ItemsByOrder lists the lines of an order.
func (r *Repository) ItemsByOrder(ctx context.Context, db bun.IDB, orderID int64) ([]entity.OrderItem, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ItemsByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var items []entity.OrderItem
	if err := r.read(db).NewSelect().Model(&items).Where("order_id = ?", orderID).Order("id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// HistoryByItem lists the status trail of an order item, oldest first.
func (r *Repository) HistoryByItem(ctx context.Context, db bun.IDB, itemID int64) ([]entity.OrderItemHistory, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.HistoryByItem", trace.WithAttributes(attribute.Int64("order_item.id", itemID)))
	defer span.End()

	var history []entity.OrderItemHistory
	if err := r.read(db).NewSelect().Model(&history).Where("order_item_id = ?", itemID).Order("id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return history, nil
}

func (r *Repository) insert(ctx context.Context, span trace.Span, db bun.IDB, model any) error {
	if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

func (r *Repository) read(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.reader
}

func (r *Repository) write(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.writer
}
