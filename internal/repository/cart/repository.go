package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/storefront/internal/database"
	"github.com/Additional-Code/storefront/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/storefront/repository/cart")

var (
	// ErrNotFound is returned when a cart item is missing.
	ErrNotFound = errors.New("cart item not found")
	// ErrNotDeleted is returned when a soft delete matched no active item of the user.
	ErrNotDeleted = errors.New("cart item not deleted")
)

// Repository encapsulates access to staged cart items.
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

// Create stages a new cart item.
func (r *Repository) Create(ctx context.Context, db bun.IDB, item *entity.CartItem) error {
	if item == nil {
		return errors.New("nil cart item")
	}
	ctx, span := repoTracer.Start(ctx, "CartRepository.Create", trace.WithAttributes(attribute.Int64("user.id", item.UserID)))
	defer span.End()

	if _, err := r.write(db).NewInsert().Model(item).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Get fetches a cart item regardless of its deleted flag.
func (r *Repository) Get(ctx context.Context, db bun.IDB, id int64) (*entity.CartItem, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.Get", trace.WithAttributes(attribute.Int64("cart.id", id)))
	defer span.End()

	item := new(entity.CartItem)
	err := r.read(db).NewSelect().Model(item).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return item, nil
}

// ActiveByUser lists the user's cart items that have not been checked out.
func (r *Repository) ActiveByUser(ctx context.Context, db bun.IDB, userID int64) ([]entity.CartItem, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.ActiveByUser", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var items []entity.CartItem
	err := r.read(db).NewSelect().
		Model(&items).
		Where("user_id = ?", userID).
		Where("is_deleted = ?", false).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return items, nil
}

// Deactivate soft-deletes an active cart item owned by userID that holds stockID.
func (r *Repository) Deactivate(ctx context.Context, db bun.IDB, cartID, userID, stockID int64) error {
	ctx, span := repoTracer.Start(ctx, "CartRepository.Deactivate", trace.WithAttributes(
		attribute.Int64("cart.id", cartID),
		attribute.Int64("user.id", userID),
		attribute.Int64("stock.id", stockID),
	))
	defer span.End()

	res, err := r.write(db).NewUpdate().
		Model((*entity.CartItem)(nil)).
		Set("is_deleted = ?", true).
		Where("id = ?", cartID).
		Where("user_id = ?", userID).
		Where("stock_id = ?", stockID).
		Where("is_deleted = ?", false).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		span.SetStatus(codes.Error, "no rows updated")
		return ErrNotDeleted
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
