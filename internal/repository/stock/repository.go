package stock

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

var repoTracer = otel.Tracer("github.com/Additional-Code/storefront/repository/stock")

var (
	// ErrNotFound is returned when the stock row does not exist.
	ErrNotFound = errors.New("stock not found")
	// ErrNotUpdated is returned when a decrement matched no row, either because
	// the row is missing or because it holds less than the requested quantity.
	ErrNotUpdated = errors.New("stock not updated")
	// ErrInvalidQuantity rejects non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Repository reads and adjusts per-variant stock.
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

// Create inserts a stock row.
func (r *Repository) Create(ctx context.Context, db bun.IDB, entry *entity.StockEntry) error {
	if entry == nil {
		return errors.New("nil stock entry")
	}
	ctx, span := repoTracer.Start(ctx, "StockRepository.Create", trace.WithAttributes(attribute.Int64("product.id", entry.ProductID)))
	defer span.End()

	if _, err := r.write(db).NewInsert().Model(entry).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Remaining returns the current remaining quantity.
func (r *Repository) Remaining(ctx context.Context, db bun.IDB, stockID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "StockRepository.Remaining", trace.WithAttributes(attribute.Int64("stock.id", stockID)))
	defer span.End()

	var remaining int
	err := r.read(db).NewSelect().
		Model((*entity.StockEntry)(nil)).
		Column("remaining_quantity").
		Where("id = ?", stockID).
		Scan(ctx, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return 0, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return 0, err
	}
	return remaining, nil
}

// IsSoldOut reports whether the variant has nothing left to sell.
func (r *Repository) IsSoldOut(ctx context.Context, db bun.IDB, stockID int64) (bool, error) {
	remaining, err := r.Remaining(ctx, db, stockID)
	if err != nil {
		return false, err
	}
	return remaining <= 0, nil
}

// Decrement subtracts qty only when enough stock remains, so concurrent
// checkouts can never drive the quantity negative.
func (r *Repository) Decrement(ctx context.Context, db bun.IDB, stockID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ctx, span := repoTracer.Start(ctx, "StockRepository.Decrement", trace.WithAttributes(
		attribute.Int64("stock.id", stockID),
		attribute.Int("stock.quantity", qty),
	))
	defer span.End()

	res, err := r.write(db).NewUpdate().
		Model((*entity.StockEntry)(nil)).
		Set("remaining_quantity = remaining_quantity - ?", qty).
		Where("id = ?", stockID).
		Where("remaining_quantity >= ?", qty).
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
		return ErrNotUpdated
	}
	return nil
}

// Restock adds qty back to the variant.
func (r *Repository) Restock(ctx context.Context, db bun.IDB, stockID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ctx, span := repoTracer.Start(ctx, "StockRepository.Restock", trace.WithAttributes(attribute.Int64("stock.id", stockID)))
	defer span.End()

	res, err := r.write(db).NewUpdate().
		Model((*entity.StockEntry)(nil)).
		Set("remaining_quantity = remaining_quantity + ?", qty).
		Where("id = ?", stockID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
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
