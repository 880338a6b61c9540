package customer

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

var repoTracer = otel.Tracer("github.com/Additional-Code/storefront/repository/customer")

// ErrNotFound is returned when the account never checked out.
var ErrNotFound = errors.New("customer information not found")

// Repository keeps the per-account checkout prefill.
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

// Upsert stores the contact details for info.AccountID in a single statement,
// replacing whatever was there before.
func (r *Repository) Upsert(ctx context.Context, db bun.IDB, info *entity.CustomerInformation) error {
	if info == nil {
		return errors.New("nil customer information")
	}
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Upsert", trace.WithAttributes(attribute.Int64("account.id", info.AccountID)))
	defer span.End()

	conn := r.write(db)
	q := conn.NewInsert().Model(info)
	if database.IsMySQL(conn) {
		q = q.On("DUPLICATE KEY UPDATE").
			Set("name = VALUES(name)").
			Set("email = VALUES(email)").
			Set("phone = VALUES(phone)").
			Set("updated_at = VALUES(updated_at)")
	} else {
		q = q.On("CONFLICT (account_id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("email = EXCLUDED.email").
			Set("phone = EXCLUDED.phone").
			Set("updated_at = EXCLUDED.updated_at")
	}

	if _, err := q.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return err
	}
	return nil
}

// Get returns the stored details for accountID.
func (r *Repository) Get(ctx context.Context, db bun.IDB, accountID int64) (*entity.CustomerInformation, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Get", trace.WithAttributes(attribute.Int64("account.id", accountID)))
	defer span.End()

	info := new(entity.CustomerInformation)
	err := r.read(db).NewSelect().Model(info).Where("account_id = ?", accountID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return info, nil
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
