package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/slotledger/libs/db"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage/migrations"
)

const (
	constraintActiveSlot    = "slot_occupancy_active_slot_key"
	constraintExceptionDate = "date_exceptions_date_key"

	pgUniqueViolation    = "23505"
	pgInvalidTextForType = "22P02"
)

// Repository is the Postgres implementation of every booking-service store.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

// Migrate brings the schema up to date.
func (r *Repository) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, r.pool, migrations.FS, migrations.Dir)
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// translate maps driver errors onto the model's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	// A malformed uuid cannot name an existing row.
	if pgErr.Code == pgInvalidTextForType {
		return fmt.Errorf("%w: %s", model.ErrNotFound, pgErr.Message)
	}
	if pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case constraintActiveSlot:
			return fmt.Errorf("%w: %s", model.ErrSlotAlreadyBooked, pgErr.Detail)
		case constraintExceptionDate:
			return fmt.Errorf("%w: %s", model.ErrDuplicateDate, pgErr.Detail)
		}
	}
	return err
}

func IsConflict(err error) bool {
	return errors.Is(err, model.ErrSlotAlreadyBooked) || errors.Is(err, model.ErrDuplicateDate)
}

func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
