package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

const exceptionColumns = `id::text, to_char(exception_date, 'YYYY-MM-DD'), reason, is_active,
	is_full_day_blocked, blocked_time_slots, created_at, updated_at`

func (r *Repository) CreateDateException(ctx context.Context, exc *model.DateException) error {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO date_exceptions (id, exception_date, reason, is_active, is_full_day_blocked, blocked_time_slots)
		VALUES ($1, $2::date, $3, $4, $5, $6)
		RETURNING `+exceptionColumns,
		exc.ID, exc.Date, exc.Reason, exc.IsActive, exc.IsFullDayBlocked, nonNil(exc.BlockedTimeSlots))
	if err != nil {
		return translate(err)
	}
	out, err := pgx.CollectOneRow(rows, scanDateException)
	if err != nil {
		return translate(err)
	}
	*exc = out
	return nil
}

func (r *Repository) GetDateException(ctx context.Context, id string) (model.DateException, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+exceptionColumns+` FROM date_exceptions WHERE id = $1`, id)
	if err != nil {
		return model.DateException{}, translate(err)
	}
	exc, err := pgx.CollectOneRow(rows, scanDateException)
	return exc, translate(err)
}

func (r *Repository) GetDateExceptionByDate(ctx context.Context, date string) (model.DateException, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+exceptionColumns+` FROM date_exceptions WHERE exception_date = $1::date`, date)
	if err != nil {
		return model.DateException{}, translate(err)
	}
	exc, err := pgx.CollectOneRow(rows, scanDateException)
	return exc, translate(err)
}

// UpdateDateException locks the record, lets mutate change it and persists the result.
func (r *Repository) UpdateDateException(ctx context.Context, id string, mutate func(*model.DateException) error) (model.DateException, error) {
	var out model.DateException
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+exceptionColumns+` FROM date_exceptions WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		exc, err := pgx.CollectOneRow(rows, scanDateException)
		if err != nil {
			return err
		}
		if err := mutate(&exc); err != nil {
			return err
		}
		rows, err = tx.Query(ctx, `
			UPDATE date_exceptions
			SET reason = $2,
				is_active = $3,
				is_full_day_blocked = $4,
				blocked_time_slots = $5,
				updated_at = now()
			WHERE id = $1
			RETURNING `+exceptionColumns,
			id, exc.Reason, exc.IsActive, exc.IsFullDayBlocked, nonNil(exc.BlockedTimeSlots))
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, scanDateException)
		return err
	})
	if err != nil {
		return model.DateException{}, translate(err)
	}
	return out, nil
}

func (r *Repository) DeleteDateException(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM date_exceptions WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("date exception %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListDateExceptions(ctx context.Context, activeOnly bool) ([]model.DateException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM date_exceptions
		WHERE ($1 = false OR is_active)
		ORDER BY exception_date ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanDateException)
}

func scanDateException(row pgx.CollectableRow) (model.DateException, error) {
	var exc model.DateException
	err := row.Scan(&exc.ID, &exc.Date, &exc.Reason, &exc.IsActive, &exc.IsFullDayBlocked,
		&exc.BlockedTimeSlots, &exc.CreatedAt, &exc.UpdatedAt)
	exc.BlockedTimeSlots = nonNil(exc.BlockedTimeSlots)
	return exc, err
}
