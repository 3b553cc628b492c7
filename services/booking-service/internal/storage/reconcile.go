package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

// TryLock takes a session-level advisory lock on a dedicated connection so only
// one instance sweeps at a time. release must be called when acquired is true.
func (r *Repository) TryLock(ctx context.Context, key int64) (release func(), acquired bool, err error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}, true, nil
}

func (r *Repository) ListOrphanOccupancies(ctx context.Context, limit int) ([]model.Occupancy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id::text, to_char(o.booking_date, 'YYYY-MM-DD'), o.time_slot, o.status, o.created_at
		FROM slot_occupancy o
		WHERE NOT EXISTS (SELECT 1 FROM bookings b WHERE b.occupancy_id = o.id)
		ORDER BY o.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Occupancy, error) {
		var o model.Occupancy
		var status string
		err := row.Scan(&o.ID, &o.Date, &o.TimeSlot, &status, &o.CreatedAt)
		o.Status = model.BookingStatus(status)
		return o, err
	})
}

// DeleteOrphanOccupancy deletes the row only if no booking references it.
func (r *Repository) DeleteOrphanOccupancy(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slot_occupancy o
		WHERE o.id = $1
			AND NOT EXISTS (SELECT 1 FROM bookings b WHERE b.occupancy_id = o.id)
	`, id)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ListBookingsMissingOccupancy(ctx context.Context, limit int) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE occupancy_id IS NULL AND status IN ('pending', 'confirmed')
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanBooking)
}

// RestoreOccupancy recreates the occupancy row of an occupying booking that lost it.
func (r *Repository) RestoreOccupancy(ctx context.Context, bookingID string) (bool, error) {
	restored := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := getBooking(ctx, tx, bookingID, true)
		if err != nil {
			return err
		}
		if cur.OccupancyID != "" || !cur.Status.Occupies() {
			return nil
		}
		occupancyID := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO slot_occupancy (id, booking_date, time_slot, status)
			VALUES ($1, $2::date, $3, $4)
		`, occupancyID, cur.Date, cur.TimeSlot, string(cur.Status)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE bookings SET occupancy_id = $2, updated_at = now() WHERE id = $1
		`, bookingID, occupancyID); err != nil {
			return err
		}
		restored = true
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return restored, translate(err)
}

func (r *Repository) ListStatusMismatches(ctx context.Context, limit int) ([]model.StatusMismatch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id::text, o.id::text, b.status, o.status
		FROM bookings b
		JOIN slot_occupancy o ON o.id = b.occupancy_id
		WHERE b.status <> o.status
		ORDER BY b.updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.StatusMismatch, error) {
		var m model.StatusMismatch
		var bookingStatus, occupancyStatus string
		err := row.Scan(&m.BookingID, &m.OccupancyID, &bookingStatus, &occupancyStatus)
		m.BookingStatus = model.BookingStatus(bookingStatus)
		m.OccupancyStatus = model.BookingStatus(occupancyStatus)
		return m, err
	})
}

// MirrorOccupancyStatus copies the booking status onto its occupancy row if they differ.
func (r *Repository) MirrorOccupancyStatus(ctx context.Context, bookingID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slot_occupancy o
		SET status = b.status, updated_at = now()
		FROM bookings b
		WHERE b.id = $1 AND o.id = b.occupancy_id AND o.status <> b.status
	`, bookingID)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}
