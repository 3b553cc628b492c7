package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/outbox"
)

const bookingColumns = `id::text, COALESCE(occupancy_id::text, ''), to_char(booking_date, 'YYYY-MM-DD'),
	time_slot, status, customer_name, customer_email, customer_phone, offering_type, offering_name,
	notes, created_at, updated_at`

// CreateBooking writes the occupancy row, the booking and its outbox event in one
// transaction. b.ID and b.OccupancyID must be set by the caller. When idemKey was
// already used for a booking that still exists, b is replaced by that booking and
// replayed is true.
func (r *Repository) CreateBooking(ctx context.Context, b *model.Booking, idemKey string, evt outbox.Event) (replayed bool, err error) {
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		if idemKey != "" {
			existingID, err := lockIdempotencyKey(ctx, tx, idemKey)
			if err != nil {
				return err
			}
			if existingID != "" {
				prior, err := getBooking(ctx, tx, existingID, false)
				if err == nil {
					*b = prior
					replayed = true
					return nil
				}
				if !errors.Is(err, pgx.ErrNoRows) {
					return err
				}
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO slot_occupancy (id, booking_date, time_slot, status)
			VALUES ($1, $2::date, $3, $4)
		`, b.OccupancyID, b.Date, b.TimeSlot, string(b.Status)); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			INSERT INTO bookings
				(id, occupancy_id, booking_date, time_slot, status, customer_name, customer_email,
				 customer_phone, offering_type, offering_name, notes)
			VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+bookingColumns,
			b.ID, b.OccupancyID, b.Date, b.TimeSlot, string(b.Status), b.CustomerName, b.CustomerEmail,
			b.CustomerPhone, string(b.OfferingType), b.OfferingName, b.Notes)
		if err != nil {
			return err
		}
		created, err := pgx.CollectOneRow(rows, scanBooking)
		if err != nil {
			return err
		}
		*b = created

		if idemKey != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE booking_idempotency_keys
				SET booking_id = $2, updated_at = now()
				WHERE idempotency_key = $1
			`, idemKey, b.ID); err != nil {
				return err
			}
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	return replayed, translate(err)
}

// BookingByIdempotencyKey returns the booking a key produced, or ErrNotFound
// when the key is unused or its booking was deleted.
func (r *Repository) BookingByIdempotencyKey(ctx context.Context, key string) (model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = (SELECT booking_id FROM booking_idempotency_keys WHERE idempotency_key = $1)
	`, key)
	if err != nil {
		return model.Booking{}, translate(err)
	}
	b, err := pgx.CollectOneRow(rows, scanBooking)
	return b, translate(err)
}

func (r *Repository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := getBooking(ctx, r.pool, id, false)
	return b, translate(err)
}

// UpdateBookingStatus changes the booking status and mirrors it onto the
// occupancy row in the same transaction. A booking that lost its occupancy row
// gets a fresh one when the new status occupies the slot.
func (r *Repository) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus, build func(model.Booking, model.BookingStatus) (outbox.Event, error)) (model.Booking, model.BookingStatus, error) {
	var out model.Booking
	var prev model.BookingStatus
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := getBooking(ctx, tx, id, true)
		if err != nil {
			return err
		}
		prev = cur.Status
		if prev == status {
			out = cur
			return nil
		}

		occupancyID := cur.OccupancyID
		switch {
		case occupancyID != "":
			if _, err := tx.Exec(ctx, `
				UPDATE slot_occupancy SET status = $2, updated_at = now() WHERE id = $1
			`, occupancyID, string(status)); err != nil {
				return err
			}
		case status.Occupies():
			occupancyID = uuid.NewString()
			if _, err := tx.Exec(ctx, `
				INSERT INTO slot_occupancy (id, booking_date, time_slot, status)
				VALUES ($1, $2::date, $3, $4)
			`, occupancyID, cur.Date, cur.TimeSlot, string(status)); err != nil {
				return err
			}
		}

		rows, err := tx.Query(ctx, `
			UPDATE bookings
			SET status = $2,
				occupancy_id = NULLIF($3, '')::uuid,
				updated_at = now()
			WHERE id = $1
			RETURNING `+bookingColumns,
			id, string(status), occupancyID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, scanBooking)
		if err != nil {
			return err
		}
		evt, err := build(out, prev)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Booking{}, "", translate(err)
	}
	return out, prev, nil
}

// DeleteBooking removes the booking and exactly the occupancy row it links to.
// occupancyRemoved is false when that row was already gone.
func (r *Repository) DeleteBooking(ctx context.Context, id string, build func(model.Booking) (outbox.Event, error)) (deleted model.Booking, occupancyRemoved bool, err error) {
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := getBooking(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
			return err
		}
		if cur.OccupancyID != "" {
			tag, err := tx.Exec(ctx, `DELETE FROM slot_occupancy WHERE id = $1`, cur.OccupancyID)
			if err != nil {
				return err
			}
			occupancyRemoved = tag.RowsAffected() == 1
		}
		evt, err := build(cur)
		if err != nil {
			return err
		}
		deleted = cur
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Booking{}, false, translate(err)
	}
	return deleted, occupancyRemoved, nil
}

func (r *Repository) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var where []string
	var args []any
	if f.Date != "" {
		args = append(args, f.Date)
		where = append(where, fmt.Sprintf("booking_date = $%d::date", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, limit)

	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY booking_date DESC, time_slot ASC, created_at ASC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	return pgx.CollectRows(rows, scanBooking)
}

// ListOccupiedSlots returns the canonical slot keys held on date.
func (r *Repository) ListOccupiedSlots(ctx context.Context, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot
		FROM slot_occupancy
		WHERE booking_date = $1::date AND status IN ('pending', 'confirmed')
		ORDER BY time_slot
	`, date)
	if err != nil {
		return nil, translate(err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func lockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (string, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key); err != nil {
		return "", err
	}
	var bookingID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(booking_id::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&bookingID)
	return bookingID, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getBooking(ctx context.Context, q querier, id string, forUpdate bool) (model.Booking, error) {
	sql := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return model.Booking{}, err
	}
	return pgx.CollectOneRow(rows, scanBooking)
}

func scanBooking(row pgx.CollectableRow) (model.Booking, error) {
	var b model.Booking
	var status, offering string
	err := row.Scan(&b.ID, &b.OccupancyID, &b.Date, &b.TimeSlot, &status, &b.CustomerName, &b.CustomerEmail,
		&b.CustomerPhone, &offering, &b.OfferingName, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	b.Status = model.BookingStatus(status)
	b.OfferingType = model.OfferingType(offering)
	return b, err
}
