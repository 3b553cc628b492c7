package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

func (r *Repository) ListDaySchedules(ctx context.Context) ([]model.DaySchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, is_working, time_slots, updated_at
		FROM day_schedules
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanDaySchedule)
}

func (r *Repository) GetDaySchedule(ctx context.Context, day model.Day) (model.DaySchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, is_working, time_slots, updated_at
		FROM day_schedules
		WHERE day = $1
	`, string(day))
	if err != nil {
		return model.DaySchedule{}, err
	}
	ds, err := pgx.CollectOneRow(rows, scanDaySchedule)
	return ds, translate(err)
}

func (r *Repository) UpsertDaySchedule(ctx context.Context, ds model.DaySchedule) (model.DaySchedule, error) {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO day_schedules (day, is_working, time_slots, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (day) DO UPDATE
		SET is_working = EXCLUDED.is_working,
			time_slots = EXCLUDED.time_slots,
			updated_at = now()
		RETURNING day, is_working, time_slots, updated_at
	`, string(ds.Day), ds.IsWorking, nonNil(ds.TimeSlots))
	if err != nil {
		return model.DaySchedule{}, err
	}
	out, err := pgx.CollectOneRow(rows, scanDaySchedule)
	return out, translate(err)
}

// SeedDaySchedules inserts the given days only where no row exists yet.
func (r *Repository) SeedDaySchedules(ctx context.Context, days []model.DaySchedule) error {
	if len(days) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ds := range days {
		batch.Queue(`
			INSERT INTO day_schedules (day, is_working, time_slots)
			VALUES ($1, $2, $3)
			ON CONFLICT (day) DO NOTHING
		`, string(ds.Day), ds.IsWorking, nonNil(ds.TimeSlots))
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func scanDaySchedule(row pgx.CollectableRow) (model.DaySchedule, error) {
	var ds model.DaySchedule
	var day string
	if err := row.Scan(&day, &ds.IsWorking, &ds.TimeSlots, &ds.UpdatedAt); err != nil {
		return model.DaySchedule{}, err
	}
	ds.Day = model.Day(day)
	ds.TimeSlots = nonNil(ds.TimeSlots)
	return ds, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
