package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/slottime"
)

type Store interface {
	ListDaySchedules(ctx context.Context) ([]model.DaySchedule, error)
	GetDaySchedule(ctx context.Context, day model.Day) (model.DaySchedule, error)
	UpsertDaySchedule(ctx context.Context, ds model.DaySchedule) (model.DaySchedule, error)
	SeedDaySchedules(ctx context.Context, days []model.DaySchedule) error
}

type Service struct {
	store    Store
	defaults map[model.Day]model.DaySchedule
	logger   *slog.Logger
}

// NewService uses defaults for days that were never configured; days missing
// from defaults are treated as closed.
func NewService(store Store, defaults []model.DaySchedule, logger *slog.Logger) *Service {
	byDay := make(map[model.Day]model.DaySchedule, len(model.Days))
	for _, ds := range ClosedWeek() {
		byDay[ds.Day] = ds
	}
	for _, ds := range defaults {
		byDay[ds.Day] = ds
	}
	return &Service{store: store, defaults: byDay, logger: logger}
}

// GetSchedule returns all seven days, seeding any day that has no stored row.
func (s *Service) GetSchedule(ctx context.Context) (model.WeeklySchedule, error) {
	stored, err := s.store.ListDaySchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list day schedules: %w", err)
	}
	ws := make(model.WeeklySchedule, len(model.Days))
	for _, ds := range stored {
		ws[ds.Day] = ds
	}

	var missing []model.DaySchedule
	for _, d := range model.Days {
		if _, ok := ws[d]; !ok {
			missing = append(missing, s.defaults[d])
			ws[d] = s.defaults[d]
		}
	}
	if len(missing) > 0 {
		if err := s.store.SeedDaySchedules(ctx, missing); err != nil {
			return nil, fmt.Errorf("seed day schedules: %w", err)
		}
		s.logger.Info("weekly schedule seeded", "days", len(missing))
	}
	return ws, nil
}

// Day returns one day's template, falling back to its default without
// writing anything.
func (s *Service) Day(ctx context.Context, day model.Day) (model.DaySchedule, error) {
	ds, err := s.store.GetDaySchedule(ctx, day)
	if err == nil {
		return ds, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.DaySchedule{}, fmt.Errorf("get day schedule: %w", err)
	}
	return s.defaults[day], nil
}

// UpdateDay replaces one day. Slots are validated, deduplicated and put in
// business order before anything is written.
func (s *Service) UpdateDay(ctx context.Context, rawDay string, isWorking bool, slots []string) (model.DaySchedule, error) {
	day, err := model.ParseDay(rawDay)
	if err != nil {
		return model.DaySchedule{}, err
	}
	normalized, err := slottime.Normalize(slots)
	if err != nil {
		return model.DaySchedule{}, err
	}
	ds, err := s.store.UpsertDaySchedule(ctx, model.DaySchedule{
		Day:       day,
		IsWorking: isWorking,
		TimeSlots: normalized,
	})
	if err != nil {
		return model.DaySchedule{}, fmt.Errorf("upsert day schedule: %w", err)
	}
	s.logger.Info("day schedule updated", "day", day, "is_working", isWorking, "slots", len(normalized))
	return ds, nil
}
