package schedule

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage/memory"
)

func newService(t *testing.T, defaults []model.DaySchedule) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewService(store, defaults, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestGetScheduleReturnsAllDaysClosedByDefault(t *testing.T) {
	svc, store := newService(t, nil)

	ws, err := svc.GetSchedule(context.Background())
	require.NoError(t, err)
	require.Len(t, ws, 7)
	for _, d := range model.Days {
		assert.False(t, ws[d].IsWorking, d)
		assert.Empty(t, ws[d].TimeSlots, d)
	}

	stored, err := store.ListDaySchedules(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 7, "first access seeds every day")
}

func TestGetScheduleKeepsStoredDays(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.UpdateDay(ctx, "Monday", true, []string{"14:00", "9:00", "10:00"})
	require.NoError(t, err)

	ws, err := svc.GetSchedule(ctx)
	require.NoError(t, err)
	assert.True(t, ws[model.Monday].IsWorking)
	assert.Equal(t, []string{"9:00", "10:00", "14:00"}, ws[model.Monday].TimeSlots)
	assert.False(t, ws[model.Tuesday].IsWorking)
}

func TestUpdateDayAppliesBusinessOrdering(t *testing.T) {
	svc, _ := newService(t, nil)

	ds, err := svc.UpdateDay(context.Background(), "friday", true, []string{"2:30", "9:00", "9:00"})
	require.NoError(t, err)
	assert.Equal(t, model.Friday, ds.Day)
	assert.Equal(t, []string{"9:00", "2:30"}, ds.TimeSlots)
}

func TestUpdateDayRejectsBadInput(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	_, err := svc.UpdateDay(ctx, "funday", true, []string{"9:00"})
	assert.ErrorIs(t, err, model.ErrInvalidDay)

	_, err = svc.UpdateDay(ctx, "monday", true, []string{"9:00", "nine"})
	assert.ErrorIs(t, err, model.ErrInvalidTimeFormat)

	_, err = store.GetDaySchedule(ctx, model.Monday)
	assert.ErrorIs(t, err, model.ErrNotFound, "a rejected update writes nothing")
}

func TestDayFallsBackToDefaults(t *testing.T) {
	defaults, err := ParseDefaults([]byte(`
days:
  monday:
    is_working: true
    time_slots: ["10:00", "9:00"]
`))
	require.NoError(t, err)
	svc, store := newService(t, defaults)

	ds, err := svc.Day(context.Background(), model.Monday)
	require.NoError(t, err)
	assert.True(t, ds.IsWorking)
	assert.Equal(t, []string{"9:00", "10:00"}, ds.TimeSlots)

	_, err = store.GetDaySchedule(context.Background(), model.Monday)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestParseDefaultsRejectsInvalidFile(t *testing.T) {
	_, err := ParseDefaults([]byte("days:\n  someday:\n    is_working: true\n"))
	assert.ErrorIs(t, err, model.ErrInvalidDay)

	_, err = ParseDefaults([]byte("days:\n  monday:\n    time_slots: [\"9am\"]\n"))
	assert.ErrorIs(t, err, model.ErrInvalidTimeFormat)

	_, err = ParseDefaults([]byte("days: [\n"))
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	week, err := LoadDefaults("")
	require.NoError(t, err)
	assert.Len(t, week, 7)

	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("days:\n  saturday:\n    is_working: true\n    time_slots: [\"11:00\"]\n"), 0o600))
	week, err = LoadDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, model.Saturday, week[6].Day)
	assert.True(t, week[6].IsWorking)

	_, err = LoadDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
