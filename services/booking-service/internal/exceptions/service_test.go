package exceptions

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage/memory"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.New(), calendar.MustZone("America/Chicago"), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateFullDayWhenNoSlots(t *testing.T) {
	svc := newService(t)

	exc, err := svc.Create(context.Background(), "2025-06-02", " holiday ", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, exc.ID)
	assert.Equal(t, "2025-06-02", exc.Date)
	assert.Equal(t, "holiday", exc.Reason)
	assert.True(t, exc.IsActive)
	assert.True(t, exc.IsFullDayBlocked)
	assert.Equal(t, "2025-06-02", exc.AnchoredAt.In(calendar.MustZone("America/Chicago").Location()).Format(calendar.DateLayout))
}

func TestCreatePartialNormalizesSlots(t *testing.T) {
	svc := newService(t)

	exc, err := svc.Create(context.Background(), "2025-06-02", "staff meeting", []string{"14:00", "9:00", "9:00"})
	require.NoError(t, err)
	assert.False(t, exc.IsFullDayBlocked)
	assert.Equal(t, []string{"9:00", "14:00"}, exc.BlockedTimeSlots)

	_, err = svc.Create(context.Background(), "2025-06-03", "", []string{"later"})
	assert.ErrorIs(t, err, model.ErrInvalidTimeFormat)
}

func TestCreateRejectsSameCalendarDayFromOtherOffsets(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "2025-06-02T00:00:00+09:00", "closed", nil)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "2025-06-02", "closed again", nil)
	assert.ErrorIs(t, err, model.ErrDuplicateDate)

	_, err = svc.Create(ctx, "2025-06-02T00:00:00-08:00", "", []string{"9:00"})
	assert.ErrorIs(t, err, model.ErrDuplicateDate)

	_, err = svc.Create(ctx, "not a date", "", nil)
	assert.ErrorIs(t, err, model.ErrInvalidDate)
}

func TestToggleKeepsRecord(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	exc, err := svc.Create(ctx, "2025-06-02", "", []string{"9:00"})
	require.NoError(t, err)

	off, err := svc.Toggle(ctx, exc.ID)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	assert.Equal(t, []string{"9:00"}, off.BlockedTimeSlots)

	on, err := svc.Toggle(ctx, exc.ID)
	require.NoError(t, err)
	assert.True(t, on.IsActive)

	_, err = svc.Toggle(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemoveSlotLeavesInertRecord(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	exc, err := svc.Create(ctx, "2025-06-02", "", []string{"9:00", "14:00"})
	require.NoError(t, err)

	exc, err = svc.RemoveSlot(ctx, exc.ID, "09:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"14:00"}, exc.BlockedTimeSlots)

	exc, err = svc.RemoveSlot(ctx, exc.ID, "10:00")
	require.NoError(t, err, "removing an unblocked slot is a no-op")
	assert.Equal(t, []string{"14:00"}, exc.BlockedTimeSlots)

	exc, err = svc.RemoveSlot(ctx, exc.ID, "14:00")
	require.NoError(t, err)
	assert.Empty(t, exc.BlockedTimeSlots)
	assert.False(t, exc.IsFullDayBlocked, "an emptied partial block never becomes a full-day block")

	got, err := svc.Get(ctx, exc.ID)
	require.NoError(t, err, "the emptied record is kept")
	assert.Equal(t, exc.ID, got.ID)

	_, err = svc.RemoveSlot(ctx, "missing", "9:00")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.RemoveSlot(ctx, exc.ID, "nine")
	assert.ErrorIs(t, err, model.ErrInvalidTimeFormat)
}

func TestDeleteAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, "2025-06-03", "", nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "2025-06-02", "", nil)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, a.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "ordered by date")

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	require.NoError(t, svc.Delete(ctx, b.ID))
	assert.ErrorIs(t, svc.Delete(ctx, b.ID), model.ErrNotFound)

	found, err := svc.ForDate(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = svc.ForDate(ctx, "2025-06-03")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.ID)
}
