package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/outbox"
)

func newBooking(date, slot string) *model.Booking {
	return &model.Booking{
		ID:           uuid.NewString(),
		OccupancyID:  uuid.NewString(),
		Date:         date,
		TimeSlot:     slot,
		Status:       model.StatusConfirmed,
		CustomerName: "Linus",
		OfferingType: model.OfferingService,
	}
}

func statusEvent(b model.Booking, prev model.BookingStatus) (outbox.Event, error) {
	return outbox.Event{AggregateID: b.ID, EventType: outbox.TypeBookingStatusChanged}, nil
}

func TestCreateBookingConditionalInsert(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateBooking(ctx, newBooking("2025-06-02", "09:00"), "", outbox.Event{})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, model.ErrSlotAlreadyBooked) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Len(t, s.Events(), 1)
}

func TestCreateBookingIdempotency(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := newBooking("2025-06-02", "09:00")
	replayed, err := s.CreateBooking(ctx, first, "k", outbox.Event{})
	require.NoError(t, err)
	assert.False(t, replayed)

	again := newBooking("2025-06-02", "10:00")
	replayed, err = s.CreateBooking(ctx, again, "k", outbox.Event{})
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "09:00", again.TimeSlot)
}

func TestUpdateBookingStatusFreesAndReclaims(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := newBooking("2025-06-02", "09:00")
	_, err := s.CreateBooking(ctx, b, "", outbox.Event{})
	require.NoError(t, err)

	_, prev, err := s.UpdateBookingStatus(ctx, b.ID, model.StatusCancelled, statusEvent)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, prev)
	occupied, _ := s.ListOccupiedSlots(ctx, "2025-06-02")
	assert.Empty(t, occupied)

	other := newBooking("2025-06-02", "09:00")
	_, err = s.CreateBooking(ctx, other, "", outbox.Event{})
	require.NoError(t, err)

	_, _, err = s.UpdateBookingStatus(ctx, b.ID, model.StatusPending, statusEvent)
	assert.ErrorIs(t, err, model.ErrSlotAlreadyBooked)

	// Unchanged status records no event.
	before := len(s.Events())
	_, _, err = s.UpdateBookingStatus(ctx, other.ID, model.StatusConfirmed, statusEvent)
	require.NoError(t, err)
	assert.Len(t, s.Events(), before)
}

func TestUpdateBookingStatusRecreatesLostOccupancy(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := newBooking("2025-06-02", "09:00")
	_, err := s.CreateBooking(ctx, b, "", outbox.Event{})
	require.NoError(t, err)
	s.DropOccupancy(b.ID)

	_, _, err = s.UpdateBookingStatus(ctx, b.ID, model.StatusCancelled, statusEvent)
	require.NoError(t, err)
	updated, _, err := s.UpdateBookingStatus(ctx, b.ID, model.StatusConfirmed, statusEvent)
	require.NoError(t, err)
	assert.NotEmpty(t, updated.OccupancyID)

	occupied, _ := s.ListOccupiedSlots(ctx, "2025-06-02")
	assert.Equal(t, []string{"09:00"}, occupied)
}

func TestDateExceptionUniquePerDate(t *testing.T) {
	s := New()
	ctx := context.Background()
	exc := &model.DateException{ID: uuid.NewString(), Date: "2025-12-25", IsActive: true, IsFullDayBlocked: true}
	require.NoError(t, s.CreateDateException(ctx, exc))
	assert.False(t, exc.CreatedAt.IsZero())

	dup := &model.DateException{ID: uuid.NewString(), Date: "2025-12-25"}
	assert.ErrorIs(t, s.CreateDateException(ctx, dup), model.ErrDuplicateDate)

	_, err := s.UpdateDateException(ctx, exc.ID, func(e *model.DateException) error {
		e.Date = "2026-01-01"
		e.IsActive = false
		return nil
	})
	require.NoError(t, err)
	got, err := s.GetDateExceptionByDate(ctx, "2025-12-25")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, s.DeleteDateException(ctx, exc.ID))
	assert.ErrorIs(t, s.DeleteDateException(ctx, exc.ID), model.ErrNotFound)
}

func TestListBookingsFiltersAndLimits(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, slot := range []string{"10:00", "09:00", "14:00"} {
		_, err := s.CreateBooking(ctx, newBooking("2025-06-02", slot), "", outbox.Event{})
		require.NoError(t, err)
	}
	_, err := s.CreateBooking(ctx, newBooking("2025-06-03", "09:00"), "", outbox.Event{})
	require.NoError(t, err)

	items, err := s.ListBookings(ctx, model.BookingFilter{Date: "2025-06-02", Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "09:00", items[0].TimeSlot)
	assert.Equal(t, "10:00", items[1].TimeSlot)

	items, err = s.ListBookings(ctx, model.BookingFilter{Status: model.StatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.UpsertDaySchedule(ctx, model.DaySchedule{Day: model.Monday, IsWorking: true, TimeSlots: []string{"9:00"}})
	require.NoError(t, err)

	ds, err := s.GetDaySchedule(ctx, model.Monday)
	require.NoError(t, err)
	ds.TimeSlots[0] = "changed"

	again, err := s.GetDaySchedule(ctx, model.Monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"9:00"}, again.TimeSlots)
}
