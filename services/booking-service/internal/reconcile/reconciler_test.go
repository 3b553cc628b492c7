package reconcile_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/exceptions"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/ledger"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/storage/memory"
)

const aMonday = "2025-06-02"

type fixture struct {
	store      *memory.Store
	resolver   *availability.Resolver
	ledger     *ledger.Service
	reconciler *reconcile.Reconciler
}

func newFixture(t *testing.T, cfg reconcile.Config) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	zone := calendar.MustZone("UTC")
	store := memory.New()
	sched := schedule.NewService(store, nil, logger)
	_, err := sched.UpdateDay(context.Background(), "monday", true, []string{"9:00", "10:00", "14:00"})
	require.NoError(t, err)
	resolver := availability.NewResolver(zone, sched, exceptions.NewService(store, zone, logger), store)
	return fixture{
		store:      store,
		resolver:   resolver,
		ledger:     ledger.NewService(store, resolver, notify.Noop{}, zone, logger, ledger.Config{}),
		reconciler: reconcile.New(store, logger, cfg),
	}
}

func (f fixture) book(t *testing.T, slot string) model.Booking {
	t.Helper()
	res, err := f.ledger.Create(context.Background(), ledger.CreateRequest{
		Date:          aMonday,
		TimeSlot:      slot,
		CustomerName:  "Grace",
		CustomerEmail: "grace@example.com",
		OfferingType:  "property",
	}, "")
	require.NoError(t, err)
	return res.Booking
}

func (f fixture) available(t *testing.T) []string {
	t.Helper()
	res, err := f.resolver.AvailableSlots(context.Background(), aMonday)
	require.NoError(t, err)
	return res.Slots
}

func TestSweepRemovesOrphanOccupancy(t *testing.T) {
	f := newFixture(t, reconcile.Config{})
	f.store.InjectOccupancy(model.Occupancy{Date: aMonday, TimeSlot: "14:00", Status: model.StatusConfirmed})
	assert.Equal(t, []string{"9:00", "10:00"}, f.available(t))

	report, err := f.reconciler.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphansRemoved)
	assert.Equal(t, []string{"9:00", "10:00", "14:00"}, f.available(t))
}

func TestSweepRestoresMissingOccupancy(t *testing.T) {
	f := newFixture(t, reconcile.Config{})
	b := f.book(t, "9:00")
	f.store.DropOccupancy(b.ID)
	assert.Contains(t, f.available(t), "9:00")

	report, err := f.reconciler.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.OccupancyRestored)
	assert.Equal(t, []string{"10:00", "14:00"}, f.available(t))

	stored, err := f.ledger.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.OccupancyID)
}

func TestSweepReportsUnrestorableBooking(t *testing.T) {
	f := newFixture(t, reconcile.Config{})
	lost := f.book(t, "9:00")
	f.store.DropOccupancy(lost.ID)
	f.book(t, "9:00")

	report, err := f.reconciler.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.OccupancyRestored)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, lost.ID, report.Conflicts[0].BookingID)

	occupied, err := f.store.ListOccupiedSlots(context.Background(), aMonday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, occupied)
}

func TestSweepMirrorsStatus(t *testing.T) {
	f := newFixture(t, reconcile.Config{})
	b := f.book(t, "10:00")
	f.store.ForceOccupancyStatus(b.ID, model.StatusCancelled)
	assert.Contains(t, f.available(t), "10:00")

	report, err := f.reconciler.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.StatusMirrored)
	assert.NotContains(t, f.available(t), "10:00")
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t, reconcile.Config{})
	b := f.book(t, "10:00")
	f.store.ForceOccupancyStatus(b.ID, model.StatusCompleted)
	f.store.InjectOccupancy(model.Occupancy{Date: aMonday, TimeSlot: "14:00", Status: model.StatusPending})

	first, err := f.reconciler.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Repairs())

	second, err := f.reconciler.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Repairs())
	assert.Empty(t, second.Conflicts)
}

func TestSweepSkipsWhenLocked(t *testing.T) {
	f := newFixture(t, reconcile.Config{})
	release, ok, err := f.store.TryLock(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.reconciler.SweepOnce(context.Background())
	assert.ErrorIs(t, err, reconcile.ErrLocked)

	release()
	_, err = f.reconciler.SweepOnce(context.Background())
	assert.NoError(t, err)
}

func TestRunRepairsOnTick(t *testing.T) {
	f := newFixture(t, reconcile.Config{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.reconciler.Run(ctx)
		close(done)
	}()

	f.store.InjectOccupancy(model.Occupancy{Date: aMonday, TimeSlot: "9:00", Status: model.StatusConfirmed})
	require.Eventually(t, func() bool {
		occupied, err := f.store.ListOccupiedSlots(context.Background(), aMonday)
		return err == nil && len(occupied) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
