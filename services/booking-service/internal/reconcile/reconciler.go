package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

type Store interface {
	TryLock(ctx context.Context, key int64) (release func(), acquired bool, err error)
	ListOrphanOccupancies(ctx context.Context, limit int) ([]model.Occupancy, error)
	DeleteOrphanOccupancy(ctx context.Context, id string) (bool, error)
	ListBookingsMissingOccupancy(ctx context.Context, limit int) ([]model.Booking, error)
	RestoreOccupancy(ctx context.Context, bookingID string) (bool, error)
	ListStatusMismatches(ctx context.Context, limit int) ([]model.StatusMismatch, error)
	MirrorOccupancyStatus(ctx context.Context, bookingID string) (bool, error)
}

// ErrLocked is returned by SweepOnce when another sweep holds the lock.
var ErrLocked = errors.New("reconcile sweep already running")

type Config struct {
	Interval  time.Duration
	BatchSize int
	LockKey   int64
}

// Conflict is a booking whose slot could not be reclaimed.
type Conflict struct {
	BookingID string `json:"booking_id"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
	Reason    string `json:"reason"`
}

type Report struct {
	OrphansRemoved    int        `json:"orphans_removed"`
	OccupancyRestored int        `json:"occupancy_restored"`
	StatusMirrored    int        `json:"status_mirrored"`
	Conflicts         []Conflict `json:"conflicts"`
}

func (r Report) Repairs() int {
	return r.OrphansRemoved + r.OccupancyRestored + r.StatusMirrored
}

type Reconciler struct {
	store     Store
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	lockKey   int64
}

func New(store Store, logger *slog.Logger, cfg Config) *Reconciler {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 100
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	lockKey := cfg.LockKey
	if lockKey == 0 {
		lockKey = 5150001
	}
	return &Reconciler{
		store:     store,
		logger:    logger,
		interval:  interval,
		batchSize: bs,
		lockKey:   lockKey,
	}
}

// Run sweeps on every tick until ctx is done. Instances that do not win the
// advisory lock skip the tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	report, err := r.SweepOnce(ctx)
	switch {
	case errors.Is(err, ErrLocked):
		r.logger.Debug("reconcile: lock held by another instance", "lock_key", r.lockKey)
	case err != nil:
		if ctx.Err() == nil {
			r.logger.Error("reconcile sweep failed", "err", err)
		}
	case report.Repairs() > 0 || len(report.Conflicts) > 0:
		r.logger.Info("reconcile sweep finished",
			"orphans_removed", report.OrphansRemoved,
			"occupancy_restored", report.OccupancyRestored,
			"status_mirrored", report.StatusMirrored,
			"conflicts", len(report.Conflicts),
		)
	}
}

// SweepOnce runs one pass over all three repair kinds.
func (r *Reconciler) SweepOnce(ctx context.Context) (Report, error) {
	release, ok, err := r.store.TryLock(ctx, r.lockKey)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, ErrLocked
	}
	defer release()

	report := Report{Conflicts: []Conflict{}}
	if err := r.removeOrphans(ctx, &report); err != nil {
		return report, err
	}
	if err := r.restoreMissing(ctx, &report); err != nil {
		return report, err
	}
	if err := r.mirrorStatuses(ctx, &report); err != nil {
		return report, err
	}

	metrics.AddReconcileRepairs("orphan_removed", report.OrphansRemoved)
	metrics.AddReconcileRepairs("occupancy_restored", report.OccupancyRestored)
	metrics.AddReconcileRepairs("status_mirrored", report.StatusMirrored)
	metrics.AddReconcileRepairs("conflict", len(report.Conflicts))
	return report, nil
}

func (r *Reconciler) removeOrphans(ctx context.Context, report *Report) error {
	orphans, err := r.store.ListOrphanOccupancies(ctx, r.batchSize)
	if err != nil {
		return err
	}
	for _, o := range orphans {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		removed, err := r.store.DeleteOrphanOccupancy(ctx, o.ID)
		if err != nil {
			r.logger.Warn("reconcile: orphan delete failed", "err", err, "occupancy_id", o.ID)
			continue
		}
		if removed {
			report.OrphansRemoved++
			r.logger.Warn("reconcile: removed orphan occupancy", "occupancy_id", o.ID, "date", o.Date, "time_slot", o.TimeSlot, "status", o.Status)
		}
	}
	return nil
}

func (r *Reconciler) restoreMissing(ctx context.Context, report *Report) error {
	missing, err := r.store.ListBookingsMissingOccupancy(ctx, r.batchSize)
	if err != nil {
		return err
	}
	for _, b := range missing {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		restored, err := r.store.RestoreOccupancy(ctx, b.ID)
		if errors.Is(err, model.ErrSlotAlreadyBooked) {
			report.Conflicts = append(report.Conflicts, Conflict{BookingID: b.ID, Date: b.Date, TimeSlot: b.TimeSlot, Reason: "slot held by another booking"})
			r.logger.Warn("reconcile: cannot restore occupancy, slot taken", "booking_id", b.ID, "date", b.Date, "time_slot", b.TimeSlot)
			continue
		}
		if err != nil {
			r.logger.Warn("reconcile: occupancy restore failed", "err", err, "booking_id", b.ID)
			continue
		}
		if restored {
			report.OccupancyRestored++
			r.logger.Warn("reconcile: restored missing occupancy", "booking_id", b.ID, "date", b.Date, "time_slot", b.TimeSlot)
		}
	}
	return nil
}

func (r *Reconciler) mirrorStatuses(ctx context.Context, report *Report) error {
	mismatches, err := r.store.ListStatusMismatches(ctx, r.batchSize)
	if err != nil {
		return err
	}
	for _, m := range mismatches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mirrored, err := r.store.MirrorOccupancyStatus(ctx, m.BookingID)
		if errors.Is(err, model.ErrSlotAlreadyBooked) {
			report.Conflicts = append(report.Conflicts, Conflict{BookingID: m.BookingID, Reason: "status " + string(m.BookingStatus) + " would double-book the slot"})
			r.logger.Warn("reconcile: cannot mirror status, slot taken", "booking_id", m.BookingID, "booking_status", m.BookingStatus, "occupancy_status", m.OccupancyStatus)
			continue
		}
		if err != nil {
			r.logger.Warn("reconcile: status mirror failed", "err", err, "booking_id", m.BookingID)
			continue
		}
		if mirrored {
			report.StatusMirrored++
			r.logger.Warn("reconcile: mirrored booking status onto occupancy", "booking_id", m.BookingID, "occupancy_id", m.OccupancyID, "from", m.OccupancyStatus, "to", m.BookingStatus)
		}
	}
	return nil
}
