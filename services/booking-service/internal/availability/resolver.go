package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

type ScheduleSource interface {
	Day(ctx context.Context, day model.Day) (model.DaySchedule, error)
}

type ExceptionSource interface {
	ForDate(ctx context.Context, key string) (*model.DateException, error)
}

type OccupancySource interface {
	ListOccupiedSlots(ctx context.Context, date string) ([]string, error)
}

// Resolver answers which slots are bookable on a calendar date.
type Resolver struct {
	zone       *calendar.Zone
	schedule   ScheduleSource
	exceptions ExceptionSource
	occupancy  OccupancySource
}

func NewResolver(zone *calendar.Zone, schedule ScheduleSource, exceptions ExceptionSource, occupancy OccupancySource) *Resolver {
	return &Resolver{zone: zone, schedule: schedule, exceptions: exceptions, occupancy: occupancy}
}

// Result is the resolved availability of one date.
type Result struct {
	Date       string    `json:"date"`
	AnchoredAt time.Time `json:"anchored_at"`
	Day        model.Day `json:"day"`
	Slots      []string  `json:"slots"`
}

type inputs struct {
	anchored time.Time
	key      string
	day      model.DaySchedule
	exc      *model.DateException
	occupied []string
}

func (r *Resolver) load(ctx context.Context, rawDate string) (inputs, error) {
	anchored, key, err := r.zone.AnchorKey(rawDate)
	if err != nil {
		return inputs{}, err
	}
	in := inputs{anchored: anchored, key: key}

	in.day, err = r.schedule.Day(ctx, r.zone.DayOfWeek(anchored))
	if err != nil {
		return inputs{}, fmt.Errorf("load day schedule: %w", err)
	}
	if !in.day.IsWorking {
		return in, nil
	}
	in.exc, err = r.exceptions.ForDate(ctx, key)
	if err != nil {
		return inputs{}, fmt.Errorf("load date exception: %w", err)
	}
	in.occupied, err = r.occupancy.ListOccupiedSlots(ctx, key)
	if err != nil {
		return inputs{}, fmt.Errorf("load occupancy: %w", err)
	}
	return in, nil
}

// AvailableSlots resolves rawDate; it performs no writes beyond seeding a
// never-configured weekday with its default.
func (r *Resolver) AvailableSlots(ctx context.Context, rawDate string) (Result, error) {
	ctx, span := otel.Tracer("booking-service/availability").Start(ctx, "availability.resolve")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveResolve(time.Since(start).Seconds()) }()

	in, err := r.load(ctx, rawDate)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	slots := Resolve(in.day, in.exc, in.occupied)
	span.SetAttributes(attribute.String("booking.date", in.key), attribute.Int("slots.available", len(slots)))
	return Result{
		Date:       in.key,
		AnchoredAt: in.anchored,
		Day:        in.day.Day,
		Slots:      slots,
	}, nil
}

// Check is the advisory pre-write test for a booking request. It returns
// ErrSlotAlreadyBooked for an occupied slot and ErrSlotUnavailable for one the
// date does not offer. The storage constraint remains the authority.
func (r *Resolver) Check(ctx context.Context, rawDate, slot string) error {
	in, err := r.load(ctx, rawDate)
	if err != nil {
		return err
	}
	switch Classify(in.day, in.exc, in.occupied, slot) {
	case SlotAvailable:
		return nil
	case SlotOccupied:
		return fmt.Errorf("%w: %s %s", model.ErrSlotAlreadyBooked, in.key, slot)
	case SlotBlocked:
		return fmt.Errorf("%w: %s %s is blocked", model.ErrSlotUnavailable, in.key, slot)
	default:
		return fmt.Errorf("%w: %s %s", model.ErrSlotUnavailable, in.key, slot)
	}
}
