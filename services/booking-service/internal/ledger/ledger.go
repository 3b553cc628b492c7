package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/slottime"
)

// WarningNotificationFailed is reported when a booking was stored but its
// confirmation could not be sent.
const WarningNotificationFailed = "notification_failed"

type Store interface {
	CreateBooking(ctx context.Context, b *model.Booking, idemKey string, evt outbox.Event) (bool, error)
	BookingByIdempotencyKey(ctx context.Context, key string) (model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus, build func(model.Booking, model.BookingStatus) (outbox.Event, error)) (model.Booking, model.BookingStatus, error)
	DeleteBooking(ctx context.Context, id string, build func(model.Booking) (outbox.Event, error)) (model.Booking, bool, error)
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
}

// SlotChecker is the advisory availability test run before a write.
type SlotChecker interface {
	Check(ctx context.Context, rawDate, slot string) error
}

type Config struct {
	// PhoneRegion is the default region for numbers without a country code.
	PhoneRegion string
}

type Service struct {
	store    Store
	slots    SlotChecker
	notifier notify.Notifier
	zone     *calendar.Zone
	logger   *slog.Logger
	validate *validator.Validate
	region   string
	now      func() time.Time
}

func NewService(store Store, slots SlotChecker, notifier notify.Notifier, zone *calendar.Zone, logger *slog.Logger, cfg Config) *Service {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	region := strings.ToUpper(strings.TrimSpace(cfg.PhoneRegion))
	if region == "" {
		region = "US"
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{
		store:    store,
		slots:    slots,
		notifier: notifier,
		zone:     zone,
		logger:   logger,
		validate: v,
		region:   region,
		now:      time.Now,
	}
}

func tracer() trace.Tracer {
	return otel.Tracer("booking-service/ledger")
}

type CreateRequest struct {
	Date          string `json:"date" validate:"required"`
	TimeSlot      string `json:"time_slot" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string `json:"customer_email" validate:"required,email,max=254"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,max=32"`
	OfferingType  string `json:"offering_type" validate:"required,oneof=service property"`
	OfferingName  string `json:"offering_name" validate:"max=200"`
	Notes         string `json:"notes" validate:"max=2000"`
}

type CreateResult struct {
	Booking  model.Booking `json:"booking"`
	Replayed bool          `json:"replayed,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Create books one slot. The pre-check against the resolver is advisory; the
// store's conditional insert decides races and yields ErrSlotAlreadyBooked.
// With a non-empty idemKey a repeated request returns the original booking.
func (s *Service) Create(ctx context.Context, req CreateRequest, idemKey string) (CreateResult, error) {
	ctx, span := tracer().Start(ctx, "ledger.create")
	defer span.End()

	req = trimRequest(req)
	if err := s.validateRequest(&req); err != nil {
		return CreateResult{}, err
	}
	anchored, date, err := s.zone.AnchorKey(req.Date)
	if err != nil {
		return CreateResult{}, err
	}
	slot, err := slottime.Key(req.TimeSlot)
	if err != nil {
		return CreateResult{}, err
	}
	span.SetAttributes(attribute.String("booking.date", date), attribute.String("booking.time_slot", slot))

	if idemKey != "" {
		prior, err := s.store.BookingByIdempotencyKey(ctx, idemKey)
		switch {
		case err == nil:
			prior.AnchoredAt = s.zone.AtKey(prior.Date)
			return CreateResult{Booking: prior, Replayed: true}, nil
		case !errors.Is(err, model.ErrNotFound):
			return CreateResult{}, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	if err := s.slots.Check(ctx, date, slot); err != nil {
		// A concurrent replay can find its own slot occupied; let the store answer it.
		if !(idemKey != "" && errors.Is(err, model.ErrSlotAlreadyBooked)) {
			s.countConflict(err)
			return CreateResult{}, err
		}
	}

	b := model.Booking{
		ID:            uuid.NewString(),
		OccupancyID:   uuid.NewString(),
		Date:          date,
		TimeSlot:      slot,
		Status:        model.StatusConfirmed,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.ToLower(req.CustomerEmail),
		CustomerPhone: req.CustomerPhone,
		OfferingType:  model.OfferingType(req.OfferingType),
		OfferingName:  req.OfferingName,
		Notes:         req.Notes,
	}
	evt, err := outbox.NewBookingEvent(outbox.TypeBookingCreated, b, "", s.now())
	if err != nil {
		return CreateResult{}, fmt.Errorf("build booking event: %w", err)
	}

	replayed, err := s.store.CreateBooking(ctx, &b, idemKey, evt)
	if err != nil {
		s.countConflict(err)
		span.RecordError(err)
		return CreateResult{}, fmt.Errorf("create booking: %w", err)
	}
	if replayed {
		b.AnchoredAt = s.zone.AtKey(b.Date)
		return CreateResult{Booking: b, Replayed: true}, nil
	}
	b.AnchoredAt = anchored
	metrics.IncBookingCreated(string(b.OfferingType))
	s.logger.Info("booking created", "booking_id", b.ID, "date", b.Date, "time_slot", b.TimeSlot)

	res := CreateResult{Booking: b}
	if err := s.notifier.BookingConfirmed(ctx, b); err != nil {
		metrics.IncNotificationFailure()
		s.logger.Warn("booking confirmation not sent", "booking_id", b.ID, "err", err)
		res.Warnings = append(res.Warnings, WarningNotificationFailed)
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	b.AnchoredAt = s.zone.AtKey(b.Date)
	return b, nil
}

// UpdateStatus moves a booking to rawStatus. Cancelled and completed bookings
// release their slot; moving back to an occupying status reclaims it and fails
// with ErrSlotAlreadyBooked if someone else holds it.
func (s *Service) UpdateStatus(ctx context.Context, id, rawStatus string) (model.Booking, error) {
	ctx, span := tracer().Start(ctx, "ledger.update_status")
	defer span.End()

	status, err := model.ParseStatus(rawStatus)
	if err != nil {
		return model.Booking{}, err
	}
	at := s.now()
	b, prev, err := s.store.UpdateBookingStatus(ctx, id, status, func(b model.Booking, prev model.BookingStatus) (outbox.Event, error) {
		return outbox.NewBookingEvent(outbox.TypeBookingStatusChanged, b, prev, at)
	})
	if err != nil {
		s.countConflict(err)
		span.RecordError(err)
		return model.Booking{}, fmt.Errorf("update booking %s: %w", id, err)
	}
	if prev != status {
		metrics.IncStatusChange(string(status))
		s.logger.Info("booking status changed", "booking_id", id, "from", prev, "to", status)
	}
	b.AnchoredAt = s.zone.AtKey(b.Date)
	return b, nil
}

// Delete removes the booking together with the occupancy row it links to.
func (s *Service) Delete(ctx context.Context, id string) (model.Booking, error) {
	ctx, span := tracer().Start(ctx, "ledger.delete")
	defer span.End()

	at := s.now()
	b, removed, err := s.store.DeleteBooking(ctx, id, func(b model.Booking) (outbox.Event, error) {
		return outbox.NewBookingEvent(outbox.TypeBookingDeleted, b, b.Status, at)
	})
	if err != nil {
		span.RecordError(err)
		return model.Booking{}, fmt.Errorf("delete booking %s: %w", id, err)
	}
	if !removed {
		s.logger.Warn("booking deleted without an occupancy record", "booking_id", b.ID, "occupancy_id", b.OccupancyID, "date", b.Date, "time_slot", b.TimeSlot)
	}
	b.AnchoredAt = s.zone.AtKey(b.Date)
	return b, nil
}

// List returns bookings for the admin view. f.Date may be any form the zone
// accepts and is canonicalized first.
func (s *Service) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	if f.Date != "" {
		_, key, err := s.zone.AnchorKey(f.Date)
		if err != nil {
			return nil, err
		}
		f.Date = key
	}
	items, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].AnchoredAt = s.zone.AtKey(items[i].Date)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return items, nil
}

func (s *Service) countConflict(err error) {
	if errors.Is(err, model.ErrSlotAlreadyBooked) {
		metrics.IncBookingConflict()
	}
}

func trimRequest(req CreateRequest) CreateRequest {
	req.Date = strings.TrimSpace(req.Date)
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.OfferingType = strings.ToLower(strings.TrimSpace(req.OfferingType))
	req.OfferingName = strings.TrimSpace(req.OfferingName)
	req.Notes = strings.TrimSpace(req.Notes)
	return req
}

// validateRequest checks field constraints and rewrites the phone number to E.164.
func (s *Service) validateRequest(req *CreateRequest) error {
	var fields []model.FieldError
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate booking request: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, model.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}
	if req.CustomerPhone != "" {
		phone, err := s.normalizePhone(req.CustomerPhone)
		if err != nil {
			fields = append(fields, model.FieldError{Field: "customer_phone", Message: "is not a valid phone number"})
		} else {
			req.CustomerPhone = phone
		}
	}
	if len(fields) > 0 {
		return &model.ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, s.region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("invalid number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
