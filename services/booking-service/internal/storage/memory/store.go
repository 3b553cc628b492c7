package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/outbox"
)

// Store runs every operation under one mutex, so a slot claim is a
// conditional insert just like the Postgres partial unique index.
type Store struct {
	mu sync.Mutex

	days        map[model.Day]model.DaySchedule
	exceptions  map[string]model.DateException
	bookings    map[string]model.Booking
	occupancy   map[string]model.Occupancy
	idempotency map[string]string
	events      []outbox.Event

	sweepLock sync.Mutex
	now       func() time.Time
}

func New() *Store {
	return &Store{
		days:        map[model.Day]model.DaySchedule{},
		exceptions:  map[string]model.DateException{},
		bookings:    map[string]model.Booking{},
		occupancy:   map[string]model.Occupancy{},
		idempotency: map[string]string{},
		now:         time.Now,
	}
}

// Events returns a copy of every event recorded so far.
func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) ListDaySchedules(ctx context.Context) ([]model.DaySchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DaySchedule, 0, len(s.days))
	for _, ds := range s.days {
		out = append(out, cloneDay(ds))
	}
	return out, nil
}

func (s *Store) GetDaySchedule(ctx context.Context, day model.Day) (model.DaySchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.days[day]
	if !ok {
		return model.DaySchedule{}, fmt.Errorf("day schedule %s: %w", day, model.ErrNotFound)
	}
	return cloneDay(ds), nil
}

func (s *Store) UpsertDaySchedule(ctx context.Context, ds model.DaySchedule) (model.DaySchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds = cloneDay(ds)
	ds.UpdatedAt = s.now()
	s.days[ds.Day] = ds
	return cloneDay(ds), nil
}

func (s *Store) SeedDaySchedules(ctx context.Context, days []model.DaySchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range days {
		if _, ok := s.days[ds.Day]; ok {
			continue
		}
		ds = cloneDay(ds)
		ds.UpdatedAt = s.now()
		s.days[ds.Day] = ds
	}
	return nil
}

func (s *Store) CreateDateException(ctx context.Context, exc *model.DateException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.exceptions {
		if existing.Date == exc.Date {
			return fmt.Errorf("%w: %s", model.ErrDuplicateDate, exc.Date)
		}
	}
	now := s.now()
	stored := cloneException(*exc)
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.exceptions[stored.ID] = stored
	*exc = cloneException(stored)
	return nil
}

func (s *Store) GetDateException(ctx context.Context, id string) (model.DateException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exc, ok := s.exceptions[id]
	if !ok {
		return model.DateException{}, fmt.Errorf("date exception %s: %w", id, model.ErrNotFound)
	}
	return cloneException(exc), nil
}

func (s *Store) GetDateExceptionByDate(ctx context.Context, date string) (model.DateException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exc := range s.exceptions {
		if exc.Date == date {
			return cloneException(exc), nil
		}
	}
	return model.DateException{}, fmt.Errorf("date exception for %s: %w", date, model.ErrNotFound)
}

func (s *Store) UpdateDateException(ctx context.Context, id string, mutate func(*model.DateException) error) (model.DateException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exc, ok := s.exceptions[id]
	if !ok {
		return model.DateException{}, fmt.Errorf("date exception %s: %w", id, model.ErrNotFound)
	}
	work := cloneException(exc)
	if err := mutate(&work); err != nil {
		return model.DateException{}, err
	}
	work.ID, work.Date, work.CreatedAt = exc.ID, exc.Date, exc.CreatedAt
	work.UpdatedAt = s.now()
	s.exceptions[id] = work
	return cloneException(work), nil
}

func (s *Store) DeleteDateException(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exceptions[id]; !ok {
		return fmt.Errorf("date exception %s: %w", id, model.ErrNotFound)
	}
	delete(s.exceptions, id)
	return nil
}

func (s *Store) ListDateExceptions(ctx context.Context, activeOnly bool) ([]model.DateException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DateException
	for _, exc := range s.exceptions {
		if activeOnly && !exc.IsActive {
			continue
		}
		out = append(out, cloneException(exc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *model.Booking, idemKey string, evt outbox.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idemKey != "" {
		if prior, ok := s.bookings[s.idempotency[idemKey]]; ok {
			*b = prior
			return true, nil
		}
	}
	if s.slotTakenLocked(b.Date, b.TimeSlot, "") {
		return false, fmt.Errorf("%w: %s %s", model.ErrSlotAlreadyBooked, b.Date, b.TimeSlot)
	}

	now := s.now()
	s.occupancy[b.OccupancyID] = model.Occupancy{
		ID:        b.OccupancyID,
		Date:      b.Date,
		TimeSlot:  b.TimeSlot,
		Status:    b.Status,
		CreatedAt: now,
	}
	stored := *b
	stored.AnchoredAt = time.Time{}
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.bookings[stored.ID] = stored
	if idemKey != "" {
		s.idempotency[idemKey] = stored.ID
	}
	s.events = append(s.events, evt)
	*b = stored
	return false, nil
}

func (s *Store) BookingByIdempotencyKey(ctx context.Context, key string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[s.idempotency[key]]
	if !ok {
		return model.Booking{}, fmt.Errorf("idempotency key %q: %w", key, model.ErrNotFound)
	}
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}
	return b, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus, build func(model.Booking, model.BookingStatus) (outbox.Event, error)) (model.Booking, model.BookingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, "", fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}
	prev := cur.Status
	if prev == status {
		return cur, prev, nil
	}

	occ, hasOcc := s.occupancy[cur.OccupancyID]
	if status.Occupies() && (!hasOcc || !occ.Status.Occupies()) && s.slotTakenLocked(cur.Date, cur.TimeSlot, cur.OccupancyID) {
		return model.Booking{}, "", fmt.Errorf("%w: %s %s", model.ErrSlotAlreadyBooked, cur.Date, cur.TimeSlot)
	}

	next := cur
	next.Status = status
	next.UpdatedAt = s.now()
	switch {
	case hasOcc:
		occ.Status = status
	case status.Occupies():
		occ = model.Occupancy{ID: uuid.NewString(), Date: cur.Date, TimeSlot: cur.TimeSlot, Status: status, CreatedAt: next.UpdatedAt}
		next.OccupancyID = occ.ID
		hasOcc = true
	default:
		next.OccupancyID = ""
	}

	evt, err := build(next, prev)
	if err != nil {
		return model.Booking{}, "", err
	}
	if hasOcc {
		s.occupancy[occ.ID] = occ
	}
	s.bookings[id] = next
	s.events = append(s.events, evt)
	return next, prev, nil
}

func (s *Store) DeleteBooking(ctx context.Context, id string, build func(model.Booking) (outbox.Event, error)) (model.Booking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, false, fmt.Errorf("booking %s: %w", id, model.ErrNotFound)
	}
	evt, err := build(cur)
	if err != nil {
		return model.Booking{}, false, err
	}
	delete(s.bookings, id)
	_, removed := s.occupancy[cur.OccupancyID]
	delete(s.occupancy, cur.OccupancyID)
	for k, v := range s.idempotency {
		if v == id {
			delete(s.idempotency, k)
		}
	}
	s.events = append(s.events, evt)
	return cur, removed, nil
}

func (s *Store) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []model.Booking
	for _, b := range s.bookings {
		if f.Date != "" && b.Date != f.Date {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		if out[i].TimeSlot != out[j].TimeSlot {
			return out[i].TimeSlot < out[j].TimeSlot
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListOccupiedSlots(ctx context.Context, date string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, o := range s.occupancy {
		if o.Date == date && o.Status.Occupies() {
			out = append(out, o.TimeSlot)
		}
	}
	sort.Strings(out)
	return out, nil
}

// slotTakenLocked reports whether an occupying row other than exceptID holds (date, slot).
func (s *Store) slotTakenLocked(date, slot, exceptID string) bool {
	for id, o := range s.occupancy {
		if id != exceptID && o.Date == date && o.TimeSlot == slot && o.Status.Occupies() {
			return true
		}
	}
	return false
}

func cloneDay(ds model.DaySchedule) model.DaySchedule {
	ds.TimeSlots = append([]string{}, ds.TimeSlots...)
	return ds
}

func cloneException(exc model.DateException) model.DateException {
	exc.BlockedTimeSlots = append([]string{}, exc.BlockedTimeSlots...)
	return exc
}
