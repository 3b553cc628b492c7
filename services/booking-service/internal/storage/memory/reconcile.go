package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

// TryLock mirrors the Postgres advisory lock within one process.
func (s *Store) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	if !s.sweepLock.TryLock() {
		return nil, false, nil
	}
	return s.sweepLock.Unlock, true, nil
}

func (s *Store) ListOrphanOccupancies(ctx context.Context, limit int) ([]model.Occupancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	referenced := s.referencedLocked()
	var out []model.Occupancy
	for id, o := range s.occupancy {
		if _, ok := referenced[id]; !ok {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *Store) DeleteOrphanOccupancy(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occupancy[id]; !ok {
		return false, nil
	}
	if _, ok := s.referencedLocked()[id]; ok {
		return false, nil
	}
	delete(s.occupancy, id)
	return true, nil
}

func (s *Store) ListBookingsMissingOccupancy(ctx context.Context, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.OccupancyID == "" && b.Status.Occupies() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *Store) RestoreOccupancy(ctx context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.OccupancyID != "" || !b.Status.Occupies() {
		return false, nil
	}
	if s.slotTakenLocked(b.Date, b.TimeSlot, "") {
		return false, fmt.Errorf("%w: %s %s", model.ErrSlotAlreadyBooked, b.Date, b.TimeSlot)
	}
	occ := model.Occupancy{ID: uuid.NewString(), Date: b.Date, TimeSlot: b.TimeSlot, Status: b.Status, CreatedAt: s.now()}
	s.occupancy[occ.ID] = occ
	b.OccupancyID = occ.ID
	b.UpdatedAt = s.now()
	s.bookings[bookingID] = b
	return true, nil
}

func (s *Store) ListStatusMismatches(ctx context.Context, limit int) ([]model.StatusMismatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StatusMismatch
	for _, b := range s.bookings {
		o, ok := s.occupancy[b.OccupancyID]
		if !ok || o.Status == b.Status {
			continue
		}
		out = append(out, model.StatusMismatch{
			BookingID:       b.ID,
			OccupancyID:     o.ID,
			BookingStatus:   b.Status,
			OccupancyStatus: o.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return truncate(out, limit), nil
}

func (s *Store) MirrorOccupancyStatus(ctx context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return false, nil
	}
	o, ok := s.occupancy[b.OccupancyID]
	if !ok || o.Status == b.Status {
		return false, nil
	}
	if b.Status.Occupies() && !o.Status.Occupies() && s.slotTakenLocked(o.Date, o.TimeSlot, o.ID) {
		return false, fmt.Errorf("%w: %s %s", model.ErrSlotAlreadyBooked, o.Date, o.TimeSlot)
	}
	o.Status = b.Status
	s.occupancy[o.ID] = o
	return true, nil
}

// The methods below reproduce the partial failures a store without
// multi-record transactions can leave behind.

// InjectOccupancy stores an occupancy row that no booking points at.
func (s *Store) InjectOccupancy(o model.Occupancy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.occupancy[o.ID] = o
}

// DropOccupancy deletes the occupancy row of a booking and clears the link.
func (s *Store) DropOccupancy(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return
	}
	delete(s.occupancy, b.OccupancyID)
	b.OccupancyID = ""
	s.bookings[bookingID] = b
}

// ForceOccupancyStatus overwrites an occupancy status without touching its booking.
func (s *Store) ForceOccupancyStatus(bookingID string, status model.BookingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return
	}
	if o, ok := s.occupancy[b.OccupancyID]; ok {
		o.Status = status
		s.occupancy[o.ID] = o
	}
}

func (s *Store) referencedLocked() map[string]struct{} {
	ref := make(map[string]struct{}, len(s.bookings))
	for _, b := range s.bookings {
		if b.OccupancyID != "" {
			ref[b.OccupancyID] = struct{}{}
		}
	}
	return ref
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
