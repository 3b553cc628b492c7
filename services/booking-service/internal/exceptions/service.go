package exceptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/slottime"
)

type Store interface {
	CreateDateException(ctx context.Context, exc *model.DateException) error
	GetDateException(ctx context.Context, id string) (model.DateException, error)
	GetDateExceptionByDate(ctx context.Context, date string) (model.DateException, error)
	UpdateDateException(ctx context.Context, id string, mutate func(*model.DateException) error) (model.DateException, error)
	DeleteDateException(ctx context.Context, id string) error
	ListDateExceptions(ctx context.Context, activeOnly bool) ([]model.DateException, error)
}

type Service struct {
	store  Store
	zone   *calendar.Zone
	logger *slog.Logger
}

func NewService(store Store, zone *calendar.Zone, logger *slog.Logger) *Service {
	return &Service{store: store, zone: zone, logger: logger}
}

// Create blocks a date. No slots means the whole day is blocked. The date is
// anchored first so the same calendar day from any client maps to one record.
func (s *Service) Create(ctx context.Context, rawDate, reason string, slots []string) (model.DateException, error) {
	anchored, key, err := s.zone.AnchorKey(rawDate)
	if err != nil {
		return model.DateException{}, err
	}
	normalized, err := slottime.Normalize(slots)
	if err != nil {
		return model.DateException{}, err
	}
	exc := model.DateException{
		ID:               uuid.NewString(),
		Date:             key,
		Reason:           strings.TrimSpace(reason),
		IsActive:         true,
		IsFullDayBlocked: len(normalized) == 0,
		BlockedTimeSlots: normalized,
	}
	if err := s.store.CreateDateException(ctx, &exc); err != nil {
		return model.DateException{}, fmt.Errorf("create date exception: %w", err)
	}
	exc.AnchoredAt = anchored
	s.logger.Info("date exception created", "id", exc.ID, "date", exc.Date, "full_day", exc.IsFullDayBlocked)
	return exc, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.DateException, error) {
	exc, err := s.store.GetDateException(ctx, id)
	if err != nil {
		return model.DateException{}, err
	}
	return s.fill(exc), nil
}

// ForDate returns the exception for a canonical date key, or nil when there is none.
func (s *Service) ForDate(ctx context.Context, key string) (*model.DateException, error) {
	exc, err := s.store.GetDateExceptionByDate(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get date exception: %w", err)
	}
	exc = s.fill(exc)
	return &exc, nil
}

// Toggle flips IsActive; the record and its slots are kept.
func (s *Service) Toggle(ctx context.Context, id string) (model.DateException, error) {
	exc, err := s.store.UpdateDateException(ctx, id, func(e *model.DateException) error {
		e.IsActive = !e.IsActive
		return nil
	})
	if err != nil {
		return model.DateException{}, err
	}
	s.logger.Info("date exception toggled", "id", id, "is_active", exc.IsActive)
	return s.fill(exc), nil
}

// RemoveSlot unblocks one slot. A record whose last slot is removed stays as an
// inert partial block; removing a slot that is not blocked changes nothing.
func (s *Service) RemoveSlot(ctx context.Context, id, slot string) (model.DateException, error) {
	key, err := slottime.Key(slot)
	if err != nil {
		return model.DateException{}, err
	}
	exc, err := s.store.UpdateDateException(ctx, id, func(e *model.DateException) error {
		kept := e.BlockedTimeSlots[:0:0]
		for _, blocked := range e.BlockedTimeSlots {
			if k, err := slottime.Key(blocked); err == nil && k == key {
				continue
			}
			kept = append(kept, blocked)
		}
		e.BlockedTimeSlots = kept
		return nil
	})
	if err != nil {
		return model.DateException{}, err
	}
	if len(exc.BlockedTimeSlots) == 0 && !exc.IsFullDayBlocked {
		s.logger.Info("date exception has no blocked slots left", "id", id, "date", exc.Date)
	}
	return s.fill(exc), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDateException(ctx, id); err != nil {
		return err
	}
	s.logger.Info("date exception deleted", "id", id)
	return nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]model.DateException, error) {
	list, err := s.store.ListDateExceptions(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list date exceptions: %w", err)
	}
	for i := range list {
		list[i] = s.fill(list[i])
	}
	return list, nil
}

func (s *Service) fill(exc model.DateException) model.DateException {
	exc.AnchoredAt = s.zone.AtKey(exc.Date)
	return exc
}
