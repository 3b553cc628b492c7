package availability

import (
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/slottime"
)

// Resolve returns the bookable slots of one date: the day's template minus the
// active exception's blocked slots minus the occupied slots. The result keeps
// the template's order and spelling. exc may be nil; occupied holds slot labels
// in any accepted spelling.
func Resolve(day model.DaySchedule, exc *model.DateException, occupied []string) []string {
	out := []string{}
	if !day.IsWorking {
		return out
	}

	var blocked map[string]struct{}
	if exc != nil && exc.IsActive {
		if exc.IsFullDayBlocked {
			return out
		}
		blocked = slottime.KeySet(exc.BlockedTimeSlots)
	}
	taken := slottime.KeySet(occupied)

	for _, slot := range day.TimeSlots {
		key, err := slottime.Key(slot)
		if err != nil {
			continue
		}
		if _, ok := blocked[key]; ok {
			continue
		}
		if _, ok := taken[key]; ok {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// SlotState explains why a slot is or is not bookable.
type SlotState int

const (
	SlotAvailable SlotState = iota
	SlotNotOffered
	SlotBlocked
	SlotOccupied
)

// Classify reports the state of one slot on a date using the same inputs as Resolve.
func Classify(day model.DaySchedule, exc *model.DateException, occupied []string, slot string) SlotState {
	key, err := slottime.Key(slot)
	if err != nil || !day.IsWorking {
		return SlotNotOffered
	}
	if _, ok := slottime.KeySet(day.TimeSlots)[key]; !ok {
		return SlotNotOffered
	}
	if exc != nil && exc.IsActive {
		if exc.IsFullDayBlocked {
			return SlotBlocked
		}
		if _, ok := slottime.KeySet(exc.BlockedTimeSlots)[key]; ok {
			return SlotBlocked
		}
	}
	if _, ok := slottime.KeySet(occupied)[key]; ok {
		return SlotOccupied
	}
	return SlotAvailable
}
