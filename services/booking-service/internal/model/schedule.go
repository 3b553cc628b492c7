package model

import (
	"fmt"
	"strings"
	"time"
)

type Day string

const (
	Sunday    Day = "sunday"
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
)

// Days lists the week in time.Weekday order.
var Days = []Day{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func ParseDay(raw string) (Day, error) {
	d := Day(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Days {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDay, raw)
}

func DayFromWeekday(wd time.Weekday) Day {
	return Days[int(wd)%len(Days)]
}

// DaySchedule is the recurring template for one day of the week.
// TimeSlots is kept in business order; it is display-only when IsWorking is false.
type DaySchedule struct {
	Day       Day       `json:"day"`
	IsWorking bool      `json:"is_working"`
	TimeSlots []string  `json:"time_slots"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// WeeklySchedule always holds all seven days.
type WeeklySchedule map[Day]DaySchedule

func (ws WeeklySchedule) Ordered() []DaySchedule {
	out := make([]DaySchedule, 0, len(Days))
	for _, d := range Days {
		if ds, ok := ws[d]; ok {
			out = append(out, ds)
		}
	}
	return out
}

// DateException overrides the weekly template for one anchored calendar date.
type DateException struct {
	ID               string    `json:"id"`
	Date             string    `json:"date"`
	AnchoredAt       time.Time `json:"anchored_at"`
	Reason           string    `json:"reason"`
	IsActive         bool      `json:"is_active"`
	IsFullDayBlocked bool      `json:"is_full_day_blocked"`
	BlockedTimeSlots []string  `json:"blocked_time_slots"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
