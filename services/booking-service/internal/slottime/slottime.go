package slottime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

// earliestOpeningHour is the first hour of the business day. Literal hours
// below it are read as afternoon shorthand ("2:30" is 14:30).
const earliestOpeningHour = 7

// Time is a parsed slot label.
type Time struct {
	Hour   int
	Minute int
}

// Parse accepts "H:MM" or "HH:MM" with hour 0-23 and minute 0-59.
func Parse(raw string) (Time, error) {
	s := strings.TrimSpace(raw)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return Time{}, fmt.Errorf("%w: %q", model.ErrInvalidTimeFormat, raw)
	}
	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour > 23 || minute > 59 {
		return Time{}, fmt.Errorf("%w: %q", model.ErrInvalidTimeFormat, raw)
	}
	return Time{Hour: hour, Minute: minute}, nil
}

// Key is the canonical HH:MM form used for equality and storage.
func (t Time) Key() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Key parses raw and returns its canonical form.
func Key(raw string) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return t.Key(), nil
}

// businessMinutes maps a slot onto the business day for ordering. This is the
// single home of the hour-below-opening-means-PM rule.
func businessMinutes(t Time) int {
	h := t.Hour
	if h < earliestOpeningHour {
		h += 12
	}
	return h*60 + t.Minute
}

// Less orders two parsed slots by business order, then by canonical key.
func Less(a, b Time) bool {
	ma, mb := businessMinutes(a), businessMinutes(b)
	if ma != mb {
		return ma < mb
	}
	return a.Key() < b.Key()
}

// Normalize validates every entry, removes duplicates (the first spelling of a
// time wins) and returns the slots in business order. One malformed entry
// fails the whole set.
func Normalize(slots []string) ([]string, error) {
	type entry struct {
		label string
		t     Time
	}
	seen := make(map[string]struct{}, len(slots))
	entries := make([]entry, 0, len(slots))
	for _, raw := range slots {
		t, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t.Key()]; dup {
			continue
		}
		seen[t.Key()] = struct{}{}
		entries = append(entries, entry{label: strings.TrimSpace(raw), t: t})
	}
	sort.SliceStable(entries, func(i, j int) bool { return Less(entries[i].t, entries[j].t) })

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.label
	}
	return out, nil
}

// KeySet returns the canonical keys of slots, skipping entries that do not parse.
func KeySet(slots []string) map[string]struct{} {
	set := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		if k, err := Key(s); err == nil {
			set[k] = struct{}{}
		}
	}
	return set
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
