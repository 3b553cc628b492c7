package calendar

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
)

const DateLayout = "2006-01-02"

// Zone is the business's fixed timezone. The process-local zone is never consulted.
type Zone struct {
	loc *time.Location
}

func NewZone(name string) (*Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load business timezone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

func MustZone(name string) *Zone {
	z, err := NewZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

func (z *Zone) Location() *time.Location { return z.loc }

func (z *Zone) String() string { return z.loc.String() }

// Anchor returns midnight of the submitted calendar date in the business zone.
// It accepts YYYY-MM-DD, or an RFC 3339 timestamp whose calendar date (as the
// client wrote it) is used and whose offset is ignored.
func (z *Zone) Anchor(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", model.ErrInvalidDate)
	}
	if len(raw) > len(DateLayout) {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", model.ErrInvalidDate, raw)
		}
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, z.loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", model.ErrInvalidDate, raw)
	}
	return t, nil
}

// Key is the canonical storage form of an instant's business-zone calendar date.
func (z *Zone) Key(t time.Time) string {
	return t.In(z.loc).Format(DateLayout)
}

// AnchorKey anchors raw and returns both the instant and its canonical key.
func (z *Zone) AnchorKey(raw string) (time.Time, string, error) {
	t, err := z.Anchor(raw)
	if err != nil {
		return time.Time{}, "", err
	}
	return t, z.Key(t), nil
}

// AtKey converts a stored key back to its anchored instant. Invalid keys yield the zero time.
func (z *Zone) AtKey(key string) time.Time {
	t, err := time.ParseInLocation(DateLayout, key, z.loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (z *Zone) DayOfWeek(t time.Time) model.Day {
	return model.DayFromWeekday(t.In(z.loc).Weekday())
}

// Today is the current calendar date in the business zone.
func (z *Zone) Today(now time.Time) time.Time {
	y, m, d := now.In(z.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, z.loc)
}
