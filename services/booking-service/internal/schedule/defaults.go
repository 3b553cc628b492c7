package schedule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotledger/services/booking-service/internal/slottime"
)

// defaultsFile is the YAML shape of a schedule seed:
//
//	days:
//	  monday:
//	    is_working: true
//	    time_slots: ["9:00", "10:00", "2:30"]
type defaultsFile struct {
	Days map[string]struct {
		IsWorking bool     `yaml:"is_working"`
		TimeSlots []string `yaml:"time_slots"`
	} `yaml:"days"`
}

// ClosedWeek is the seed used when no defaults file is configured.
func ClosedWeek() []model.DaySchedule {
	out := make([]model.DaySchedule, 0, len(model.Days))
	for _, d := range model.Days {
		out = append(out, model.DaySchedule{Day: d, TimeSlots: []string{}})
	}
	return out
}

// LoadDefaults reads a seed file. An empty path yields ClosedWeek.
func LoadDefaults(path string) ([]model.DaySchedule, error) {
	if path == "" {
		return ClosedWeek(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule defaults: %w", err)
	}
	return ParseDefaults(raw)
}

func ParseDefaults(raw []byte) ([]model.DaySchedule, error) {
	var f defaultsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse schedule defaults: %w", err)
	}

	byDay := make(map[model.Day]model.DaySchedule, len(f.Days))
	for name, d := range f.Days {
		day, err := model.ParseDay(name)
		if err != nil {
			return nil, fmt.Errorf("schedule defaults: %w", err)
		}
		slots, err := slottime.Normalize(d.TimeSlots)
		if err != nil {
			return nil, fmt.Errorf("schedule defaults for %s: %w", day, err)
		}
		byDay[day] = model.DaySchedule{Day: day, IsWorking: d.IsWorking, TimeSlots: slots}
	}

	out := ClosedWeek()
	for i, ds := range out {
		if configured, ok := byDay[ds.Day]; ok {
			out[i] = configured
		}
	}
	return out, nil
}
