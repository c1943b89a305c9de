package slots

import (
	"fmt"
	"time"
)

// Generate lays out candidate slots of durationMinutes every cadenceMinutes
// inside each civil day's working window, for every day the range touches.
// A cadence of 0 selects DefaultCadenceMinutes.
//
// Window boundaries are composed from civil hours, so on a DST change day the
// window keeps its wall-clock bounds even though its elapsed length differs.
// Slots overlap when the cadence is shorter than the duration.
func Generate(rng DateRange, policy WorkingHoursPolicy, durationMinutes, cadenceMinutes int) ([]Slot, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive (got %d minutes)", ErrInvalidDuration, durationMinutes)
	}
	if cadenceMinutes < 0 {
		return nil, fmt.Errorf("%w: cadence must be positive (got %d minutes)", ErrInvalidDuration, cadenceMinutes)
	}
	if cadenceMinutes == 0 {
		cadenceMinutes = DefaultCadenceMinutes
	}
	// Any step of a day or more yields one slot per window.
	if cadenceMinutes > minutesPerDay {
		cadenceMinutes = minutesPerDay
	}

	duration := time.Duration(durationMinutes) * time.Minute
	cadence := time.Duration(cadenceMinutes) * time.Minute
	loc := rng.Start.Location()

	var out []Slot
	if policy.WindowMinutes() < durationMinutes {
		return out, nil
	}

	seen := make(map[civilDay]struct{})
	for cursor := rng.Start; cursor.Before(rng.End); cursor = cursor.AddDate(0, 0, 1) {
		day := civilDayOf(cursor)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}

		windowStart := time.Date(day.year, day.month, day.day, policy.StartHour, 0, 0, 0, loc)
		windowEnd := time.Date(day.year, day.month, day.day, policy.EndHour, 0, 0, 0, loc)

		for p := windowStart; p.Before(windowEnd); p = p.Add(cadence) {
			end := p.Add(duration)
			if end.After(windowEnd) {
				break
			}
			out = append(out, newSlot(p, end))
		}
	}
	return out, nil
}

const minutesPerDay = 24 * 60

type civilDay struct {
	year  int
	month time.Month
	day   int
}

func civilDayOf(t time.Time) civilDay {
	y, m, d := t.Date()
	return civilDay{year: y, month: m, day: d}
}
