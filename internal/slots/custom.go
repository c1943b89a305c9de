package slots

import (
	"fmt"
	"math"
	"time"
)

// CivilDate is a calendar date without a time zone.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// CivilTime is a wall-clock time of day.
type CivilTime struct {
	Hour   int
	Minute int
}

// ParseCivilDate parses "2006-01-02".
func ParseCivilDate(s string) (CivilDate, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("%w: date %q: %v", ErrInvalidTime, s, err)
	}
	return CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// ParseCivilTime parses "15:04".
func ParseCivilTime(s string) (CivilTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return CivilTime{}, fmt.Errorf("%w: time %q: %v", ErrInvalidTime, s, err)
	}
	return CivilTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// DateOf returns the civil date of t in t's location.
func DateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (t CivilTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// In returns midnight of d in loc.
func (d CivilDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CivilDate) validate() error {
	if d.Month < time.January || d.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidTime, d.Month)
	}
	// Day 0 of the following month is the last day of this one.
	last := time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if d.Day < 1 || d.Day > last {
		return fmt.Errorf("%w: day %d out of range for %04d-%02d", ErrInvalidTime, d.Day, d.Year, int(d.Month))
	}
	return nil
}

func (t CivilTime) validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidTime, t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidTime, t.Minute)
	}
	return nil
}

// ValidateCustom builds a user-declared slot at date+start in loc (nil means
// time.Local) lasting durationMinutes. The slot is always available; it is
// not checked against the grid or any busy interval.
func ValidateCustom(date CivilDate, start CivilTime, durationMinutes int, loc *time.Location) (Slot, error) {
	if durationMinutes <= 0 {
		return Slot{}, fmt.Errorf("%w: duration must be positive (got %d minutes)", ErrInvalidDuration, durationMinutes)
	}
	if err := date.validate(); err != nil {
		return Slot{}, err
	}
	if err := start.validate(); err != nil {
		return Slot{}, err
	}
	if int64(durationMinutes) > int64(math.MaxInt64/time.Minute) {
		return Slot{}, fmt.Errorf("%w: duration of %d minutes overflows", ErrInvalidTime, durationMinutes)
	}
	if loc == nil {
		loc = time.Local
	}

	begin := time.Date(date.Year, date.Month, date.Day, start.Hour, start.Minute, 0, 0, loc)
	end := begin.Add(time.Duration(durationMinutes) * time.Minute)
	if !end.After(begin) {
		return Slot{}, fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidTime, end.Format(time.RFC3339), begin.Format(time.RFC3339))
	}
	return newSlot(begin, end), nil
}
