// Package slots is the availability engine: it lays out candidate time slots
// on a working-hours grid, marks them against busy intervals, and validates
// user-entered ad-hoc slots.
//
// Every function in this package is pure. Nothing is cached between calls and
// callers own all returned values.
package slots

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCadenceMinutes is the step between successive candidate starts.
	DefaultCadenceMinutes = 15
	// DefaultDurationMinutes is used when an activity does not specify one.
	DefaultDurationMinutes = 60
)

var (
	ErrInvalidRange    = errors.New("invalid range")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrInvalidTime     = errors.New("invalid time")
)

// TimeInterval is a half-open [Start, End) span of absolute time.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// NewTimeInterval returns an interval or ErrInvalidRange when start is not
// strictly before end.
func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	if !start.Before(end) {
		return TimeInterval{}, fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeInterval{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps uses the open-interval test, so intervals that only touch at a
// boundary do not overlap.
func (i TimeInterval) Overlaps(o TimeInterval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// BusyInterval is time the user is already committed, as reported by a
// calendar provider.
type BusyInterval TimeInterval

// Interval returns b as a plain TimeInterval.
func (b BusyInterval) Interval() TimeInterval {
	return TimeInterval(b)
}

// DateRange selects the civil days to scan. The location of Start is the
// civil calendar used for day and working-hour boundaries.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate reports ErrInvalidRange unless Start < End.
func (r DateRange) Validate() error {
	if !r.Start.Before(r.End) {
		return fmt.Errorf("%w: range start %s must be before end %s",
			ErrInvalidRange, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// DaysFrom returns the range covering n civil days starting at midnight of
// day's date in day's location.
func DaysFrom(day time.Time, n int) DateRange {
	start := StartOfDay(day)
	return DateRange{Start: start, End: start.AddDate(0, 0, n)}
}

// StartOfDay returns local midnight of t's civil date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WorkingHoursPolicy is the daily civil window in which slots may start and end.
type WorkingHoursPolicy struct {
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`
}

// DefaultWorkingHours is 09:00-18:00.
func DefaultWorkingHours() WorkingHoursPolicy {
	return WorkingHoursPolicy{StartHour: 9, EndHour: 18}
}

// Validate reports ErrInvalidRange for hours outside [0,23] or an empty window.
func (p WorkingHoursPolicy) Validate() error {
	if p.StartHour < 0 || p.StartHour > 23 || p.EndHour < 0 || p.EndHour > 23 {
		return fmt.Errorf("%w: working hours %d-%d must be within 0-23", ErrInvalidRange, p.StartHour, p.EndHour)
	}
	if p.StartHour >= p.EndHour {
		return fmt.Errorf("%w: working hours start %d must be before end %d", ErrInvalidRange, p.StartHour, p.EndHour)
	}
	return nil
}

// WindowMinutes is the length of the daily window in civil minutes.
func (p WorkingHoursPolicy) WindowMinutes() int {
	return (p.EndHour - p.StartHour) * 60
}

// Slot is a candidate or chosen interval for an activity.
type Slot struct {
	ID        string
	Interval  TimeInterval
	Available bool
}

func newSlot(start, end time.Time) Slot {
	return Slot{
		ID:        uuid.NewString(),
		Interval:  TimeInterval{Start: start, End: end},
		Available: true,
	}
}

// Start is shorthand for s.Interval.Start.
func (s Slot) Start() time.Time { return s.Interval.Start }

// End is shorthand for s.Interval.End.
func (s Slot) End() time.Time { return s.Interval.End }

// Minutes returns the slot length in whole minutes.
func (s Slot) Minutes() int {
	return int(s.Interval.Duration() / time.Minute)
}
