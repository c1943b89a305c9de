package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timely/internal/log"
	"timely/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the civil zone all occurrences are converted to. Nil
	// means time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound the half-open window; an occurrence is
	// kept when it overlaps it.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps expansion of a single RRULE. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences and truncation info.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete occurrences that
// overlap [RangeStart, RangeEnd). It handles single events, RRULE
// recurrence, EXDATE removal, RECURRENCE-ID overrides and all-day events.
// Occurrences come back sorted by start.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID. Overrides are keyed by
	// source too, since UIDs are only unique within one calendar.
	type key struct{ source, uid string }
	baseByUID := make(map[key][]ParsedEvent)
	overridesByUID := make(map[key][]ParsedEvent)
	order := make([]key, 0)

	for _, ev := range events {
		k := key{ev.Source.ID, ev.UID}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[k] = append(overridesByUID[k], ev)
			continue
		}
		if _, seen := baseByUID[k]; !seen {
			order = append(order, k)
		}
		baseByUID[k] = append(baseByUID[k], ev)
	}

	all := make([]model.Occurrence, 0)
	for _, k := range order {
		truncated := false
		for _, ev := range baseByUID[k] {
			occ, hitCap := expandEvent(ev, overridesByUID[k], cfg)
			if hitCap {
				truncated = true
			}
			all = append(all, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", k.uid, "source", k.source, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Before(all[j].Start)
	})
	result.Occurrences = all
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end, ev = o.Start, o.End, o
	}
	if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, start, end, cfg.Location)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so an instance that starts
	// before the window but runs into it is still found.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			y, m, d := occStart.Date()
			occStart = time.Date(y, m, d, 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, 1)
		} else {
			occEnd = occStart.Add(dur)
		}

		baseEv := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occStart, occEnd, baseEv = o.Start, o.End, o
		}
		if !overlaps(occStart, occEnd, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, makeOccurrence(baseEv, occStart, occEnd, cfg.Location))
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	startLocal := start.In(loc)
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Transparent: ev.Transparent,
		Cancelled:   ev.Status == "CANCELLED",
		Start:       startLocal,
		End:         end.In(loc),
	}
}

// overlaps is the half-open test; zero-length events count when they sit
// inside the window.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.Equal(aEnd) {
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
