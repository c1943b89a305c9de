package slots

import (
	"sort"
)

// Resolve returns a copy of slots, in the same order, with Available set to
// false for every slot that overlaps some busy interval and true otherwise.
// A slot that only touches a busy interval at either end stays available.
// Neither input is modified.
func Resolve(slots []Slot, busy []BusyInterval) []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	if len(out) == 0 {
		return out
	}

	sorted := make([]BusyInterval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	for i := range out {
		out[i].Available = !overlapsAny(out[i].Interval, sorted)
	}
	return out
}

// Available filters slots down to the ones marked available.
func Available(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// overlapsAny expects busy sorted by Start: once a busy interval starts at or
// after the slot's end, no later one can overlap it.
func overlapsAny(slot TimeInterval, busy []BusyInterval) bool {
	for _, b := range busy {
		if !b.Start.Before(slot.End) {
			return false
		}
		if slot.Overlaps(b.Interval()) {
			return true
		}
	}
	return false
}
