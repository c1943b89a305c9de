package slots

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

func workingDay(t *testing.T) []Slot {
	t.Helper()
	got, err := Generate(DaysFrom(at(0, 0), 1), DefaultWorkingHours(), 60, 15)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return got
}

func findSlot(t *testing.T, slots []Slot, start time.Time) Slot {
	t.Helper()
	for _, s := range slots {
		if s.Start().Equal(start) {
			return s
		}
	}
	t.Fatalf("no slot starting at %s", start.Format(time.RFC3339))
	return Slot{}
}

func TestResolve_LunchMeeting(t *testing.T) {
	busy := []BusyInterval{{Start: at(13, 0), End: at(14, 0)}}
	got := Resolve(workingDay(t), busy)

	cases := []struct {
		start     time.Time
		available bool
	}{
		{at(12, 0), true},
		{at(12, 15), false},
		{at(12, 45), false},
		{at(13, 0), false},
		{at(13, 45), false},
		{at(14, 0), true},
		{at(9, 0), true},
		{at(17, 0), true},
	}
	for _, tc := range cases {
		s := findSlot(t, got, tc.start)
		if s.Available != tc.available {
			t.Fatalf("slot %s: expected available=%v", tc.start.Format("15:04"), tc.available)
		}
	}

	unavailable := len(got) - len(Available(got))
	// 12:15, 12:30, 12:45, 13:00, 13:15, 13:30, 13:45
	if unavailable != 7 {
		t.Fatalf("expected 7 unavailable slots, got %d", unavailable)
	}
}

func TestResolve_MatchesOverlapDefinition(t *testing.T) {
	slots := workingDay(t)
	busy := []BusyInterval{
		{Start: at(16, 40), End: at(17, 5)},
		{Start: at(9, 10), End: at(9, 20)},
		{Start: at(11, 0), End: at(11, 1)},
	}

	got := Resolve(slots, busy)
	if len(got) != len(slots) {
		t.Fatalf("expected %d slots, got %d", len(slots), len(got))
	}
	for i, s := range got {
		if s.ID != slots[i].ID {
			t.Fatalf("slot %d: order or identity changed", i)
		}
		want := true
		for _, b := range busy {
			if s.Start().Before(b.End) && s.End().After(b.Start) {
				want = false
			}
		}
		if s.Available != want {
			t.Fatalf("slot %s: expected available=%v", s.Start().Format("15:04"), want)
		}
	}
}

func TestResolve_TouchingBoundariesStayAvailable(t *testing.T) {
	slot := Slot{ID: "a", Interval: TimeInterval{Start: at(10, 0), End: at(11, 0)}, Available: true}
	busy := []BusyInterval{
		{Start: at(11, 0), End: at(12, 0)},
		{Start: at(9, 0), End: at(10, 0)},
	}

	got := Resolve([]Slot{slot}, busy)
	if !got[0].Available {
		t.Fatal("touching busy intervals must not make a slot unavailable")
	}
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	slots := workingDay(t)
	busy := []BusyInterval{
		{Start: at(15, 0), End: at(16, 0)},
		{Start: at(10, 0), End: at(10, 30)},
	}
	busyCopy := append([]BusyInterval(nil), busy...)

	_ = Resolve(slots, busy)

	for i, s := range slots {
		if !s.Available {
			t.Fatalf("input slot %d was mutated", i)
		}
	}
	for i := range busy {
		if busy[i] != busyCopy[i] {
			t.Fatalf("busy interval %d was mutated or reordered", i)
		}
	}
}

func TestResolve_Idempotent(t *testing.T) {
	busy := []BusyInterval{{Start: at(13, 0), End: at(14, 0)}}
	once := Resolve(workingDay(t), busy)
	twice := Resolve(once, busy)

	for i := range once {
		if once[i].Available != twice[i].Available {
			t.Fatalf("slot %d: availability changed on second resolve", i)
		}
	}
}

func TestResolve_ClearsStaleFlags(t *testing.T) {
	stale := []Slot{{ID: "x", Interval: TimeInterval{Start: at(9, 0), End: at(10, 0)}, Available: false}}
	got := Resolve(stale, nil)
	if !got[0].Available {
		t.Fatal("expected slot with no conflicts to be available")
	}
}

func TestResolve_Empty(t *testing.T) {
	if got := Resolve(nil, []BusyInterval{{Start: at(9, 0), End: at(10, 0)}}); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	got := Resolve(workingDay(t), nil)
	if len(Available(got)) != len(got) {
		t.Fatal("expected all slots available with no busy intervals")
	}
}
