package slots

import (
	"errors"
	"testing"
	"time"
)

func TestGenerate_WorkingDay(t *testing.T) {
	loc := time.UTC
	rng := DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, loc),
	}

	got, err := Generate(rng, DefaultWorkingHours(), 60, 15)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 33 {
		t.Fatalf("expected 33 slots, got %d", len(got))
	}

	first := got[0]
	if !first.Start().Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, loc)) || !first.End().Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, loc)) {
		t.Fatalf("unexpected first slot %s-%s", first.Start().Format(time.RFC3339), first.End().Format(time.RFC3339))
	}
	last := got[len(got)-1]
	if !last.Start().Equal(time.Date(2024, 1, 1, 17, 0, 0, 0, loc)) || !last.End().Equal(time.Date(2024, 1, 1, 18, 0, 0, 0, loc)) {
		t.Fatalf("unexpected last slot %s-%s", last.Start().Format(time.RFC3339), last.End().Format(time.RFC3339))
	}
}

func TestGenerate_OrderingAndBounds(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	rng := DateRange{
		Start: time.Date(2024, 3, 4, 11, 30, 0, 0, loc),
		End:   time.Date(2024, 3, 8, 8, 0, 0, 0, loc),
	}
	policy := WorkingHoursPolicy{StartHour: 8, EndHour: 12}

	got, err := Generate(rng, policy, 45, 20)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected slots")
	}

	ids := make(map[string]bool)
	for i, s := range got {
		if s.Minutes() != 45 {
			t.Fatalf("slot %d: expected 45 minutes, got %d", i, s.Minutes())
		}
		if !s.Available {
			t.Fatalf("slot %d: generated slots must start available", i)
		}
		if ids[s.ID] || s.ID == "" {
			t.Fatalf("slot %d: id %q is empty or repeated", i, s.ID)
		}
		ids[s.ID] = true

		day := StartOfDay(s.Start())
		windowStart := day.Add(8 * time.Hour)
		windowEnd := day.Add(12 * time.Hour)
		if s.Start().Before(windowStart) || s.End().After(windowEnd) {
			t.Fatalf("slot %d (%s) escapes the working window", i, s.Start().Format(time.RFC3339))
		}
		if i > 0 && !got[i-1].Start().Before(s.Start()) {
			t.Fatalf("slot %d is not strictly after slot %d", i, i-1)
		}
	}

	// The cursor walks 03-04..03-07; 03-08 08:00 is the exclusive end.
	days := make(map[int]bool)
	for _, s := range got {
		days[s.Start().Day()] = true
	}
	for _, d := range []int{4, 5, 6, 7} {
		if !days[d] {
			t.Fatalf("expected slots on day %d", d)
		}
	}
	if days[8] {
		t.Fatal("did not expect slots on the end day")
	}
}

func TestGenerate_SameCivilDay(t *testing.T) {
	loc := time.UTC
	rng := DateRange{
		Start: time.Date(2024, 1, 1, 6, 0, 0, 0, loc),
		End:   time.Date(2024, 1, 1, 7, 0, 0, 0, loc),
	}
	got, err := Generate(rng, DefaultWorkingHours(), 60, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 33 {
		t.Fatalf("expected the whole day to be scanned (33 slots), got %d", len(got))
	}
}

func TestGenerate_WindowShorterThanDuration(t *testing.T) {
	rng := DaysFrom(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	policy := WorkingHoursPolicy{StartHour: 9, EndHour: 10}

	got, err := Generate(rng, policy, 90, 15)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected zero slots, got %d", len(got))
	}
}

func TestGenerate_CadenceLongerThanDuration(t *testing.T) {
	rng := DaysFrom(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	got, err := Generate(rng, WorkingHoursPolicy{StartHour: 9, EndHour: 12}, 30, 60)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// 09:00, 10:00, 11:00
	if len(got) != 3 {
		t.Fatalf("expected 3 disjoint slots, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Interval.Overlaps(got[i].Interval) {
			t.Fatalf("slots %d and %d overlap", i-1, i)
		}
	}
}

func TestGenerate_DSTKeepsWallClockWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2024-03-10 is the spring-forward day in New York.
	rng := DaysFrom(time.Date(2024, 3, 9, 0, 0, 0, 0, loc), 3)

	got, err := Generate(rng, DefaultWorkingHours(), 60, 15)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(got) != 3*33 {
		t.Fatalf("expected 99 slots, got %d", len(got))
	}
	for _, s := range got {
		if s.Start().Hour() < 9 || s.End().Hour() > 18 || (s.End().Hour() == 18 && s.End().Minute() > 0) {
			t.Fatalf("slot %s-%s left the 09-18 wall-clock window",
				s.Start().Format(time.RFC3339), s.End().Format(time.RFC3339))
		}
	}
}

func TestGenerate_Errors(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := DaysFrom(day, 1)

	cases := []struct {
		name     string
		rng      DateRange
		policy   WorkingHoursPolicy
		duration int
		cadence  int
		want     error
	}{
		{"empty range", DateRange{Start: day, End: day}, DefaultWorkingHours(), 60, 15, ErrInvalidRange},
		{"reversed range", DateRange{Start: day.Add(time.Hour), End: day}, DefaultWorkingHours(), 60, 15, ErrInvalidRange},
		{"zero duration", valid, DefaultWorkingHours(), 0, 15, ErrInvalidDuration},
		{"negative duration", valid, DefaultWorkingHours(), -30, 15, ErrInvalidDuration},
		{"negative cadence", valid, DefaultWorkingHours(), 60, -15, ErrInvalidDuration},
		{"inverted policy", valid, WorkingHoursPolicy{StartHour: 18, EndHour: 9}, 60, 15, ErrInvalidRange},
		{"policy out of range", valid, WorkingHoursPolicy{StartHour: 9, EndHour: 24}, 60, 15, ErrInvalidRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Generate(tc.rng, tc.policy, tc.duration, tc.cadence)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got != nil {
				t.Fatalf("expected no slots on error, got %d", len(got))
			}
		})
	}
}
