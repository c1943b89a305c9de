package slots

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidateCustom(t *testing.T) {
	date := CivilDate{Year: 2024, Month: time.January, Day: 1}
	start := CivilTime{Hour: 14, Minute: 0}

	got, err := ValidateCustom(date, start, 90, time.UTC)
	if err != nil {
		t.Fatalf("validate custom: %v", err)
	}
	if !got.Start().Equal(time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", got.Start().Format(time.RFC3339))
	}
	if !got.End().Equal(time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", got.End().Format(time.RFC3339))
	}
	if !got.Available {
		t.Fatal("custom slots are always available")
	}
	if got.ID == "" {
		t.Fatal("expected an id")
	}
}

func TestValidateCustom_CrossesMidnight(t *testing.T) {
	got, err := ValidateCustom(CivilDate{Year: 2024, Month: time.December, Day: 31}, CivilTime{Hour: 23, Minute: 30}, 60, time.UTC)
	if err != nil {
		t.Fatalf("validate custom: %v", err)
	}
	if !got.End().Equal(time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", got.End().Format(time.RFC3339))
	}
}

func TestValidateCustom_Errors(t *testing.T) {
	good := CivilDate{Year: 2024, Month: time.February, Day: 29}
	noon := CivilTime{Hour: 12}

	cases := []struct {
		name     string
		date     CivilDate
		start    CivilTime
		duration int
		want     error
	}{
		{"zero duration", good, noon, 0, ErrInvalidDuration},
		{"negative duration", good, noon, -5, ErrInvalidDuration},
		{"duration checked first", CivilDate{}, CivilTime{Hour: 99}, 0, ErrInvalidDuration},
		{"month", CivilDate{Year: 2024, Month: 13, Day: 1}, noon, 30, ErrInvalidTime},
		{"no leap day", CivilDate{Year: 2023, Month: time.February, Day: 29}, noon, 30, ErrInvalidTime},
		{"day zero", CivilDate{Year: 2024, Month: time.March, Day: 0}, noon, 30, ErrInvalidTime},
		{"hour", good, CivilTime{Hour: 24}, 30, ErrInvalidTime},
		{"minute", good, CivilTime{Hour: 9, Minute: 60}, 30, ErrInvalidTime},
		{"negative minute", good, CivilTime{Hour: 9, Minute: -1}, 30, ErrInvalidTime},
		{"overflowing duration", good, noon, math.MaxInt, ErrInvalidTime},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateCustom(tc.date, tc.start, tc.duration, time.UTC)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseCivil(t *testing.T) {
	d, err := ParseCivilDate("2024-01-01")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if d != (CivilDate{Year: 2024, Month: time.January, Day: 1}) || d.String() != "2024-01-01" {
		t.Fatalf("unexpected date %+v", d)
	}

	tm, err := ParseCivilTime("09:05")
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	if tm != (CivilTime{Hour: 9, Minute: 5}) || tm.String() != "09:05" {
		t.Fatalf("unexpected time %+v", tm)
	}

	if _, err := ParseCivilDate("2024-13-01"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
	if _, err := ParseCivilTime("25:00"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
}

func TestNewTimeInterval(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if _, err := NewTimeInterval(start, start); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	iv, err := NewTimeInterval(start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("new interval: %v", err)
	}
	if iv.Duration() != time.Hour {
		t.Fatalf("unexpected duration %s", iv.Duration())
	}
}
