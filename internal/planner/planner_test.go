package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"timely/internal/model"
	"timely/internal/slots"
)

type fakeCalendar struct {
	busy []slots.BusyInterval
	err  error
	// during runs while the busy time is being "fetched".
	during func()
}

func (f *fakeCalendar) BusyIntervals(ctx context.Context, rng slots.DateRange) ([]slots.BusyInterval, error) {
	if f.during != nil {
		f.during()
	}
	return f.busy, f.err
}

type fakeWriter struct {
	mu     sync.Mutex
	events []model.Event
	err    error
	during func()
}

func (f *fakeWriter) CreateEvent(ctx context.Context, ev model.Event) error {
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) Activities(ctx context.Context) ([]model.Activity, error) {
	return model.DefaultActivities(), nil
}

type fakeStore struct {
	prefs   model.Preferences
	custom  []model.Activity
	history []model.Event
	last    string
}

func (f *fakeStore) Preferences(ctx context.Context) (model.Preferences, error) { return f.prefs, nil }
func (f *fakeStore) CustomActivities(ctx context.Context) ([]model.Activity, error) {
	return f.custom, nil
}
func (f *fakeStore) AppendHistory(ctx context.Context, ev model.Event) error {
	f.history = append(f.history, ev)
	return nil
}
func (f *fakeStore) SetLastActivity(ctx context.Context, id string) error {
	f.last = id
	return nil
}

type countingRecorder struct {
	generated, unavailable, errors, confirmed int
}

func (c *countingRecorder) ObserveProposal(g, u int) { c.generated += g; c.unavailable += u }
func (c *countingRecorder) ObserveProposalError()    { c.errors++ }
func (c *countingRecorder) ObserveConfirmed()        { c.confirmed++ }

type fixture struct {
	planner  *Planner
	calendar *fakeCalendar
	writer   *fakeWriter
	store    *fakeStore
	rec      *countingRecorder
}

func newFixture() *fixture {
	f := &fixture{
		calendar: &fakeCalendar{},
		writer:   &fakeWriter{},
		store:    &fakeStore{prefs: model.DefaultPreferences()},
		rec:      &countingRecorder{},
	}
	f.planner = New(Options{
		Calendar: f.calendar,
		Writer:   f.writer,
		Catalog:  fakeCatalog{},
		Store:    f.store,
		Metrics:  f.rec,
		Location: time.UTC,
	})
	return f
}

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestProposeUsesActivityDuration(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Workout Session is 90 minutes.
	if _, err := f.planner.SelectActivity(ctx, "2"); err != nil {
		t.Fatalf("SelectActivity returned error: %v", err)
	}
	if f.store.last != "2" {
		t.Fatalf("last activity not remembered, got %q", f.store.last)
	}

	f.calendar.busy = []slots.BusyInterval{{
		Start: day.Add(13 * time.Hour),
		End:   day.Add(14 * time.Hour),
	}}
	prop, err := f.planner.Propose(ctx, slots.DaysFrom(day, 1))
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}
	// 09:00..16:30 starts every 15 minutes.
	if len(prop.Slots) != 31 || prop.DurationMinutes != 90 {
		t.Fatalf("expected 31 slots of 90 minutes, got %d of %d", len(prop.Slots), prop.DurationMinutes)
	}
	if f.rec.generated != 31 || f.rec.unavailable == 0 {
		t.Fatalf("unexpected metrics %+v", f.rec)
	}
}

func TestProposeWithoutActivityUsesPreferenceDefault(t *testing.T) {
	f := newFixture()
	f.store.prefs.DefaultDuration = 60
	prop, err := f.planner.Propose(context.Background(), slots.DaysFrom(day, 1))
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}
	if len(prop.Slots) != 33 {
		t.Fatalf("expected 33 slots, got %d", len(prop.Slots))
	}
}

func TestProposeErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.planner.Propose(ctx, slots.DateRange{Start: day, End: day}); !errors.Is(err, slots.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	denied := errors.New("calendar access denied")
	f.calendar.err = denied
	if _, err := f.planner.Propose(ctx, slots.DaysFrom(day, 1)); !errors.Is(err, denied) {
		t.Fatalf("expected provider error to be wrapped, got %v", err)
	}
	if f.rec.errors != 2 {
		t.Fatalf("expected 2 failed proposals recorded, got %d", f.rec.errors)
	}
	if f.planner.Snapshot().Proposal != nil {
		t.Fatal("failed proposals must not change state")
	}
}

func TestSelectSlot(t *testing.T) {
	f := newFixture()
	f.calendar.busy = []slots.BusyInterval{{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}}
	prop, err := f.planner.Propose(context.Background(), slots.DaysFrom(day, 1))
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}

	if _, err := f.planner.SelectSlot(prop.Slots[0].ID); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for the 09:00 slot, got %v", err)
	}
	if _, err := f.planner.SelectSlot("nope"); !errors.Is(err, ErrUnknownSlot) {
		t.Fatalf("expected ErrUnknownSlot, got %v", err)
	}

	free := slots.Available(prop.Slots)[0]
	got, err := f.planner.SelectSlot(free.ID)
	if err != nil {
		t.Fatalf("SelectSlot returned error: %v", err)
	}
	if !got.Start().Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("expected the 10:00 slot, got %s", got.Start())
	}
	if snap := f.planner.Snapshot(); snap.Selected == nil || snap.Custom {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCustomSlotAndConfirm(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.planner.SelectActivity(ctx, "1"); err != nil {
		t.Fatalf("SelectActivity returned error: %v", err)
	}

	if _, err := f.planner.CustomSlot(slots.CivilDate{Year: 2024, Month: 1, Day: 1}, slots.CivilTime{Hour: 14}, 0); !errors.Is(err, slots.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}

	s, err := f.planner.CustomSlot(slots.CivilDate{Year: 2024, Month: 1, Day: 1}, slots.CivilTime{Hour: 14}, 90)
	if err != nil {
		t.Fatalf("CustomSlot returned error: %v", err)
	}
	if !s.End().Equal(day.Add(15*time.Hour + 30*time.Minute)) {
		t.Fatalf("unexpected custom slot end %s", s.End())
	}
	if !f.planner.Snapshot().Custom {
		t.Fatal("snapshot should flag a custom selection")
	}

	ev, err := f.planner.Confirm(ctx, ConfirmRequest{
		Attendees: []model.Attendee{{Name: "Ana", Email: "ana@example.com"}},
	})
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if ev.Title != "Coffee Chat" || ev.Location != "Local Coffee Shop" || ev.ActivityID != "1" || !ev.Confirmed {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(f.writer.events) != 1 || len(f.store.history) != 1 || f.rec.confirmed != 1 {
		t.Fatalf("event should be written and recorded once: %d %d %d", len(f.writer.events), len(f.store.history), f.rec.confirmed)
	}
	if snap := f.planner.Snapshot(); snap.Activity != nil || snap.Selected != nil {
		t.Fatalf("Confirm should reset the session, got %+v", snap)
	}
	if _, err := f.planner.Confirm(ctx, ConfirmRequest{}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
}

func TestConfirmWriteFailureKeepsSelection(t *testing.T) {
	f := newFixture()
	f.writer.err = errors.New("disk full")
	if _, err := f.planner.CustomSlot(slots.CivilDate{Year: 2024, Month: 1, Day: 1}, slots.CivilTime{Hour: 9}, 30); err != nil {
		t.Fatalf("CustomSlot returned error: %v", err)
	}
	if _, err := f.planner.Confirm(context.Background(), ConfirmRequest{Title: "x"}); err == nil {
		t.Fatal("expected write error")
	}
	if f.planner.Snapshot().Selected == nil {
		t.Fatal("selection must survive a failed confirm")
	}
	if len(f.store.history) != 0 {
		t.Fatal("history must not record a failed confirm")
	}
}

func TestSelectActivityUnknown(t *testing.T) {
	f := newFixture()
	if _, err := f.planner.SelectActivity(context.Background(), "missing"); !errors.Is(err, ErrUnknownActivity) {
		t.Fatalf("expected ErrUnknownActivity, got %v", err)
	}
}

func TestActivitiesAppendsCustom(t *testing.T) {
	f := newFixture()
	f.store.custom = []model.Activity{{ID: "c1", Title: "Pottery", DurationMinutes: 120, Custom: true}}
	acts, err := f.planner.Activities(context.Background())
	if err != nil {
		t.Fatalf("Activities returned error: %v", err)
	}
	if len(acts) != 9 || acts[8].ID != "c1" {
		t.Fatalf("expected custom activity last, got %d activities", len(acts))
	}
	if _, err := f.planner.SelectActivity(context.Background(), "c1"); err != nil {
		t.Fatalf("custom activities should be selectable: %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture()
	updates, cancel := f.planner.Subscribe()

	if _, err := f.planner.SelectActivity(context.Background(), "1"); err != nil {
		t.Fatalf("SelectActivity returned error: %v", err)
	}
	f.planner.Reset()

	select {
	case u := <-updates:
		if u.Kind != UpdateActivity || u.Snapshot.Activity == nil || u.Snapshot.Activity.ID != "1" {
			t.Fatalf("unexpected first update %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
	if u := <-updates; u.Kind != UpdateReset || u.Snapshot.Activity != nil {
		t.Fatalf("unexpected second update %+v", u)
	}

	cancel()
	cancel()
	if _, ok := <-updates; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	f.planner.Reset()
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	f := newFixture()
	_, cancel := f.planner.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			f.planner.Reset()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a full subscriber")
	}
}

func TestProposeDiscardedWhenSessionChanges(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		change func(t *testing.T, p *Planner)
	}{
		{"other activity", func(t *testing.T, p *Planner) {
			if _, err := p.SelectActivity(ctx, "2"); err != nil {
				t.Fatalf("SelectActivity returned error: %v", err)
			}
		}},
		{"reset", func(t *testing.T, p *Planner) {
			p.Reset()
		}},
		{"switch away and back", func(t *testing.T, p *Planner) {
			for _, id := range []string{"2", "1"} {
				if _, err := p.SelectActivity(ctx, id); err != nil {
					t.Fatalf("SelectActivity(%s) returned error: %v", id, err)
				}
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if _, err := f.planner.SelectActivity(ctx, "1"); err != nil {
				t.Fatalf("SelectActivity returned error: %v", err)
			}
			f.calendar.during = func() {
				f.calendar.during = nil
				tt.change(t, f.planner)
			}

			_, err := f.planner.Propose(ctx, slots.DaysFrom(day, 1))
			if !errors.Is(err, ErrSessionChanged) {
				t.Fatalf("expected ErrSessionChanged, got %v", err)
			}
			if snap := f.planner.Snapshot(); snap.Proposal != nil {
				t.Fatalf("stale proposal kept: %+v", snap.Proposal)
			}
		})
	}
}

func TestConfirmKeepsSelectionMadeDuringWrite(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.planner.CustomSlot(slots.CivilDate{Year: 2024, Month: time.January, Day: 1}, slots.CivilTime{Hour: 10}, 30)
	if err != nil {
		t.Fatalf("CustomSlot returned error: %v", err)
	}
	var second slots.Slot
	f.writer.during = func() {
		f.writer.during = nil
		second, err = f.planner.CustomSlot(slots.CivilDate{Year: 2024, Month: time.January, Day: 1}, slots.CivilTime{Hour: 15}, 30)
		if err != nil {
			t.Fatalf("CustomSlot returned error: %v", err)
		}
	}

	ev, err := f.planner.Confirm(ctx, ConfirmRequest{Title: "Call"})
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if !ev.Start.Equal(first.Start()) {
		t.Fatalf("confirmed %v, want %v", ev.Start, first.Start())
	}
	snap := f.planner.Snapshot()
	if snap.Selected == nil || snap.Selected.ID != second.ID {
		t.Fatalf("selection made during the write was dropped: %+v", snap.Selected)
	}
}
