// Package planner drives one planning session: pick an activity, propose
// slots against the user's busy time, select or enter a slot, confirm.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "timely/internal/log"
	"timely/internal/model"
	"timely/internal/slots"
)

var (
	ErrUnknownActivity = errors.New("unknown activity")
	ErrUnknownSlot     = errors.New("slot is not part of the current proposal")
	ErrSlotUnavailable = errors.New("slot is not available")
	ErrNoSelection     = errors.New("no slot selected")
	// ErrSessionChanged means the activity changed while a proposal was
	// being computed; the result was discarded.
	ErrSessionChanged = errors.New("planning session changed")
)

// CalendarProvider reports busy time. It may fail with ics.ErrAccessDenied.
type CalendarProvider interface {
	BusyIntervals(ctx context.Context, rng slots.DateRange) ([]slots.BusyInterval, error)
}

// CalendarWriter stores confirmed events.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, ev model.Event) error
}

// ActivityCatalog lists activity templates.
type ActivityCatalog interface {
	Activities(ctx context.Context) ([]model.Activity, error)
}

// PreferenceStore is the part of store.Store the planner needs.
type PreferenceStore interface {
	Preferences(ctx context.Context) (model.Preferences, error)
	CustomActivities(ctx context.Context) ([]model.Activity, error)
	AppendHistory(ctx context.Context, ev model.Event) error
	SetLastActivity(ctx context.Context, id string) error
}

// Recorder receives proposal and confirmation counts.
type Recorder interface {
	ObserveProposal(generated, unavailable int)
	ObserveProposalError()
	ObserveConfirmed()
}

type nopRecorder struct{}

func (nopRecorder) ObserveProposal(int, int) {}
func (nopRecorder) ObserveProposalError()    {}
func (nopRecorder) ObserveConfirmed()        {}

// Options wires a Planner. Calendar, Writer, Catalog and Store are required.
type Options struct {
	Calendar CalendarProvider
	Writer   CalendarWriter
	Catalog  ActivityCatalog
	Store    PreferenceStore
	Metrics  Recorder

	// Location is the civil zone custom slots are interpreted in.
	Location *time.Location
	// Cadence in minutes between candidate starts; 0 means 15.
	Cadence int
	Now     func() time.Time
}

// Proposal is the result of the last Propose call.
type Proposal struct {
	ActivityID      string          `json:"activity_id,omitempty"`
	Range           slots.DateRange `json:"-"`
	DurationMinutes int             `json:"duration_minutes"`
	Slots           []slots.Slot    `json:"-"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Activity *model.Activity
	Proposal *Proposal
	Selected *slots.Slot
	// Custom is true when Selected came from CustomSlot.
	Custom bool
}

// ConfirmRequest carries what the user adds when confirming.
type ConfirmRequest struct {
	Title       string
	Description string
	Location    string
	Attendees   []model.Attendee
}

// Planner holds the session state behind a mutex; all collaborators are
// called outside the lock.
type Planner struct {
	opts Options

	mu       sync.Mutex
	activity *model.Activity
	proposal *Proposal
	selected *slots.Slot
	custom   bool
	// session changes whenever the activity is chosen or the session is
	// reset. A proposal computed across a change is discarded.
	session uint64

	bus *bus
}

func New(opts Options) *Planner {
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Cadence <= 0 {
		opts.Cadence = slots.DefaultCadenceMinutes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Planner{opts: opts, bus: newBus()}
}

// Activities returns the catalog followed by the user's custom activities.
func (p *Planner) Activities(ctx context.Context) ([]model.Activity, error) {
	acts, err := p.opts.Catalog.Activities(ctx)
	if err != nil {
		return nil, err
	}
	custom, err := p.opts.Store.CustomActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("custom activities: %w", err)
	}
	out := make([]model.Activity, 0, len(acts)+len(custom))
	out = append(out, acts...)
	return append(out, custom...), nil
}

// SelectActivity makes id the current activity and drops any proposal or
// selection made for the previous one.
func (p *Planner) SelectActivity(ctx context.Context, id string) (model.Activity, error) {
	acts, err := p.Activities(ctx)
	if err != nil {
		return model.Activity{}, err
	}
	var found *model.Activity
	for i := range acts {
		if acts[i].ID == id {
			found = &acts[i]
			break
		}
	}
	if found == nil {
		return model.Activity{}, fmt.Errorf("%w: %s", ErrUnknownActivity, id)
	}

	if err := p.opts.Store.SetLastActivity(ctx, id); err != nil {
		appLog.Warn("failed to remember last activity", "id", id, "reason", err.Error())
	}

	p.mu.Lock()
	a := *found
	p.activity = &a
	p.session++
	p.proposal = nil
	p.selected = nil
	p.custom = false
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.bus.publish(Update{Kind: UpdateActivity, Snapshot: snap})
	return a, nil
}

// Propose generates the slot grid for rng and marks slots that collide
// with busy time. The duration comes from the current activity, else the
// preference default.
func (p *Planner) Propose(ctx context.Context, rng slots.DateRange) (Proposal, error) {
	prop, err := p.propose(ctx, rng)
	if err != nil {
		p.opts.Metrics.ObserveProposalError()
		return Proposal{}, err
	}
	return prop, nil
}

func (p *Planner) propose(ctx context.Context, rng slots.DateRange) (Proposal, error) {
	if err := rng.Validate(); err != nil {
		return Proposal{}, err
	}
	prefs, err := p.opts.Store.Preferences(ctx)
	if err != nil {
		return Proposal{}, fmt.Errorf("preferences: %w", err)
	}

	p.mu.Lock()
	session := p.session
	var activityID string
	duration := prefs.DefaultDuration
	if p.activity != nil {
		activityID = p.activity.ID
		if p.activity.DurationMinutes > 0 {
			duration = p.activity.DurationMinutes
		}
	}
	p.mu.Unlock()

	generated, err := slots.Generate(rng, prefs.WorkingHours, duration, p.opts.Cadence)
	if err != nil {
		return Proposal{}, err
	}
	busy, err := p.opts.Calendar.BusyIntervals(ctx, rng)
	if err != nil {
		return Proposal{}, fmt.Errorf("busy time: %w", err)
	}
	resolved := slots.Resolve(generated, busy)

	unavailable := len(resolved) - len(slots.Available(resolved))
	p.opts.Metrics.ObserveProposal(len(resolved), unavailable)

	prop := Proposal{
		ActivityID:      activityID,
		Range:           rng,
		DurationMinutes: duration,
		Slots:           resolved,
		GeneratedAt:     p.opts.Now(),
	}

	p.mu.Lock()
	if p.session != session {
		p.mu.Unlock()
		return Proposal{}, ErrSessionChanged
	}
	stored := prop
	stored.Slots = append([]slots.Slot(nil), resolved...)
	p.proposal = &stored
	p.selected = nil
	p.custom = false
	snap := p.snapshotLocked()
	p.mu.Unlock()

	appLog.Debug("proposal generated", "activity", activityID, "slots", len(resolved), "unavailable", unavailable)
	p.bus.publish(Update{Kind: UpdateProposal, Snapshot: snap})
	return prop, nil
}

// SelectSlot selects an available slot of the current proposal.
func (p *Planner) SelectSlot(id string) (slots.Slot, error) {
	p.mu.Lock()
	if p.proposal == nil {
		p.mu.Unlock()
		return slots.Slot{}, fmt.Errorf("%w: %s", ErrUnknownSlot, id)
	}
	var found *slots.Slot
	for i := range p.proposal.Slots {
		if p.proposal.Slots[i].ID == id {
			found = &p.proposal.Slots[i]
			break
		}
	}
	if found == nil {
		p.mu.Unlock()
		return slots.Slot{}, fmt.Errorf("%w: %s", ErrUnknownSlot, id)
	}
	if !found.Available {
		p.mu.Unlock()
		return slots.Slot{}, fmt.Errorf("%w: %s", ErrSlotUnavailable, id)
	}
	s := *found
	p.selected = &s
	p.custom = false
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.bus.publish(Update{Kind: UpdateSelection, Snapshot: snap})
	return s, nil
}

// CustomSlot validates a user-entered start and duration and makes it the
// selection. It is not checked against busy time.
func (p *Planner) CustomSlot(date slots.CivilDate, start slots.CivilTime, durationMinutes int) (slots.Slot, error) {
	s, err := slots.ValidateCustom(date, start, durationMinutes, p.opts.Location)
	if err != nil {
		return slots.Slot{}, err
	}

	p.mu.Lock()
	p.selected = &s
	p.custom = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.bus.publish(Update{Kind: UpdateSelection, Snapshot: snap})
	return s, nil
}

// ClearSelection drops the selected slot but keeps the proposal.
func (p *Planner) ClearSelection() {
	p.mu.Lock()
	p.selected = nil
	p.custom = false
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.bus.publish(Update{Kind: UpdateSelection, Snapshot: snap})
}

// Confirm writes the selected slot to the calendar and history, then
// resets the session unless another slot was selected meanwhile. An empty
// title falls back to the activity title.
func (p *Planner) Confirm(ctx context.Context, req ConfirmRequest) (model.Event, error) {
	p.mu.Lock()
	if p.selected == nil {
		p.mu.Unlock()
		return model.Event{}, ErrNoSelection
	}
	sel := *p.selected
	var act model.Activity
	if p.activity != nil {
		act = *p.activity
	}
	p.mu.Unlock()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = act.Title
	}
	if title == "" {
		title = "Untitled Event"
	}
	location := req.Location
	if location == "" {
		location = act.Location
	}

	ev := model.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Description: req.Description,
		ActivityID:  act.ID,
		Start:       sel.Start(),
		End:         sel.End(),
		Location:    location,
		Attendees:   req.Attendees,
		Confirmed:   true,
		CreatedAt:   p.opts.Now(),
	}

	if err := p.opts.Writer.CreateEvent(ctx, ev); err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	if err := p.opts.Store.AppendHistory(ctx, ev); err != nil {
		// The event exists in the calendar; history is best effort.
		appLog.Error("failed to record event history", err, "id", ev.ID)
	}
	p.opts.Metrics.ObserveConfirmed()

	p.mu.Lock()
	// A slot picked while the event was being written is left alone.
	if p.selected != nil && p.selected.ID == sel.ID {
		p.resetLocked()
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	appLog.Info("event confirmed", "id", ev.ID, "title", ev.Title, "start", ev.Start.Format(time.RFC3339))
	p.bus.publish(Update{Kind: UpdateConfirmed, Snapshot: snap, Event: &ev})
	return ev, nil
}

// Reset returns to the initial state.
func (p *Planner) Reset() {
	p.mu.Lock()
	p.resetLocked()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.bus.publish(Update{Kind: UpdateReset, Snapshot: snap})
}

func (p *Planner) resetLocked() {
	p.session++
	p.activity = nil
	p.proposal = nil
	p.selected = nil
	p.custom = false
}

// Snapshot returns a copy of the current state.
func (p *Planner) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Planner) snapshotLocked() Snapshot {
	var snap Snapshot
	if p.activity != nil {
		a := *p.activity
		snap.Activity = &a
	}
	if p.proposal != nil {
		prop := *p.proposal
		prop.Slots = append([]slots.Slot(nil), p.proposal.Slots...)
		snap.Proposal = &prop
	}
	if p.selected != nil {
		s := *p.selected
		snap.Selected = &s
	}
	snap.Custom = p.custom
	return snap
}

// Subscribe returns a channel of state changes and a func that stops the
// subscription and closes the channel. Slow subscribers miss updates
// rather than block the planner.
func (p *Planner) Subscribe() (<-chan Update, func()) {
	return p.bus.subscribe()
}
