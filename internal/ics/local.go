package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"timely/internal/config"
	appLog "timely/internal/log"
	"timely/internal/model"
)

// LocalSourceID identifies the local calendar in occurrences and logs.
const LocalSourceID = "local"

// LocalCalendar is an ICS file that confirmed events are appended to. It is
// also read back as a busy-time source and can be subscribed to.
type LocalCalendar struct {
	path string
	mu   sync.Mutex
}

func NewLocalCalendar(path string) *LocalCalendar {
	return &LocalCalendar{path: path}
}

// Source describes the local calendar as an ICS source.
func (l *LocalCalendar) Source() Source {
	return Source{ID: LocalSourceID, URL: "file://" + l.path}
}

// Body returns the raw ICS file. A missing file yields nil, nil.
func (l *LocalCalendar) Body() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked()
}

func (l *LocalCalendar) readLocked() ([]byte, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// CreateEvent appends ev as a confirmed, opaque VEVENT. Attendees are added
// as ATTENDEE properties and listed in the description.
func (l *LocalCalendar) CreateEvent(ctx context.Context, ev model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ev.Start.Before(ev.End) {
		return fmt.Errorf("event %q: start must be before end", ev.Title)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cal, err := l.loadLocked()
	if err != nil {
		return err
	}

	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	vev := cal.AddEvent(id)
	vev.SetCreatedTime(created)
	vev.SetDtStampTime(created)
	vev.SetStartAt(ev.Start)
	vev.SetEndAt(ev.End)
	vev.SetSummary(ev.Title)
	if ev.Location != "" {
		vev.SetLocation(ev.Location)
	}
	if notes := ev.Notes(); notes != "" {
		vev.SetDescription(notes)
	}
	for _, a := range ev.Attendees {
		if a.Email == "" {
			continue
		}
		if a.Name != "" {
			vev.AddAttendee(a.Email, ical.WithCN(a.Name), ical.ParticipationStatusNeedsAction)
		} else {
			vev.AddAttendee(a.Email, ical.ParticipationStatusNeedsAction)
		}
	}
	vev.SetStatus(ical.ObjectStatusConfirmed)
	vev.SetTimeTransparency(ical.TransparencyOpaque)

	if err := config.WriteFileAtomic(l.path, []byte(cal.Serialize())); err != nil {
		return fmt.Errorf("write local calendar: %w", err)
	}
	appLog.Info("event written to local calendar", "id", id, "title", ev.Title, "attendees", len(ev.Attendees))
	return nil
}

func (l *LocalCalendar) loadLocked() (*ical.Calendar, error) {
	data, err := l.readLocked()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		cal := ical.NewCalendarFor("timely")
		cal.SetMethod(ical.MethodPublish)
		cal.SetXWRCalName("Timely")
		return cal, nil
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse local calendar: %w", err)
	}
	return cal, nil
}
