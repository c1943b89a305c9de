package model

import (
	"strings"
	"time"

	"timely/internal/slots"
)

// Occurrence represents a single concrete instance of a calendar event
// (after recurrence expansion and timezone normalization). Occurrences are
// what the calendar provider turns into busy time.
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string

	Summary  string
	Location string

	AllDay bool
	// Transparent events (TRANSP:TRANSPARENT) do not block time.
	Transparent bool
	// Cancelled mirrors STATUS:CANCELLED.
	Cancelled bool

	// Start / End are in the configured civil location.
	Start time.Time
	End   time.Time
}

// Blocks reports whether the occurrence counts as busy time.
func (o Occurrence) Blocks() bool {
	return !o.Transparent && !o.Cancelled && o.Start.Before(o.End)
}

// Busy returns the occurrence as a busy interval.
func (o Occurrence) Busy() slots.BusyInterval {
	return slots.BusyInterval{Start: o.Start, End: o.End}
}

// Attendee is an invitee of a confirmed event.
type Attendee struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
}

// Event is a confirmed plan written to the user's calendar and history.
type Event struct {
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	ActivityID  string     `yaml:"activity_id,omitempty" json:"activity_id,omitempty"`
	Start       time.Time  `yaml:"start" json:"start"`
	End         time.Time  `yaml:"end" json:"end"`
	Location    string     `yaml:"location,omitempty" json:"location,omitempty"`
	Attendees   []Attendee `yaml:"attendees,omitempty" json:"attendees,omitempty"`
	Confirmed   bool       `yaml:"confirmed" json:"confirmed"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
}

// AttendeeEmails returns the non-empty attendee email addresses in order.
func (e Event) AttendeeEmails() []string {
	out := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if email := strings.TrimSpace(a.Email); email != "" {
			out = append(out, email)
		}
	}
	return out
}

// Notes is the description with an "Attendees:" line appended when there
// are attendee emails.
func (e Event) Notes() string {
	emails := e.AttendeeEmails()
	if len(emails) == 0 {
		return e.Description
	}
	line := "Attendees: " + strings.Join(emails, ", ")
	if e.Description == "" {
		return line
	}
	return e.Description + "\n\n" + line
}
