package model

import "time"

// GroupColor is the accent a group is shown with.
type GroupColor string

const (
	GroupBlue   GroupColor = "blue"
	GroupGreen  GroupColor = "green"
	GroupOrange GroupColor = "orange"
	GroupPurple GroupColor = "purple"
	GroupPink   GroupColor = "pink"
	GroupTeal   GroupColor = "teal"
)

var groupColorHex = map[GroupColor]string{
	GroupBlue:   "#007AFF",
	GroupGreen:  "#34C759",
	GroupOrange: "#FF9500",
	GroupPurple: "#AF52DE",
	GroupPink:   "#FF2D55",
	GroupTeal:   "#5AC8FA",
}

// Hex returns the RGB hex for c; unknown colors render blue.
func (c GroupColor) Hex() string {
	if h, ok := groupColorHex[c]; ok {
		return h
	}
	return groupColorHex[GroupBlue]
}

// GroupMember is someone who can be invited as part of a group.
type GroupMember struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Email       string    `yaml:"email,omitempty" json:"email,omitempty"`
	PhoneNumber string    `yaml:"phone_number,omitempty" json:"phone_number,omitempty"`
	IsAdmin     bool      `yaml:"is_admin" json:"is_admin"`
	JoinedAt    time.Time `yaml:"joined_at" json:"joined_at"`
}

// Group is a saved list of invitees.
type Group struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Members     []GroupMember `yaml:"members" json:"members"`
	Color       GroupColor    `yaml:"color" json:"color"`
	CreatedAt   time.Time     `yaml:"created_at" json:"created_at"`
	IsActive    bool          `yaml:"is_active" json:"is_active"`
}

// Attendees converts the members into event attendees.
func (g Group) Attendees() []Attendee {
	out := make([]Attendee, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, Attendee{ID: m.ID, Name: m.Name, Email: m.Email})
	}
	return out
}
