package web

import (
	"time"

	"timely/internal/model"
	"timely/internal/planner"
	"timely/internal/slots"
)

type slotDTO struct {
	ID        string    `json:"id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Minutes   int       `json:"minutes"`
	Available bool      `json:"available"`
}

func toSlotDTO(s slots.Slot) slotDTO {
	return slotDTO{ID: s.ID, Start: s.Start(), End: s.End(), Minutes: s.Minutes(), Available: s.Available}
}

type proposalResponse struct {
	ActivityID      string    `json:"activity_id,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	RangeStart      time.Time `json:"range_start"`
	RangeEnd        time.Time `json:"range_end"`
	GeneratedAt     time.Time `json:"generated_at"`
	Total           int       `json:"total"`
	AvailableCount  int       `json:"available_count"`
	Slots           []slotDTO `json:"slots"`
}

func toProposalResponse(p planner.Proposal, onlyAvailable bool) proposalResponse {
	resp := proposalResponse{
		ActivityID:      p.ActivityID,
		DurationMinutes: p.DurationMinutes,
		RangeStart:      p.Range.Start,
		RangeEnd:        p.Range.End,
		GeneratedAt:     p.GeneratedAt,
		Total:           len(p.Slots),
		Slots:           make([]slotDTO, 0, len(p.Slots)),
	}
	for _, s := range p.Slots {
		if s.Available {
			resp.AvailableCount++
		} else if onlyAvailable {
			continue
		}
		resp.Slots = append(resp.Slots, toSlotDTO(s))
	}
	return resp
}

type busyDTO struct {
	SourceID string    `json:"source_id"`
	Summary  string    `json:"summary"`
	AllDay   bool      `json:"all_day"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	// Free is set for cancelled or transparent occurrences, which are only
	// listed with all=1.
	Free bool `json:"free,omitempty"`
}

type busyResponse struct {
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
	Timezone   string    `json:"timezone"`
	Busy       []busyDTO `json:"busy"`
}

// selectionResponse is the session state without the slot list.
type selectionResponse struct {
	Activity       *model.Activity `json:"activity"`
	ProposalSlots  int             `json:"proposal_slots"`
	ProposalRange  []time.Time     `json:"proposal_range,omitempty"`
	Selected       *slotDTO        `json:"selected"`
	Custom         bool            `json:"custom"`
	ConfirmedEvent *model.Event    `json:"confirmed_event,omitempty"`
}

func toSelectionResponse(snap planner.Snapshot) selectionResponse {
	resp := selectionResponse{Activity: snap.Activity, Custom: snap.Custom}
	if snap.Proposal != nil {
		resp.ProposalSlots = len(snap.Proposal.Slots)
		resp.ProposalRange = []time.Time{snap.Proposal.Range.Start, snap.Proposal.Range.End}
	}
	if snap.Selected != nil {
		d := toSlotDTO(*snap.Selected)
		resp.Selected = &d
	}
	return resp
}

type activityRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	DurationMinutes int      `json:"duration_minutes"`
	SuggestedTimes  []string `json:"suggested_times"`
	Location        string   `json:"location"`
	Emoji           string   `json:"emoji"`
}

type customSlotRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
	// DurationMinutes defaults to the current activity's duration, then
	// the preference default, when omitted.
	DurationMinutes *int `json:"duration_minutes"`
}

type selectRequest struct {
	SlotID string `json:"slot_id"`
}

type attendeeDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type confirmRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	Attendees   []attendeeDTO `json:"attendees"`
	// GroupID adds the group's members as attendees.
	GroupID string `json:"group_id"`
}

type memberRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	IsAdmin     bool   `json:"is_admin"`
}

type groupRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	Members     []memberRequest `json:"members"`
}

// groupDTO adds the display color to a stored group.
type groupDTO struct {
	model.Group
	ColorHex string `json:"color_hex"`
}

func toGroupDTOs(groups []model.Group) []groupDTO {
	out := make([]groupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupDTO{Group: g, ColorHex: g.Color.Hex()})
	}
	return out
}
