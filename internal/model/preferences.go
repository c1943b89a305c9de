package model

import "timely/internal/slots"

// Preferences are the user's saved planning defaults.
type Preferences struct {
	WorkingHours    slots.WorkingHoursPolicy `yaml:"working_hours" json:"working_hours"`
	DefaultDuration int                      `yaml:"default_duration" json:"default_duration"`
	ShowHistory     bool                     `yaml:"show_history" json:"show_history"`
}

// DefaultPreferences is 09:00-18:00, 60 minutes, history shown.
func DefaultPreferences() Preferences {
	return Preferences{
		WorkingHours:    slots.DefaultWorkingHours(),
		DefaultDuration: slots.DefaultDurationMinutes,
		ShowHistory:     true,
	}
}
