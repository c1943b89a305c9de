// Package store persists user preferences, event history, custom
// activities and invitee groups.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"timely/internal/model"
	"timely/internal/slots"
)

// HistoryLimit is the number of confirmed events kept; older ones are
// dropped first.
const HistoryLimit = 50

var (
	// ErrNotFound is returned when deleting something that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid wraps validation failures of stored values.
	ErrInvalid = errors.New("invalid value")
)

// Store is implemented by FileStore and RedisStore.
type Store interface {
	Preferences(ctx context.Context) (model.Preferences, error)
	SavePreferences(ctx context.Context, p model.Preferences) error

	AppendHistory(ctx context.Context, ev model.Event) error
	// History returns confirmed events, oldest first.
	History(ctx context.Context) ([]model.Event, error)

	CustomActivities(ctx context.Context) ([]model.Activity, error)
	SaveCustomActivity(ctx context.Context, a model.Activity) error

	Groups(ctx context.Context) ([]model.Group, error)
	SaveGroup(ctx context.Context, g model.Group) error
	DeleteGroup(ctx context.Context, id string) error

	LastActivity(ctx context.Context) (string, error)
	SetLastActivity(ctx context.Context, id string) error

	// Reset removes everything the store holds.
	Reset(ctx context.Context) error
	Close() error
}

// ValidatePreferences checks working hours and the default duration.
func ValidatePreferences(p model.Preferences) error {
	if err := p.WorkingHours.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if p.DefaultDuration <= 0 {
		return fmt.Errorf("%w: default duration %d must be positive", ErrInvalid, p.DefaultDuration)
	}
	if p.DefaultDuration > p.WorkingHours.WindowMinutes() {
		return fmt.Errorf("%w: default duration %d exceeds the %d minute working day",
			ErrInvalid, p.DefaultDuration, p.WorkingHours.WindowMinutes())
	}
	return nil
}

func validateActivity(a model.Activity) error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: activity needs an id and a title", ErrInvalid)
	}
	if a.DurationMinutes <= 0 {
		return fmt.Errorf("%w: activity duration %d must be positive", ErrInvalid, a.DurationMinutes)
	}
	return nil
}

func validateGroup(g model.Group) error {
	if strings.TrimSpace(g.ID) == "" || strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: group needs an id and a name", ErrInvalid)
	}
	return nil
}

// normalizePreferences fills zero values left by older stored data.
func normalizePreferences(p model.Preferences) model.Preferences {
	def := model.DefaultPreferences()
	if p.WorkingHours == (slots.WorkingHoursPolicy{}) {
		p.WorkingHours = def.WorkingHours
	}
	if p.DefaultDuration <= 0 {
		p.DefaultDuration = def.DefaultDuration
	}
	return p
}

func trimHistory(h []model.Event) []model.Event {
	if len(h) > HistoryLimit {
		h = h[len(h)-HistoryLimit:]
	}
	return h
}

func upsertActivity(list []model.Activity, a model.Activity) []model.Activity {
	a.Custom = true
	for i := range list {
		if list[i].ID == a.ID {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}

func upsertGroup(list []model.Group, g model.Group) []model.Group {
	for i := range list {
		if list[i].ID == g.ID {
			list[i] = g
			return list
		}
	}
	return append(list, g)
}

func removeGroup(list []model.Group, id string) ([]model.Group, bool) {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
