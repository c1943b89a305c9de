package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"timely/internal/config"
	"timely/internal/model"
)

type fileState struct {
	Preferences      *model.Preferences `yaml:"preferences,omitempty"`
	History          []model.Event      `yaml:"history,omitempty"`
	CustomActivities []model.Activity   `yaml:"custom_activities,omitempty"`
	Groups           []model.Group      `yaml:"groups,omitempty"`
	LastActivity     string             `yaml:"last_activity,omitempty"`
}

// FileStore keeps everything in a single YAML document, rewritten
// atomically on every change.
type FileStore struct {
	path string

	mu    sync.Mutex
	state fileState
}

// OpenFile loads path, or starts empty if it does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) saveLocked() error {
	data, err := yaml.Marshal(&s.state)
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(s.path, data)
}

// mutate applies fn and persists; the in-memory state is rolled back if
// either fails.
func (s *FileStore) mutate(fn func(st *fileState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if err := fn(&s.state); err != nil {
		s.state = prev
		return err
	}
	if err := s.saveLocked(); err != nil {
		s.state = prev
		return err
	}
	return nil
}

func (s *FileStore) Preferences(ctx context.Context) (model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Preferences == nil {
		return model.DefaultPreferences(), nil
	}
	return normalizePreferences(*s.state.Preferences), nil
}

func (s *FileStore) SavePreferences(ctx context.Context, p model.Preferences) error {
	if err := ValidatePreferences(p); err != nil {
		return err
	}
	return s.mutate(func(st *fileState) error {
		st.Preferences = &p
		return nil
	})
}

func (s *FileStore) AppendHistory(ctx context.Context, ev model.Event) error {
	return s.mutate(func(st *fileState) error {
		h := make([]model.Event, 0, len(st.History)+1)
		h = append(h, st.History...)
		st.History = trimHistory(append(h, ev))
		return nil
	})
}

func (s *FileStore) History(ctx context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event{}, s.state.History...), nil
}

func (s *FileStore) CustomActivities(ctx context.Context) ([]model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Activity{}, s.state.CustomActivities...), nil
}

func (s *FileStore) SaveCustomActivity(ctx context.Context, a model.Activity) error {
	if err := validateActivity(a); err != nil {
		return err
	}
	return s.mutate(func(st *fileState) error {
		list := append([]model.Activity{}, st.CustomActivities...)
		st.CustomActivities = upsertActivity(list, a)
		return nil
	})
}

func (s *FileStore) Groups(ctx context.Context) ([]model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Group{}, s.state.Groups...), nil
}

func (s *FileStore) SaveGroup(ctx context.Context, g model.Group) error {
	if err := validateGroup(g); err != nil {
		return err
	}
	return s.mutate(func(st *fileState) error {
		list := append([]model.Group{}, st.Groups...)
		st.Groups = upsertGroup(list, g)
		return nil
	})
}

func (s *FileStore) DeleteGroup(ctx context.Context, id string) error {
	return s.mutate(func(st *fileState) error {
		list, ok := removeGroup(append([]model.Group{}, st.Groups...), id)
		if !ok {
			return ErrNotFound
		}
		st.Groups = list
		return nil
	})
}

func (s *FileStore) LastActivity(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastActivity, nil
}

func (s *FileStore) SetLastActivity(ctx context.Context, id string) error {
	return s.mutate(func(st *fileState) error {
		st.LastActivity = id
		return nil
	})
}

func (s *FileStore) Reset(ctx context.Context) error {
	return s.mutate(func(st *fileState) error {
		*st = fileState{}
		return nil
	})
}

func (s *FileStore) Close() error { return nil }
