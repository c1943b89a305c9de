package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "timely/internal/log"
	"timely/internal/model"
)

// Key suffixes under the configured prefix.
const (
	keyPreferences  = "preferences"
	keyHistory      = "history"        // list of JSON events, oldest first
	keyActivities   = "activities"     // hash id -> JSON activity
	keyActivityList = "activity_order" // zset id scored by first save
	keyActivitySeq  = "activity_seq"
	keyGroups       = "groups" // hash id -> JSON group
	keyLastActivity = "last_activity"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "timely:".
	Prefix string
}

// RedisStore keeps state in Redis as JSON values, so several instances
// can share one user's data.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}

	appLog.Info("redis store initialized", "addr", cfg.Addr, "db", cfg.DB)
	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

func (s *RedisStore) key(name string) string { return s.prefix + name }

func (s *RedisStore) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisStore) Preferences(ctx context.Context) (model.Preferences, error) {
	var p model.Preferences
	ok, err := s.getJSON(ctx, s.key(keyPreferences), &p)
	if err != nil {
		return model.Preferences{}, err
	}
	if !ok {
		return model.DefaultPreferences(), nil
	}
	return normalizePreferences(p), nil
}

func (s *RedisStore) SavePreferences(ctx context.Context, p model.Preferences) error {
	if err := ValidatePreferences(p); err != nil {
		return err
	}
	return s.setJSON(ctx, s.key(keyPreferences), p)
}

func (s *RedisStore) AppendHistory(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key(keyHistory), data)
		pipe.LTrim(ctx, s.key(keyHistory), -HistoryLimit, -1)
		return nil
	})
	return err
}

func (s *RedisStore) History(ctx context.Context) ([]model.Event, error) {
	raw, err := s.client.LRange(ctx, s.key(keyHistory), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(raw))
	for _, r := range raw {
		var ev model.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			appLog.Warn("skipping unreadable history entry", "reason", err.Error())
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisStore) CustomActivities(ctx context.Context) ([]model.Activity, error) {
	raw, err := s.client.HGetAll(ctx, s.key(keyActivities)).Result()
	if err != nil {
		return nil, err
	}
	ids, err := s.client.ZRange(ctx, s.key(keyActivityList), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Activity, 0, len(raw))
	for _, id := range ids {
		r, ok := raw[id]
		if !ok {
			continue
		}
		var a model.Activity
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			appLog.Warn("skipping unreadable activity", "id", id, "reason", err.Error())
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *RedisStore) SaveCustomActivity(ctx context.Context, a model.Activity) error {
	if err := validateActivity(a); err != nil {
		return err
	}
	a.Custom = true
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	seq, err := s.client.Incr(ctx, s.key(keyActivitySeq)).Result()
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(keyActivities), a.ID, data)
		// NX keeps the first score, so updates do not reorder.
		pipe.ZAddNX(ctx, s.key(keyActivityList), redis.Z{Score: float64(seq), Member: a.ID})
		return nil
	})
	return err
}

func (s *RedisStore) Groups(ctx context.Context) ([]model.Group, error) {
	raw, err := s.client.HGetAll(ctx, s.key(keyGroups)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Group, 0, len(raw))
	for id, r := range raw {
		var g model.Group
		if err := json.Unmarshal([]byte(r), &g); err != nil {
			appLog.Warn("skipping unreadable group", "id", id, "reason", err.Error())
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *RedisStore) SaveGroup(ctx context.Context, g model.Group) error {
	if err := validateGroup(g); err != nil {
		return err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key(keyGroups), g.ID, data).Err()
}

func (s *RedisStore) DeleteGroup(ctx context.Context, id string) error {
	n, err := s.client.HDel(ctx, s.key(keyGroups), id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) LastActivity(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key(keyLastActivity)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisStore) SetLastActivity(ctx context.Context, id string) error {
	if id == "" {
		return s.client.Del(ctx, s.key(keyLastActivity)).Err()
	}
	return s.client.Set(ctx, s.key(keyLastActivity), id, 0).Err()
}

func (s *RedisStore) Reset(ctx context.Context) error {
	return s.client.Del(ctx,
		s.key(keyPreferences),
		s.key(keyHistory),
		s.key(keyActivities),
		s.key(keyActivityList),
		s.key(keyActivitySeq),
		s.key(keyGroups),
		s.key(keyLastActivity),
	).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
