package store

import (
	"context"

	"timely/internal/config"
)

// Open builds the backend selected in cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if cfg.Backend == "redis" {
		s, err := OpenRedis(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := OpenFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
