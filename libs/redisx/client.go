package redisx

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/carejournal/libs/config"
	"github.com/redis/go-redis/v9"
)

// FromEnv builds a client from REDIS_ADDR, REDIS_PASSWORD and REDIS_DB. It
// returns nil when REDIS_ADDR is unset.
func FromEnv() (*redis.Client, error) {
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}
	db, err := config.Int("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	if db < 0 {
		return nil, errors.New("REDIS_DB must not be negative")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       db,
	}), nil
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
