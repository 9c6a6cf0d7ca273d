package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/wizard"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots as JSON strings under prefix+id with a sliding TTL.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "booking:session:"
	}
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Create(ctx context.Context, snap wizard.Snapshot) (string, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, s.key(id), raw, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("create session: id collision")
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (wizard.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return wizard.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return wizard.Snapshot{}, fmt.Errorf("load session: %w", err)
	}
	var snap wizard.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return wizard.Snapshot{}, fmt.Errorf("decode session: %w", err)
	}
	return snap, nil
}

// Save overwrites only keys that still exist, so an expired session is not
// resurrected by a late write.
func (s *RedisStore) Save(ctx context.Context, id string, snap wizard.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	err = s.rdb.SetArgs(ctx, s.key(id), raw, redis.SetArgs{Mode: "XX", TTL: s.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) ReadyCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
