package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisHeartbeatStore keeps the liveness timestamp under one key so an external
// collector can write it without touching the database.
type RedisHeartbeatStore struct {
	client *redis.Client
	key    string
}

func NewRedisHeartbeatStore(addr, key string) (*RedisHeartbeatStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if key == "" {
		key = "focuslog:heartbeat"
	}
	return &RedisHeartbeatStore{client: client, key: key}, nil
}

func (s *RedisHeartbeatStore) Close() error {
	return s.client.Close()
}

func (s *RedisHeartbeatStore) RecordHeartbeat(ctx context.Context, at time.Time) error {
	if err := s.client.Set(ctx, s.key, at.Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	return nil
}

func (s *RedisHeartbeatStore) LatestHeartbeat(ctx context.Context) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read heartbeat: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse heartbeat %q: %w", raw, err)
	}
	return at, nil
}
