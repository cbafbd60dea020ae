package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEphemeral implements Ephemeral on a Redis instance. SetIfAbsent maps
// straight onto SETNX, which is what makes it usable as an advisory lock.
type RedisEphemeral struct {
	client *redis.Client
}

// NewRedisEphemeral builds a Redis-backed ephemeral store.
func NewRedisEphemeral(addr, password string) (*RedisEphemeral, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	return &RedisEphemeral{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}, nil
}

// SetIfAbsent atomically stores value under key unless the key exists.
// Returns false when another writer got there first.
func (s *RedisEphemeral) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

// Get returns the value under key. ok=false covers both never-set and
// expired keys.
func (s *RedisEphemeral) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *RedisEphemeral) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Del(ctx, key).Err()
}
