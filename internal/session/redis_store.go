package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Well-known keys for the two credential slots.
const (
	accessKey  = "refera:credentials:accessToken"
	refreshKey = "refera:credentials:refreshToken"
)

// RedisStore keeps the credential pair in Redis, for deployments where the
// session outlives a single host.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed credential store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load reads both credential slots. Absent keys yield zero credentials.
func (s *RedisStore) Load(ctx context.Context) (Credentials, error) {
	var creds Credentials

	access, err := s.client.Get(ctx, accessKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Credentials{}, fmt.Errorf("load access credential: %w", err)
	}
	creds.Access = access

	refresh, err := s.client.Get(ctx, refreshKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Credentials{}, fmt.Errorf("load refresh credential: %w", err)
	}
	creds.Refresh = refresh

	return creds, nil
}

// Save writes both slots. An empty refresh credential clears its slot so a
// stale refresh token never outlives the access token it belonged to.
func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	if err := s.client.Set(ctx, accessKey, creds.Access, 0).Err(); err != nil {
		return fmt.Errorf("save access credential: %w", err)
	}
	if creds.Refresh == "" {
		if err := s.client.Del(ctx, refreshKey).Err(); err != nil {
			return fmt.Errorf("clear refresh credential: %w", err)
		}
		return nil
	}
	if err := s.client.Set(ctx, refreshKey, creds.Refresh, 0).Err(); err != nil {
		return fmt.Errorf("save refresh credential: %w", err)
	}
	return nil
}

// Clear removes both credential slots.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, accessKey, refreshKey).Err(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
