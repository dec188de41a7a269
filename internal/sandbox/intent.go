package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Intent is a server-reserved, not-yet-finalized registration: an account
// shell waiting for its payment. The client secret authorizes exactly one
// payment for it.
type Intent struct {
	ID           string    `json:"id"`
	ClientSecret string    `json:"client_secret"`
	Email        string    `json:"email"`
	Decline      bool      `json:"decline"`
	Paid         bool      `json:"paid"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrIntentNotFound is returned when no intent matches a lookup.
var ErrIntentNotFound = errors.New("payment intent not found")

// IntentStore persists registration intents. Consume is the idempotency
// point of the whole flow: it returns true exactly once per intent, so a
// retried finalize can never create a second account. Release undoes a
// consumption whose account creation failed, so the retry path reports the
// real error instead of a hollow success.
type IntentStore interface {
	Save(ctx context.Context, intent Intent) error
	Find(ctx context.Context, id string) (Intent, error)
	MarkPaid(ctx context.Context, id string) error
	Consume(ctx context.Context, id string) (first bool, err error)
	Release(ctx context.Context, id string) error
}

type memoryIntentStore struct {
	mu       sync.Mutex
	intents  map[string]Intent
	consumed map[string]bool
}

// NewMemoryIntentStore builds an in-memory intent store.
func NewMemoryIntentStore() IntentStore {
	return &memoryIntentStore{
		intents:  make(map[string]Intent),
		consumed: make(map[string]bool),
	}
}

func (s *memoryIntentStore) Save(_ context.Context, intent Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.ID] = intent
	return nil
}

func (s *memoryIntentStore) Find(_ context.Context, id string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return Intent{}, ErrIntentNotFound
	}
	return intent, nil
}

func (s *memoryIntentStore) MarkPaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	intent.Paid = true
	s.intents[id] = intent
	return nil
}

func (s *memoryIntentStore) Consume(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[id]; !ok {
		return false, ErrIntentNotFound
	}
	if s.consumed[id] {
		return false, nil
	}
	s.consumed[id] = true
	return true, nil
}

func (s *memoryIntentStore) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consumed, id)
	return nil
}

const (
	intentKeyPrefix   = "sandbox:intent:v1:"
	consumedKeyPrefix = "sandbox:intent:consumed:v1:"
)

// RedisIntentStore keeps intents in Redis so several sandbox instances can
// share one registration flow. Consumption uses SETNX, giving the same
// exactly-once semantics as the in-memory store.
type RedisIntentStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIntentStore builds a Redis-backed intent store. Intents expire
// after ttl; an abandoned registration leaves nothing behind.
func NewRedisIntentStore(client *redis.Client, ttl time.Duration) *RedisIntentStore {
	return &RedisIntentStore{client: client, ttl: ttl}
}

func (s *RedisIntentStore) Save(ctx context.Context, intent Intent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	if err := s.client.Set(ctx, intentKeyPrefix+intent.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist intent: %w", err)
	}
	return nil
}

func (s *RedisIntentStore) Find(ctx context.Context, id string) (Intent, error) {
	payload, err := s.client.Get(ctx, intentKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Intent{}, ErrIntentNotFound
		}
		return Intent{}, fmt.Errorf("load intent: %w", err)
	}
	var intent Intent
	if err := json.Unmarshal([]byte(payload), &intent); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return intent, nil
}

func (s *RedisIntentStore) MarkPaid(ctx context.Context, id string) error {
	intent, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	intent.Paid = true
	return s.Save(ctx, intent)
}

func (s *RedisIntentStore) Consume(ctx context.Context, id string) (bool, error) {
	if _, err := s.Find(ctx, id); err != nil {
		return false, err
	}
	first, err := s.client.SetNX(ctx, consumedKeyPrefix+id, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume intent: %w", err)
	}
	return first, nil
}

func (s *RedisIntentStore) Release(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, consumedKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("release intent: %w", err)
	}
	return nil
}
