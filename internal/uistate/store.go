package uistate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the state of one user's area.
type Store interface {
	// Load returns the stored state or the area's initial state when none exists.
	Load(ctx context.Context, userID string, area Area) (State, error)
	Save(ctx context.Context, userID string, state State) error
	Delete(ctx context.Context, userID string, area Area) error
}

// Key is the storage key of a user's area.
func Key(userID string, area Area) string {
	return fmt.Sprintf("uistate:%s:%s", userID, area)
}

// RedisStore keeps states in Redis for the lifetime of a session.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore constructs a Redis backed store.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, userID string, area Area) (State, error) {
	raw, err := s.client.Get(ctx, Key(userID, area)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Initial(area)
		}
		return nil, fmt.Errorf("load ui state: %w", err)
	}
	return Decode(area, raw)
}

// Save implements Store and refreshes the TTL.
func (s *RedisStore) Save(ctx context.Context, userID string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal ui state: %w", err)
	}
	if err := s.client.Set(ctx, Key(userID, state.Area()), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save ui state: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, userID string, area Area) error {
	if err := s.client.Del(ctx, Key(userID, area)).Err(); err != nil {
		return fmt.Errorf("delete ui state: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store used when Redis is not configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, userID string, area Area) (State, error) {
	s.mu.RLock()
	raw, ok := s.states[Key(userID, area)]
	s.mu.RUnlock()
	if !ok {
		return Initial(area)
	}
	return Decode(area, raw)
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, userID string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal ui state: %w", err)
	}
	s.mu.Lock()
	s.states[Key(userID, state.Area())] = payload
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, userID string, area Area) error {
	s.mu.Lock()
	delete(s.states, Key(userID, area))
	s.mu.Unlock()
	return nil
}
