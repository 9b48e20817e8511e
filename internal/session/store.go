package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Store is the server-side session backing store. Entries map a session id
// (the token's jti) to a user id and expire after the store's TTL.
type Store interface {
	Save(ctx context.Context, id string, userID int64) error
	// Lookup returns ok=false when the session is unknown, revoked or expired.
	Lookup(ctx context.Context, id string) (userID int64, ok bool, err error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in a bounded in-process LRU. Sessions do not
// survive a restart.
type MemoryStore struct {
	lru *expirable.LRU[string, int64]
}

// NewMemoryStore returns a store holding at most maxEntries sessions, each
// living for ttl. When full, the least recently used session is evicted.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: expirable.NewLRU[string, int64](maxEntries, nil, ttl)}
}

func (s *MemoryStore) Save(_ context.Context, id string, userID int64) error {
	s.lru.Add(id, userID)
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, id string) (int64, bool, error) {
	uid, ok := s.lru.Get(id)
	return uid, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.lru.Remove(id)
	return nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int { return s.lru.Len() }

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis under "session:<id>" with a TTL, so they
// are shared by every process pointing at the same Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, id string, userID int64) error {
	if err := s.client.Set(ctx, redisKeyPrefix+id, userID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, id string) (int64, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get session: %w", err)
	}
	uid, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt session %q: %w", id, err)
	}
	return uid, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
