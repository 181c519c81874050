package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "wopi:token:"

// RedisStore is a Store backed by Redis, for deployments where tokens must
// survive restarts and be shared between nodes.
type RedisStore struct {
	c   redis.UniversalClient
	ttl time.Duration
}

// NewRedisStore creates a RedisStore with the given record ttl.
func NewRedisStore(c redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{c: c, ttl: ttl}
}

// Resolve implements Store. Expired keys vanish from Redis on their own, so
// expiry and absence are naturally indistinguishable.
func (s *RedisStore) Resolve(ctx context.Context, token string) (*Record, error) {
	b, err := s.c.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("session: decode record: %w", err)
	}
	return &rec, nil
}

// Mint implements Store.
func (s *RedisStore) Mint(ctx context.Context, fileID string, version int64, attrs Attributes, serverHost, owner, editor string) (*Record, error) {
	rec := Record{
		Token:      newToken(),
		FileID:     fileID,
		Version:    version,
		Owner:      owner,
		Editor:     editor,
		Attributes: attrs,
		ServerHost: serverHost,
	}
	b, err := json.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("session: encode record: %w", err)
	}
	if err := s.c.Set(ctx, redisKeyPrefix+rec.Token, b, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("session: redis set: %w", err)
	}
	return &rec, nil
}
