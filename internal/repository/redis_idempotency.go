package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore shares replay records across gateway instances.
// The in-flight lock lives for lockTTL; Save rewrites the key with the full ttl.
type RedisIdempotencyStore struct {
	client  redis.Cmdable
	ttl     time.Duration
	lockTTL time.Duration
	prefix  string
}

func NewRedisIdempotencyStore(client redis.Cmdable, ttl, lockTTL time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = model.DefaultIdempotencyLockTTL
	}
	return &RedisIdempotencyStore{
		client:  client,
		ttl:     ttl,
		lockTTL: lockTTL,
		prefix:  "idem:",
	}
}

func (s *RedisIdempotencyStore) GetOrLock(ctx context.Context, key string) (*model.IdempotencyRecord, bool, error) {
	lock, err := json.Marshal(model.IdempotencyRecord{CreatedAt: time.Now().UTC(), Processing: true})
	if err != nil {
		return nil, false, err
	}
	acquired, err := s.client.SetNX(ctx, s.prefix+key, lock, s.lockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if acquired {
		return nil, false, nil
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller proceeds as owner
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec model.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, status int, body []byte) error {
	payload, err := json.Marshal(model.IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, payload, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
