package repository

import (
	"context"
	"encoding/json"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisAuditRepo keeps one capped list per tenant, newest entry at the head.
type RedisAuditRepo struct {
	client  redis.Cmdable
	prefix  string
	listMax int
}

func NewRedisAuditRepo(client redis.Cmdable, prefix string, listMax int) *RedisAuditRepo {
	if prefix == "" {
		prefix = "audit"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisAuditRepo{
		client:  client,
		prefix:  prefix,
		listMax: listMax,
	}
}

func (r *RedisAuditRepo) key(tenantID string) string {
	return r.prefix + ":" + tenantID
}

func (r *RedisAuditRepo) Insert(ctx context.Context, entry *model.SecurityAuditEvent) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := r.key(entry.TenantID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisAuditRepo) List(ctx context.Context, tenantID string, limit int) ([]*model.SecurityAuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	items, err := r.client.LRange(ctx, r.key(tenantID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.SecurityAuditEvent, 0, len(items))
	for _, raw := range items {
		var entry model.SecurityAuditEvent
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		results = append(results, &entry)
	}
	return results, nil
}
