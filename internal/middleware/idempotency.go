package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type IdempotencyStore interface {
	// GetOrLock returns (record, true) if exists; (nil,false) if newly locked by caller.
	GetOrLock(ctx context.Context, key string) (*model.IdempotencyRecord, bool, error)
	Save(ctx context.Context, key string, status int, body []byte) error
	Unlock(ctx context.Context, key string) error
}

// InMemIdempotencyStore serves single-instance deployments. Saved responses
// expire after ttl, in-flight locks after lockTTL.
type InMemIdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	lockTTL time.Duration
	now     func() time.Time
	records map[string]*model.IdempotencyRecord // Key: TenantID + ":" + IdempotencyKey
}

func NewInMemIdempotencyStore(ttl, lockTTL time.Duration) *InMemIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = model.DefaultIdempotencyLockTTL
	}
	return &InMemIdempotencyStore{
		ttl:     ttl,
		lockTTL: lockTTL,
		now:     time.Now,
		records: make(map[string]*model.IdempotencyRecord),
	}
}

// GetOrLock 尝试获取记录。如果不存在，则锁定并返回 nil（表示你是第一个）。
func (s *InMemIdempotencyStore) GetOrLock(_ context.Context, key string) (*model.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[key]; ok {
		ttl := s.ttl
		if rec.Processing {
			ttl = s.lockTTL
		}
		if now.Sub(rec.CreatedAt) < ttl {
			cp := *rec
			return &cp, true, nil
		}
		delete(s.records, key)
	}

	// 锁定该 Key
	s.records[key] = &model.IdempotencyRecord{Processing: true, CreatedAt: now}
	return nil, false, nil
}

func (s *InMemIdempotencyStore) Save(_ context.Context, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = &model.IdempotencyRecord{
		Status:    status,
		Body:      append([]byte(nil), body...),
		CreatedAt: s.now(),
	}
	return nil
}

func (s *InMemIdempotencyStore) Unlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// IdempotencyMiddleware replays the stored response for a repeated
// X-Idempotency-Key on management writes. Must run after AuthMiddleware.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 检查 Header
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" {
			c.Next()
			return
		}

		// 2. 获取租户 (确保在 Auth 之后)
		p, ok := GetPrincipal(c)
		if !ok {
			c.Next()
			return
		}
		fullKey := p.TenantID + ":" + c.Request.Method + ":" + c.FullPath() + ":" + idemKey
		ctx := c.Request.Context()

		// 3. 检查存储
		record, hit, err := store.GetOrLock(ctx, fullKey)
		if err != nil {
			// store unavailable: run the request without replay protection
			logger.LogError(ctx, err, "idempotency store unavailable")
			c.Next()
			return
		}
		if hit {
			if record.Processing {
				c.Error(apperrors.New(apperrors.ErrConflict, "request with this idempotency key is in progress", nil).WithReason("idempotency_in_progress"))
				c.Abort()
				return
			}
			// 已处理完成：直接返回缓存的响应
			c.Header("Idempotent-Replayed", "true")
			c.Data(record.Status, "application/json; charset=utf-8", record.Body)
			c.Abort()
			return
		}

		// 4. 捕获响应
		w := &responseBodyWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// 5. 只缓存成功的响应；错误由外层 ErrorHandler 写出，允许重试
		if len(c.Errors) == 0 && c.Writer.Status() < 400 {
			err = store.Save(ctx, fullKey, c.Writer.Status(), w.body)
		} else {
			err = store.Unlock(ctx, fullKey)
		}
		if err != nil {
			logger.LogError(ctx, err, "idempotency store write failed")
		}
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	// management responses are small
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

func (w *responseBodyWriter) WriteString(s string) (int, error) {
	w.body = append(w.body, s...)
	return w.ResponseWriter.WriteString(s)
}
