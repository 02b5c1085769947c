package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/GoPolymarket/hookgate/internal/pkg/metrics"
	"github.com/google/uuid"
)

var (
	ErrAuditQueueFull = errors.New("audit queue full")
	ErrAuditClosed    = errors.New("audit service closed")
)

// Auditor accepts security audit entries without blocking the caller.
type Auditor interface {
	Record(ctx context.Context, entry *model.SecurityAuditEvent) BestEffort
}

// AuditService queues entries on a bounded channel and writes them from a
// single goroutine. A full queue drops the entry.
type AuditService struct {
	mu      sync.RWMutex
	closed  bool
	logChan chan *model.SecurityAuditEvent
	done    chan struct{}
	repo    AuditRepo
	now     func() time.Time
}

func NewAuditService(repo AuditRepo, buffer int) *AuditService {
	if buffer <= 0 {
		buffer = 1000
	}
	svc := &AuditService{
		logChan: make(chan *model.SecurityAuditEvent, buffer),
		done:    make(chan struct{}),
		repo:    repo,
		now:     time.Now,
	}

	// 启动消费者 goroutine
	go svc.processLogs()

	return svc
}

func (s *AuditService) Record(ctx context.Context, entry *model.SecurityAuditEvent) BestEffort {
	res := BestEffort{Task: "audit." + string(entry.Kind)}
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		entry.ID = id.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if entry.TenantID == "" {
		entry.TenantID = model.AuditSystemTenant
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		res.Err = ErrAuditClosed
		return res
	}
	select {
	case s.logChan <- entry:
	default:
		// 缓冲区满，丢弃日志以保护主流程
		metrics.AuditDropped.Inc()
		res.Err = ErrAuditQueueFull
	}
	return res
}

func (s *AuditService) List(ctx context.Context, tenantID string, limit int) ([]*model.SecurityAuditEvent, error) {
	if tenantID == "" {
		tenantID = model.AuditSystemTenant
	}
	return s.repo.List(ctx, tenantID, limit)
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	for entry := range s.logChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Insert(ctx, entry); err != nil {
			logger.Error("failed to write audit entry", "error", err, "kind", entry.Kind, "tenant_id", entry.TenantID)
		}
		cancel()
	}
}

// Close stops intake and waits until queued entries are written or ctx ends.
func (s *AuditService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.logChan)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
