package service

import (
	"context"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
)

type TenantStore interface {
	Get(ctx context.Context, id string) (*model.Tenant, error)
	Create(ctx context.Context, t *model.Tenant) error
	IncrementUsage(ctx context.Context, id string, delta int64) (int64, error)
	UpdatePlan(ctx context.Context, id string, upd model.PlanUpdate) (old model.Plan, changed bool, err error)
}

type KeyStore interface {
	GetKey(ctx context.Context, key string) (*model.APIKey, error)
	CreateKey(ctx context.Context, k *model.APIKey) error
	RevokeKey(ctx context.Context, key string) error
}

type EventStore interface {
	Insert(ctx context.Context, e *model.Event) error
	Exists(ctx context.Context, tenantID, eventID string) (bool, error)
	Get(ctx context.Context, tenantID, eventID string) (*model.Event, error)
	ListSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]*model.Event, error)
	UpdateDelivery(ctx context.Context, tenantID, eventID string, res model.DeliveryResult) error
}

type EndpointStore interface {
	List(ctx context.Context, tenantID string) ([]*model.Endpoint, error)
	ListActive(ctx context.Context, tenantID string) ([]*model.Endpoint, error)
	Get(ctx context.Context, tenantID, id string) (*model.Endpoint, error)
	Create(ctx context.Context, ep *model.Endpoint) error
	Update(ctx context.Context, ep *model.Endpoint) error
	Delete(ctx context.Context, tenantID, id string) error
}

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.SecurityAuditEvent) error
	List(ctx context.Context, tenantID string, limit int) ([]*model.SecurityAuditEvent, error)
}
