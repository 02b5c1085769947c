package service

import (
	"context"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
)

const (
	DefaultEventListLimit = 50
	MaxEventListLimit     = 500
)

// EventService serves a tenant's own event history within plan retention.
type EventService struct {
	events  EventStore
	tenants TenantStore
	now     func() time.Time
}

func NewEventService(events EventStore, tenants TenantStore) *EventService {
	return &EventService{events: events, tenants: tenants, now: time.Now}
}

// List returns events newest first. limit <= 0 means the default, values
// above the maximum are clamped.
func (s *EventService) List(ctx context.Context, tenantID string, limit int) (*model.EventList, error) {
	if limit <= 0 {
		limit = DefaultEventListLimit
	}
	limit = min(limit, MaxEventListLimit)

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, apperrors.NewInternal("tenant lookup failed", err)
	}
	days := tenant.Plan.Limits().RetentionDays
	since := s.now().AddDate(0, 0, -days)

	events, err := s.events.ListSince(ctx, tenantID, since, limit)
	if err != nil {
		return nil, apperrors.NewInternal("failed to list events", err)
	}
	return &model.EventList{Events: events, RetentionDays: days}, nil
}
