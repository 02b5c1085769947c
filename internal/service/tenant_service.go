package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/GoPolymarket/hookgate/internal/repository"
)

type TenantService struct {
	repo TenantStore
}

func NewTenantService(repo TenantStore) *TenantService {
	return &TenantService{repo: repo}
}

func (s *TenantService) Get(ctx context.Context, id string) (*model.Tenant, error) {
	tenant, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrTenantNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound, "tenant not found", err)
	}
	return tenant, err
}

// ChangePlan moves a tenant to req.Plan. Repeating the current plan is a
// successful no-op that writes nothing.
func (s *TenantService) ChangePlan(ctx context.Context, tenantID string, req model.PlanChangeRequest) (model.PlanChangeResult, error) {
	plan, err := model.ParsePlan(req.Plan)
	if err != nil {
		return model.PlanChangeResult{}, apperrors.NewInvalidRequest(err.Error()).WithReason("invalid_plan")
	}
	if req.SubscriptionState != nil && !req.SubscriptionState.Valid() {
		return model.PlanChangeResult{}, apperrors.NewInvalidRequest(
			fmt.Sprintf("unknown subscription state %q", *req.SubscriptionState)).WithReason("invalid_subscription_state")
	}

	old, changed, err := s.repo.UpdatePlan(ctx, tenantID, model.PlanUpdate{
		Plan:                  plan,
		SubscriptionState:     req.SubscriptionState,
		SubscriptionExpiresAt: req.SubscriptionExpiresAt,
		GracePeriodEndsAt:     req.GracePeriodEndsAt,
		BillingCustomerID:     req.BillingCustomerID,
	})
	if errors.Is(err, repository.ErrTenantNotFound) {
		return model.PlanChangeResult{}, apperrors.New(apperrors.ErrNotFound, "tenant not found", err)
	}
	if err != nil {
		return model.PlanChangeResult{}, apperrors.NewInternal("failed to change plan", err)
	}
	if changed {
		logger.FromContext(ctx).Info("tenant plan changed", "tenant_id", tenantID, "old_plan", old.String(), "new_plan", plan.String())
	}
	return model.PlanChangeResult{OldPlan: old, NewPlan: plan, Changed: changed}, nil
}
