package service

import (
	"context"
	"testing"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTenantFixture(t *testing.T) (*TenantService, *repository.MemoryTenantRepo, *repository.MemoryKeyRepo) {
	t.Helper()
	ctx := context.Background()
	keys := repository.NewMemoryKeyRepo()
	tenants := repository.NewMemoryTenantRepo(keys)
	require.NoError(t, tenants.Create(ctx, &model.Tenant{ID: "t1", Plan: model.PlanFree}))
	require.NoError(t, keys.CreateKey(ctx, &model.APIKey{Key: "sk_a", TenantID: "t1", Plan: model.PlanFree, Active: true}))
	require.NoError(t, keys.CreateKey(ctx, &model.APIKey{Key: "sk_b", TenantID: "t1", Plan: model.PlanFree, Active: true}))
	return NewTenantService(tenants), tenants, keys
}

func TestChangePlanUpgradesTenantAndKeys(t *testing.T) {
	svc, tenants, keys := newTenantFixture(t)
	ctx := context.Background()
	state := model.SubscriptionTrial
	expires := testNow.Add(30 * 24 * time.Hour)
	customer := "cus_123"

	res, err := svc.ChangePlan(ctx, "t1", model.PlanChangeRequest{
		Plan:                  "pro",
		SubscriptionState:     &state,
		SubscriptionExpiresAt: &expires,
		BillingCustomerID:     &customer,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PlanChangeResult{OldPlan: model.PlanFree, NewPlan: model.PlanPro, Changed: true}, res)

	tenant, err := tenants.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, tenant.Plan)
	assert.Equal(t, model.SubscriptionTrial, tenant.SubscriptionState)
	assert.Equal(t, "cus_123", tenant.BillingCustomerID)
	require.NotNil(t, tenant.SubscriptionExpiresAt)
	assert.True(t, expires.Equal(*tenant.SubscriptionExpiresAt))

	for _, k := range []string{"sk_a", "sk_b"} {
		key, err := keys.GetKey(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, model.PlanPro, key.Plan, k)
	}
}

func TestChangePlanSamePlanIsNoop(t *testing.T) {
	svc, tenants, _ := newTenantFixture(t)
	ctx := context.Background()
	before, err := tenants.Get(ctx, "t1")
	require.NoError(t, err)

	customer := "cus_ignored"
	for i := 0; i < 2; i++ {
		res, err := svc.ChangePlan(ctx, "t1", model.PlanChangeRequest{Plan: "free", BillingCustomerID: &customer})
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, res.OldPlan, res.NewPlan)
	}

	after, err := tenants.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Empty(t, after.BillingCustomerID)
}

func TestChangePlanRejectsBadInput(t *testing.T) {
	svc, _, _ := newTenantFixture(t)
	ctx := context.Background()

	_, err := svc.ChangePlan(ctx, "t1", model.PlanChangeRequest{Plan: "enterprise"})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))

	bogus := model.SubscriptionState("frozen")
	_, err = svc.ChangePlan(ctx, "t1", model.PlanChangeRequest{Plan: "pro", SubscriptionState: &bogus})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest))

	_, err = svc.ChangePlan(ctx, "ghost", model.PlanChangeRequest{Plan: "pro"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = svc.Get(ctx, "ghost")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
