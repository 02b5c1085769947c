package service

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/pkg/metrics"
	"github.com/GoPolymarket/hookgate/internal/ratelimit"
	"github.com/shopspring/decimal"
)

var usageWarningRatio = decimal.NewFromFloat(0.8)

// UsageSnapshot feeds the X-Usage-* and x-rate-limit-* response headers.
type UsageSnapshot struct {
	Plan          model.Plan
	Limit         int64
	Used          int64
	Remaining     int64
	Warning       string
	RateRemaining int
}

// UsageGate runs the business gates in a fixed order: subscription state,
// grace period, expiry, rate limit, monthly quota.
type UsageGate struct {
	limiter    *ratelimit.Limiter
	audit      Auditor
	upgradeURL string
	now        func() time.Time
}

func NewUsageGate(limiter *ratelimit.Limiter, audit Auditor, upgradeURL string) *UsageGate {
	return &UsageGate{limiter: limiter, audit: audit, upgradeURL: upgradeURL, now: time.Now}
}

// Check evaluates tenant as read before this submission's usage increment;
// usedAfter is the counter value after it.
func (g *UsageGate) Check(ctx context.Context, tenant *model.Tenant, usedAfter int64, credential string, info RequestInfo) (*UsageSnapshot, error) {
	now := g.now()
	plan := tenant.Plan
	limits := plan.Limits()

	// 1. 订阅状态
	switch tenant.SubscriptionState {
	case model.SubscriptionActive, model.SubscriptionGrace:
	default:
		metrics.GateRejects.WithLabelValues("subscription_inactive").Inc()
		return nil, g.paymentRequired(plan, "subscription_inactive",
			fmt.Sprintf("subscription is %s", tenant.SubscriptionState))
	}

	// 2. 宽限期
	if tenant.SubscriptionState == model.SubscriptionGrace &&
		tenant.GracePeriodEndsAt != nil && now.After(*tenant.GracePeriodEndsAt) {
		metrics.GateRejects.WithLabelValues("grace_period_ended").Inc()
		return nil, g.paymentRequired(plan, "grace_period_ended", "grace period ended")
	}

	// 3. 订阅到期
	if tenant.SubscriptionExpiresAt != nil && now.After(*tenant.SubscriptionExpiresAt) {
		metrics.GateRejects.WithLabelValues("subscription_expired").Inc()
		return nil, g.paymentRequired(plan, "subscription_expired", "subscription expired")
	}

	// 4. 限流
	decision, err := g.limiter.Allow(ctx, plan, credential)
	if err != nil {
		return nil, apperrors.NewInternal("rate limiter unavailable", err)
	}
	if !decision.Allowed {
		metrics.GateRejects.WithLabelValues("rate_limited").Inc()
		retryAfter := decision.RetryAfter(g.limiter.Now())
		entry := info.auditEntry(model.AuditRateLimitExceeded)
		entry.TenantID = tenant.ID
		entry.KeyPrefix = model.KeyPrefix(credential)
		entry.StatusCode = 429
		entry.Metadata = model.Metadata{"plan": plan.String(), "limit": decision.Limit, "retryAfterSeconds": retryAfter}
		g.audit.Record(ctx, entry).Log(ctx)
		return nil, apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil).
			WithReason("rate_limited").
			WithPlan(plan.String(), "").
			WithRetryAfter(retryAfter)
	}

	// 5. 月度配额
	usedBefore := usedAfter - 1
	if usedBefore >= limits.MonthlyEvents {
		metrics.GateRejects.WithLabelValues("usage_limit").Inc()
		return nil, g.paymentRequired(plan, "usage_limit_exceeded", "usage limit exceeded")
	}

	snap := &UsageSnapshot{
		Plan:          plan,
		Limit:         limits.MonthlyEvents,
		Used:          usedAfter,
		Remaining:     max(limits.MonthlyEvents-usedAfter, 0),
		RateRemaining: decision.Remaining,
	}
	ratio := decimal.NewFromInt(usedAfter).Div(decimal.NewFromInt(limits.MonthlyEvents))
	if ratio.GreaterThanOrEqual(usageWarningRatio) {
		snap.Warning = fmt.Sprintf("%s%% of monthly event limit used", ratio.Shift(2).Floor().String())
	}
	return snap, nil
}

func (g *UsageGate) paymentRequired(plan model.Plan, reason, msg string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrPaymentRequired, msg, nil).
		WithReason(reason).
		WithPlan(plan.String(), g.upgradeURL)
}
