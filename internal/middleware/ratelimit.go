package middleware

import (
	"net/http"
	"strconv"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/pkg/metrics"
	"github.com/GoPolymarket/hookgate/internal/ratelimit"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderRateLimitPlan      = "x-rate-limit-plan"
	HeaderRateLimitRemaining = "x-rate-limit-remaining"
)

// RateLimitMiddleware throttles tenant-scoped reads per credential. It uses
// the plan snapshot on the key and must run after AuthMiddleware.
func RateLimitMiddleware(limiter *ratelimit.Limiter, audit service.Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 获取当前调用方
		p, ok := GetPrincipal(c)
		if !ok {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized", nil))
			c.Abort()
			return
		}

		// 2. 计数
		ctx := c.Request.Context()
		decision, err := limiter.Allow(ctx, p.Plan, p.Credential)
		if err != nil {
			c.Error(apperrors.NewInternal("rate limiter unavailable", err))
			c.Abort()
			return
		}
		c.Header(HeaderRateLimitPlan, p.Plan.String())
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))

		// 3. 超限
		if !decision.Allowed {
			metrics.GateRejects.WithLabelValues("read_rate_limited").Inc()
			retryAfter := decision.RetryAfter(limiter.Now())
			info := RequestInfoFrom(c)
			audit.Record(ctx, &model.SecurityAuditEvent{
				Kind:       model.AuditRateLimitExceeded,
				TenantID:   p.TenantID,
				KeyPrefix:  model.KeyPrefix(p.Credential),
				IP:         info.IP,
				UserAgent:  info.UserAgent,
				Path:       info.Path,
				Method:     info.Method,
				StatusCode: http.StatusTooManyRequests,
				Metadata:   model.Metadata{"plan": p.Plan.String(), "limit": decision.Limit, "scope": "read"},
			}).Log(ctx)
			c.Error(apperrors.New(apperrors.ErrRateLimited, "rate limit exceeded", nil).
				WithReason("rate_limited").
				WithPlan(p.Plan.String(), "").
				WithRetryAfter(retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}
