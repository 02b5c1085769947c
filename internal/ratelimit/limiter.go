package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/GoPolymarket/hookgate/internal/pkg/metrics"
)

type Options struct {
	Window time.Duration
	// per-plan ceilings; missing plans use model.Plan.Limits
	Ceilings   map[model.Plan]int
	FailClosed bool
	// key namespace, e.g. "ratelimit" for ingestion, "ratelimit:read" for reads
	Prefix string
	Now    func() time.Time
}

// Limiter maps a credential and its plan onto a Store key and ceiling.
type Limiter struct {
	store      Store
	window     time.Duration
	ceilings   map[model.Plan]int
	failClosed bool
	prefix     string
	now        func() time.Time
}

func NewLimiter(store Store, opts Options) *Limiter {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Prefix == "" {
		opts.Prefix = "ratelimit"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ceilings := make(map[model.Plan]int, len(model.Plans()))
	for _, p := range model.Plans() {
		ceilings[p] = p.Limits().RequestsPerWindow
		if v, ok := opts.Ceilings[p]; ok && v > 0 {
			ceilings[p] = v
		}
	}
	return &Limiter{
		store:      store,
		window:     opts.Window,
		ceilings:   ceilings,
		failClosed: opts.FailClosed,
		prefix:     opts.Prefix,
		now:        opts.Now,
	}
}

func (l *Limiter) Ceiling(plan model.Plan) int {
	if v, ok := l.ceilings[plan]; ok {
		return v
	}
	return model.PlanFree.Limits().RequestsPerWindow
}

func (l *Limiter) Window() time.Duration { return l.window }

// Now is the limiter clock, exposed so callers compute Retry-After consistently.
func (l *Limiter) Now() time.Time { return l.now() }

// Allow records one hit for credential. Store failures let the request through
// unless the limiter was built with FailClosed.
func (l *Limiter) Allow(ctx context.Context, plan model.Plan, credential string) (Decision, error) {
	limit := l.Ceiling(plan)
	decision, err := l.store.Allow(ctx, l.prefix+":"+credential, limit, l.window)
	if err != nil {
		metrics.RateLimitStoreErrors.Inc()
		if l.failClosed {
			return Decision{}, fmt.Errorf("rate limit store: %w", err)
		}
		logger.Warn("rate limit store unavailable, allowing request", "error", err, "key_prefix", model.KeyPrefix(credential))
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: l.now().Add(l.window)}, nil
	}
	return decision, nil
}
