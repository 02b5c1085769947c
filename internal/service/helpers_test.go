package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/ratelimit"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"github.com/GoPolymarket/hookgate/internal/signer"
	"github.com/stretchr/testify/require"
)

const (
	testTenant = "tenant-1"
	testKey    = "sk_live_tenant1_primary"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type recordingAuditor struct {
	mu      sync.Mutex
	entries []*model.SecurityAuditEvent
}

func (a *recordingAuditor) Record(_ context.Context, e *model.SecurityAuditEvent) BestEffort {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *e
	a.entries = append(a.entries, &cp)
	return BestEffort{Task: "audit." + string(e.Kind)}
}

func (a *recordingAuditor) count(kind model.AuditKind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (a *recordingAuditor) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []*model.Event
}

func (d *recordingDispatcher) Dispatch(evt *model.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

type harness struct {
	svc      *IngestService
	tenants  *repository.MemoryTenantRepo
	keys     *repository.MemoryKeyRepo
	events   *repository.MemoryEventRepo
	audit    *recordingAuditor
	dispatch *recordingDispatcher
	now      time.Time
}

func newHarness(t *testing.T, plan model.Plan, opts ...func(*model.Tenant)) *harness {
	t.Helper()
	ctx := context.Background()

	keys := repository.NewMemoryKeyRepo()
	tenants := repository.NewMemoryTenantRepo(keys)
	events := repository.NewMemoryEventRepo()

	tenant := &model.Tenant{ID: testTenant, Plan: plan, SubscriptionState: model.SubscriptionActive}
	for _, opt := range opts {
		opt(tenant)
	}
	require.NoError(t, tenants.Create(ctx, tenant))
	require.NoError(t, keys.CreateKey(ctx, &model.APIKey{Key: testKey, TenantID: testTenant, Plan: plan, Active: true}))

	h := &harness{
		tenants:  tenants,
		keys:     keys,
		events:   events,
		audit:    &recordingAuditor{},
		dispatch: &recordingDispatcher{},
		now:      testNow,
	}
	clock := func() time.Time { return h.now }

	validator, err := NewSubmissionValidator()
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(
		ratelimit.NewMemoryStore(ratelimit.MemoryConfig{Now: clock}),
		ratelimit.Options{Window: time.Minute, Now: clock},
	)
	gate := NewUsageGate(limiter, h.audit, "https://billing.example.test/upgrade")
	gate.now = clock
	dir := NewKeyDirectory(keys, h.audit)
	dir.now = clock

	h.svc = NewIngestService(
		dir,
		signer.NewVerifier(signer.SchemeConcat, 0).WithClock(clock),
		validator,
		NewIdempotencyGuard(events),
		tenants,
		events,
		gate,
		h.audit,
		h.dispatch,
	)
	h.svc.now = clock
	return h
}

// request builds a correctly signed submission at the harness clock.
func (h *harness) request(body string) IngestRequest {
	return h.signedAt(body, h.now)
}

func (h *harness) signedAt(body string, at time.Time) IngestRequest {
	ts := signer.Timestamp(at)
	return IngestRequest{
		Body:       []byte(body),
		Credential: testKey,
		Signature:  signer.Sign(signer.SchemeConcat, []byte(body), ts, testKey),
		Timestamp:  ts,
		Info:       RequestInfo{IP: "203.0.113.7", UserAgent: "test", Path: "/v1/events", Method: "POST"},
	}
}

func (h *harness) usage(t *testing.T) int64 {
	t.Helper()
	tenant, err := h.tenants.Get(context.Background(), testTenant)
	require.NoError(t, err)
	return tenant.Usage
}
