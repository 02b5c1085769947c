package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
)

// In-memory stores back single-instance dev deployments and tests. Every
// getter returns a copy so callers never share mutable state with the store.

type MemoryTenantRepo struct {
	mu      sync.RWMutex
	tenants map[string]*model.Tenant
	keys    *MemoryKeyRepo
}

// NewMemoryTenantRepo builds a tenant store. keys may be nil; when set, plan
// changes refresh the plan snapshot on the tenant's keys.
func NewMemoryTenantRepo(keys *MemoryKeyRepo) *MemoryTenantRepo {
	return &MemoryTenantRepo{tenants: make(map[string]*model.Tenant), keys: keys}
}

func (r *MemoryTenantRepo) Get(_ context.Context, id string) (*model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryTenantRepo) Create(_ context.Context, t *model.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	cp := t.Clone()
	if cp.SubscriptionState == "" {
		cp.SubscriptionState = model.SubscriptionActive
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.tenants[t.ID] = cp
	return nil
}

func (r *MemoryTenantRepo) IncrementUsage(_ context.Context, id string, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return 0, ErrTenantNotFound
	}
	t.Usage += delta
	return t.Usage, nil
}

func (r *MemoryTenantRepo) UpdatePlan(_ context.Context, id string, upd model.PlanUpdate) (model.Plan, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return model.PlanFree, false, ErrTenantNotFound
	}
	old := t.Plan
	if old == upd.Plan {
		return old, false, nil
	}
	next := t.Clone()
	upd.Apply(next)
	next.UpdatedAt = time.Now().UTC()
	// swap the pointer so concurrent readers see the old or the new record
	r.tenants[id] = next
	if r.keys != nil {
		r.keys.setPlan(id, upd.Plan)
	}
	return old, true, nil
}

type MemoryKeyRepo struct {
	mu   sync.RWMutex
	keys map[string]*model.APIKey
}

func NewMemoryKeyRepo() *MemoryKeyRepo {
	return &MemoryKeyRepo{keys: make(map[string]*model.APIKey)}
}

func (r *MemoryKeyRepo) GetKey(_ context.Context, key string) (*model.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *k
	return &cp, nil
}

func (r *MemoryKeyRepo) CreateKey(_ context.Context, k *model.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *k
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.keys[k.Key] = &cp
	return nil
}

func (r *MemoryKeyRepo) RevokeKey(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[key]
	if !ok {
		return ErrKeyNotFound
	}
	cp := *k
	cp.Active = false
	r.keys[key] = &cp
	return nil
}

func (r *MemoryKeyRepo) setPlan(tenantID string, plan model.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, k := range r.keys {
		if k.TenantID == tenantID {
			cp := *k
			cp.Plan = plan
			r.keys[key] = &cp
		}
	}
}

type eventKey struct{ tenantID, eventID string }

type MemoryEventRepo struct {
	mu     sync.RWMutex
	events map[eventKey]*model.Event
}

func NewMemoryEventRepo() *MemoryEventRepo {
	return &MemoryEventRepo{events: make(map[eventKey]*model.Event)}
}

func (r *MemoryEventRepo) Insert(_ context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := eventKey{e.TenantID, e.EventID}
	if _, exists := r.events[k]; exists {
		return ErrDuplicateEvent
	}
	cp := e.Clone()
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.events[k] = cp
	return nil
}

func (r *MemoryEventRepo) Exists(_ context.Context, tenantID, eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.events[eventKey{tenantID, eventID}]
	return ok, nil
}

func (r *MemoryEventRepo) Get(_ context.Context, tenantID, eventID string) (*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[eventKey{tenantID, eventID}]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e.Clone(), nil
}

func (r *MemoryEventRepo) ListSince(_ context.Context, tenantID string, since time.Time, limit int) ([]*model.Event, error) {
	r.mu.RLock()
	out := make([]*model.Event, 0)
	for k, e := range r.events {
		if k.tenantID == tenantID && !e.ReceivedAt.Before(since) {
			out = append(out, e.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryEventRepo) UpdateDelivery(_ context.Context, tenantID, eventID string, res model.DeliveryResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventKey{tenantID, eventID}]
	if !ok {
		return ErrEventNotFound
	}
	e.Status = res.Status
	e.ForwardedTo = append(model.StringList(nil), res.ForwardedTo...)
	e.LastResponseCode = res.LastResponseCode
	e.RetryCount = res.RetryCount
	e.UpdatedAt = time.Now().UTC()
	return nil
}

type MemoryEndpointRepo struct {
	mu        sync.RWMutex
	endpoints map[string]*model.Endpoint
}

func NewMemoryEndpointRepo() *MemoryEndpointRepo {
	return &MemoryEndpointRepo{endpoints: make(map[string]*model.Endpoint)}
}

func (r *MemoryEndpointRepo) list(tenantID string, activeOnly bool) []*model.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Endpoint, 0)
	for _, ep := range r.endpoints {
		if ep.TenantID != tenantID || (activeOnly && !ep.Active) {
			continue
		}
		cp := *ep
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryEndpointRepo) List(_ context.Context, tenantID string) ([]*model.Endpoint, error) {
	return r.list(tenantID, false), nil
}

func (r *MemoryEndpointRepo) ListActive(_ context.Context, tenantID string) ([]*model.Endpoint, error) {
	return r.list(tenantID, true), nil
}

func (r *MemoryEndpointRepo) Get(_ context.Context, tenantID, id string) (*model.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[id]
	if !ok || ep.TenantID != tenantID {
		return nil, ErrEndpointNotFound
	}
	cp := *ep
	return &cp, nil
}

// activeURLTaken must be called with the lock held.
func (r *MemoryEndpointRepo) activeURLTaken(ep *model.Endpoint) bool {
	if !ep.Active {
		return false
	}
	for id, other := range r.endpoints {
		if id != ep.ID && other.TenantID == ep.TenantID && other.Active && other.URL == ep.URL {
			return true
		}
	}
	return false
}

func (r *MemoryEndpointRepo) Create(_ context.Context, ep *model.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeURLTaken(ep) {
		return ErrEndpointConflict
	}
	cp := *ep
	r.endpoints[ep.ID] = &cp
	return nil
}

func (r *MemoryEndpointRepo) Update(_ context.Context, ep *model.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.endpoints[ep.ID]
	if !ok || current.TenantID != ep.TenantID {
		return ErrEndpointNotFound
	}
	if r.activeURLTaken(ep) {
		return ErrEndpointConflict
	}
	cp := *ep
	cp.CreatedAt = current.CreatedAt
	r.endpoints[ep.ID] = &cp
	return nil
}

func (r *MemoryEndpointRepo) Delete(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[id]
	if !ok || ep.TenantID != tenantID {
		return ErrEndpointNotFound
	}
	delete(r.endpoints, id)
	return nil
}

// MemoryAuditRepo is a bounded ring buffer of audit entries.
type MemoryAuditRepo struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.SecurityAuditEvent
	nextIndex int
}

func NewMemoryAuditRepo(maxSize int) *MemoryAuditRepo {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryAuditRepo{
		maxSize: maxSize,
		records: make([]*model.SecurityAuditEvent, 0, maxSize),
	}
}

func (b *MemoryAuditRepo) Insert(_ context.Context, entry *model.SecurityAuditEvent) error {
	if entry == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return nil
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
	return nil
}

// List walks the ring newest first.
func (b *MemoryAuditRepo) List(_ context.Context, tenantID string, limit int) ([]*model.SecurityAuditEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.SecurityAuditEvent, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if tenantID != "" && entry.TenantID != tenantID {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
