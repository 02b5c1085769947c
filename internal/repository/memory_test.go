package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTenantUpdatePlanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	keys := NewMemoryKeyRepo()
	tenants := NewMemoryTenantRepo(keys)
	require.NoError(t, tenants.Create(ctx, &model.Tenant{ID: "t1", Plan: model.PlanFree}))
	require.NoError(t, keys.CreateKey(ctx, &model.APIKey{Key: "sk_1", TenantID: "t1", Plan: model.PlanFree, Active: true}))

	old, changed, err := tenants.UpdatePlan(ctx, "t1", model.PlanUpdate{Plan: model.PlanPro})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PlanFree, old)

	k, err := keys.GetKey(ctx, "sk_1")
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, k.Plan)

	before, _ := tenants.Get(ctx, "t1")
	old, changed, err = tenants.UpdatePlan(ctx, "t1", model.PlanUpdate{Plan: model.PlanPro})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.PlanPro, old)
	after, _ := tenants.Get(ctx, "t1")
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	_, _, err = tenants.UpdatePlan(ctx, "missing", model.PlanUpdate{Plan: model.PlanPro})
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestMemoryTenantIncrementUsageConcurrent(t *testing.T) {
	ctx := context.Background()
	tenants := NewMemoryTenantRepo(nil)
	require.NoError(t, tenants.Create(ctx, &model.Tenant{ID: "t1"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tenants.IncrementUsage(ctx, "t1", 1)
		}()
	}
	wg.Wait()

	got, err := tenants.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Usage)
	assert.Equal(t, model.SubscriptionActive, got.SubscriptionState)
}

func TestMemoryEventRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEventRepo()
	now := time.Now().UTC()

	evt := &model.Event{TenantID: "t1", EventID: "e1", EventType: "a", ReceivedAt: now, Payload: model.RawJSON(`{"a":1}`), Status: model.DeliveryPending}
	require.NoError(t, repo.Insert(ctx, evt))
	assert.ErrorIs(t, repo.Insert(ctx, evt), ErrDuplicateEvent)

	// same id under another tenant is a different event
	other := *evt
	other.TenantID = "t2"
	require.NoError(t, repo.Insert(ctx, &other))

	old := &model.Event{TenantID: "t1", EventID: "e0", EventType: "a", ReceivedAt: now.Add(-48 * time.Hour), Payload: model.RawJSON(`{}`)}
	require.NoError(t, repo.Insert(ctx, old))

	list, err := repo.ListSince(ctx, "t1", now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "e1", list[0].EventID)

	require.NoError(t, repo.UpdateDelivery(ctx, "t1", "e1", model.DeliveryResult{
		Status: model.DeliveryPartial, ForwardedTo: []string{"http://a", "http://b"}, LastResponseCode: 200, RetryCount: 2,
	}))
	got, err := repo.Get(ctx, "t1", "e1")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPartial, got.Status)
	assert.Equal(t, model.StringList{"http://a", "http://b"}, got.ForwardedTo)
	assert.JSONEq(t, `{"a":1}`, string(got.Payload))

	assert.ErrorIs(t, repo.UpdateDelivery(ctx, "t1", "nope", model.DeliveryResult{}), ErrEventNotFound)
}

func TestMemoryEndpointRepoActiveURLUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEndpointRepo()

	a := &model.Endpoint{ID: "ep_a", TenantID: "t1", URL: "https://x.test/hook", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, a))

	dup := &model.Endpoint{ID: "ep_b", TenantID: "t1", URL: "https://x.test/hook", Active: true}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrEndpointConflict)

	// inactive duplicates and other tenants are fine
	dup.Active = false
	require.NoError(t, repo.Create(ctx, dup))
	require.NoError(t, repo.Create(ctx, &model.Endpoint{ID: "ep_c", TenantID: "t2", URL: a.URL, Active: true}))

	dup.Active = true
	assert.ErrorIs(t, repo.Update(ctx, dup), ErrEndpointConflict)

	active, err := repo.ListActive(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ep_a", active[0].ID)

	_, err = repo.Get(ctx, "t2", "ep_a")
	assert.ErrorIs(t, err, ErrEndpointNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "t2", "ep_a"), ErrEndpointNotFound)
	require.NoError(t, repo.Delete(ctx, "t1", "ep_a"))
}

func TestMemoryAuditRepoRing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepo(3)
	for i, tenant := range []string{"t1", "t2", "t1", "t1", "t1"} {
		require.NoError(t, repo.Insert(ctx, &model.SecurityAuditEvent{
			ID: string(rune('a' + i)), TenantID: tenant, Kind: model.AuditAuthSuccess,
		}))
	}

	entries, err := repo.List(ctx, "t1", 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"e", "d", "c"}, ids)
}

func TestRawJSONRoundTrip(t *testing.T) {
	src := `{"b":2,"a":[1,2,{"c":null}]}`
	var e model.Event
	require.NoError(t, json.Unmarshal([]byte(`{"payload":`+src+`}`), &e))
	assert.Equal(t, src, string(e.Payload))
}
