package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePayload(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"user":     gofakeit.Username(),
		"email":    gofakeit.Email(),
		"ip":       gofakeit.IPv4Address(),
		"amount":   gofakeit.Price(1, 500),
		"session":  gofakeit.UUID(),
		"hostname": gofakeit.DomainName(),
	})
	require.NoError(t, err)
	return raw
}

func TestDeriveEventIDDistinguishesInputs(t *testing.T) {
	at := testNow
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		payload := fakePayload(t)
		id := DeriveEventID(testTenant, "user.login", at, payload)
		assert.Len(t, id, 64)
		assert.Equal(t, id, DeriveEventID(testTenant, "user.login", at, payload), "deterministic")
		assert.False(t, seen[id], "collision on %s", payload)
		seen[id] = true
	}

	payload := fakePayload(t)
	base := DeriveEventID("a", "t", at, payload)
	assert.NotEqual(t, base, DeriveEventID("b", "t", at, payload))
	assert.NotEqual(t, base, DeriveEventID("a", "u", at, payload))
	assert.NotEqual(t, base, DeriveEventID("a", "t", at.Add(time.Nanosecond), payload))
	// the same instant in another zone hashes the same
	assert.Equal(t, base, DeriveEventID("a", "t", at.In(time.FixedZone("X", 3600)), payload))
}

func TestIdempotencyGuardPrefersClientID(t *testing.T) {
	events := repository.NewMemoryEventRepo()
	g := NewIdempotencyGuard(events)
	ctx := context.Background()

	sub := &Submission{EventType: "x", EventID: "client-1", ReceivedAt: testNow, Payload: model.RawJSON(`{}`)}
	assert.Equal(t, "client-1", g.Key(testTenant, sub))

	sub.EventID = ""
	assert.Equal(t, DeriveEventID(testTenant, "x", testNow, []byte(`{}`)), g.Key(testTenant, sub))

	seen, err := g.Seen(ctx, testTenant, "client-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, events.Insert(ctx, &model.Event{TenantID: testTenant, EventID: "client-1", Payload: model.RawJSON(`{}`)}))
	seen, err = g.Seen(ctx, testTenant, "client-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = g.Seen(ctx, "tenant-2", "client-1")
	require.NoError(t, err)
	assert.False(t, seen, "ids are scoped per tenant")
}
