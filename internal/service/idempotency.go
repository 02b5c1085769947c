package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DeriveEventID builds the content hash used when the client sends no eventId.
func DeriveEventID(tenantID, eventType string, receivedAt time.Time, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte(eventType))
	h.Write([]byte(receivedAt.UTC().Format(time.RFC3339Nano)))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// IdempotencyGuard answers whether a tenant already submitted an event id.
// The event store's unique key remains the final arbiter under races.
type IdempotencyGuard struct {
	events EventStore
}

func NewIdempotencyGuard(events EventStore) *IdempotencyGuard {
	return &IdempotencyGuard{events: events}
}

func (g *IdempotencyGuard) Key(tenantID string, sub *Submission) string {
	if sub.EventID != "" {
		return sub.EventID
	}
	return DeriveEventID(tenantID, sub.EventType, sub.ReceivedAt, sub.Payload)
}

func (g *IdempotencyGuard) Seen(ctx context.Context, tenantID, eventID string) (bool, error) {
	return g.events.Exists(ctx, tenantID, eventID)
}
