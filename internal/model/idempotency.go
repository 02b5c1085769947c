package model

import "time"

// DefaultIdempotencyLockTTL bounds how long an abandoned in-flight lock blocks its key.
const DefaultIdempotencyLockTTL = 30 * time.Second

// IdempotencyRecord is a cached response for a retried management call
// carrying X-Idempotency-Key.
type IdempotencyRecord struct {
	Status     int       `json:"status"`
	Body       []byte    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	Processing bool      `json:"processing"` // 正在处理中，用于防止并发竞争
}
