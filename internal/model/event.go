package model

import "time"

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryPartial DeliveryStatus = "partial"
)

const DefaultEventSource = "custom"

// Event is an accepted webhook submission. Payload never changes after insert;
// the delivery fields are written only by the forwarder.
type Event struct {
	TenantID         string         `json:"tenantId" gorm:"primaryKey"`
	EventID          string         `json:"eventId" gorm:"primaryKey"`
	EventType        string         `json:"eventType" gorm:"not null"`
	Source           string         `json:"source" gorm:"not null;default:'custom'"`
	ReceivedAt       time.Time      `json:"receivedAt" gorm:"index"`
	Payload          RawJSON        `json:"payload" gorm:"type:json;not null"` // json, not jsonb: keeps the bytes as sent
	Status           DeliveryStatus `json:"status" gorm:"type:text;not null;default:'pending'"`
	ForwardedTo      StringList     `json:"forwardedTo" gorm:"type:jsonb"`
	LastResponseCode int            `json:"lastResponseCode"`
	RetryCount       int            `json:"retryCount"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (Event) TableName() string { return "ingested_events" }

// DeliveryResult is the aggregate outcome recorded after forwarding.
type DeliveryResult struct {
	Status           DeliveryStatus `json:"status"`
	ForwardedTo      []string       `json:"forwardedTo"`
	LastResponseCode int            `json:"lastResponseCode"`
	RetryCount       int            `json:"retryCount"`
}

// Envelope is the body POSTed to every endpoint.
type Envelope struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	Payload    RawJSON   `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
	Source     string    `json:"source"`
}

func (e *Event) Envelope() Envelope {
	return Envelope{
		EventID:    e.EventID,
		Type:       e.EventType,
		Payload:    e.Payload,
		ReceivedAt: e.ReceivedAt,
		Source:     e.Source,
	}
}

func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Payload = append(RawJSON(nil), e.Payload...)
	cp.ForwardedTo = append(StringList(nil), e.ForwardedTo...)
	return &cp
}
