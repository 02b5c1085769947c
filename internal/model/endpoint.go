package model

import "time"

// Endpoint is a tenant-configured forwarding destination.
type Endpoint struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TenantID string `json:"-" gorm:"index;not null"`
	Name     string `json:"name"`
	URL      string `json:"url" gorm:"not null"`
	Active   bool   `json:"active" gorm:"not null"`
	// outbound requests per second, 0 means unlimited
	RateLimit float64   `json:"rateLimit"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Endpoint) TableName() string { return "webhook_endpoints" }
