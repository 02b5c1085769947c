package model

import "time"

// APIKey is the credential a tenant's caller presents in x-api-key.
type APIKey struct {
	Key       string     `json:"key" gorm:"primaryKey"`
	TenantID  string     `json:"tenantId" gorm:"index;not null"`
	Plan      Plan       `json:"plan" gorm:"type:text;not null;default:'free'"` // snapshot, refreshed on plan change
	Active    bool       `json:"active" gorm:"not null"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (APIKey) TableName() string { return "api_keys" }

func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// KeyPrefix truncates a credential for logs and audit entries.
func KeyPrefix(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return key[:len(key)/2] + "…"
	}
	return key[:8] + "…"
}
