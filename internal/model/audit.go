package model

import "time"

type AuditKind string

const (
	AuditAuthSuccess       AuditKind = "auth_success"
	AuditAuthFailure       AuditKind = "auth_failure"
	AuditAuthExpired       AuditKind = "auth_expired"
	AuditRateLimitExceeded AuditKind = "rate_limit_exceeded"
	AuditPermissionDenied  AuditKind = "permission_denied"
	AuditKeyRotated        AuditKind = "key_rotated"
	AuditKeyRevoked        AuditKind = "key_revoked"
	AuditRequestSigned     AuditKind = "request_signed"
	AuditRequestUnsigned   AuditKind = "request_unsigned"
	AuditSignatureInvalid  AuditKind = "signature_invalid"
	AuditSuspicious        AuditKind = "suspicious_activity"
)

// AuditSystemTenant partitions entries that could not be tied to a tenant.
const AuditSystemTenant = "system"

// SecurityAuditEvent 安全审计记录，只追加不修改
type SecurityAuditEvent struct {
	ID         string    `json:"id" gorm:"primaryKey"` // UUIDv7, sorts by time
	Kind       AuditKind `json:"kind" gorm:"type:text;not null"`
	TenantID   string    `json:"tenantId" gorm:"index:idx_audit_tenant_created,priority:1;not null"`
	KeyPrefix  string    `json:"keyPrefix,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Path       string    `json:"path,omitempty"`
	Method     string    `json:"method,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	Metadata   Metadata  `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"createdAt" gorm:"index:idx_audit_tenant_created,priority:2"`
}

func (SecurityAuditEvent) TableName() string { return "security_audit_events" }
