package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/repository"
)

// ErrInvalidCredential covers missing, unknown, inactive and expired keys alike.
var ErrInvalidCredential = errors.New("invalid credential")

// RequestInfo carries the request attributes recorded in audit entries.
type RequestInfo struct {
	IP        string
	UserAgent string
	Path      string
	Method    string
}

func (i RequestInfo) auditEntry(kind model.AuditKind) *model.SecurityAuditEvent {
	return &model.SecurityAuditEvent{
		Kind:      kind,
		IP:        i.IP,
		UserAgent: i.UserAgent,
		Path:      i.Path,
		Method:    i.Method,
	}
}

// Principal is an authenticated caller.
type Principal struct {
	TenantID   string
	Plan       model.Plan
	Credential string
}

// KeyDirectory resolves credentials to tenants. Every call emits exactly one
// audit entry.
type KeyDirectory struct {
	keys  KeyStore
	audit Auditor
	now   func() time.Time
}

func NewKeyDirectory(keys KeyStore, audit Auditor) *KeyDirectory {
	return &KeyDirectory{keys: keys, audit: audit, now: time.Now}
}

func (d *KeyDirectory) Authenticate(ctx context.Context, credential string, info RequestInfo) (*Principal, error) {
	credential = strings.TrimSpace(credential)
	entry := info.auditEntry(model.AuditAuthFailure)
	entry.KeyPrefix = model.KeyPrefix(credential)
	entry.StatusCode = http.StatusUnauthorized
	defer func() {
		d.audit.Record(ctx, entry).Log(ctx, "path", info.Path)
	}()

	if credential == "" {
		entry.Error = "missing credential"
		return nil, ErrInvalidCredential
	}

	key, err := d.keys.GetKey(ctx, credential)
	switch {
	case errors.Is(err, repository.ErrKeyNotFound):
		entry.Error = "unknown credential"
		return nil, ErrInvalidCredential
	case err != nil:
		entry.Error = "credential lookup failed"
		entry.StatusCode = http.StatusInternalServerError
		entry.Metadata = model.Metadata{"reason": "store_error"}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	entry.TenantID = key.TenantID
	if !key.Active {
		entry.Error = "inactive credential"
		return nil, ErrInvalidCredential
	}
	if key.Expired(d.now()) {
		entry.Kind = model.AuditAuthExpired
		entry.Error = "expired credential"
		return nil, ErrInvalidCredential
	}

	entry.Kind = model.AuditAuthSuccess
	entry.StatusCode = 0
	return &Principal{TenantID: key.TenantID, Plan: key.Plan, Credential: credential}, nil
}
