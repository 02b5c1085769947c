package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/GoPolymarket/hookgate/internal/pkg/metrics"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"github.com/GoPolymarket/hookgate/internal/signer"
)

// Dispatcher hands an accepted event to forwarding without waiting for it.
type Dispatcher interface {
	Dispatch(evt *model.Event)
}

type IngestRequest struct {
	Body []byte
	// set by the transport when the body exceeded its read limit
	BodyTooLarge bool
	Credential   string
	Signature    string
	Timestamp    string
	Info         RequestInfo
}

type IngestResult struct {
	EventID string
	Usage   *UsageSnapshot
}

type IngestService struct {
	keys       *KeyDirectory
	verifier   *signer.Verifier
	validator  *SubmissionValidator
	guard      *IdempotencyGuard
	tenants    TenantStore
	events     EventStore
	gate       *UsageGate
	audit      Auditor
	dispatcher Dispatcher
	now        func() time.Time
}

func NewIngestService(
	keys *KeyDirectory,
	verifier *signer.Verifier,
	validator *SubmissionValidator,
	guard *IdempotencyGuard,
	tenants TenantStore,
	events EventStore,
	gate *UsageGate,
	audit Auditor,
	dispatcher Dispatcher,
) *IngestService {
	return &IngestService{
		keys:       keys,
		verifier:   verifier,
		validator:  validator,
		guard:      guard,
		tenants:    tenants,
		events:     events,
		gate:       gate,
		audit:      audit,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Ingest runs one submission through authentication, signature check,
// validation, idempotency, persistence, usage accounting and the business
// gates. Forwarding starts only once every step passed.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (res *IngestResult, err error) {
	defer func() {
		metrics.EventsIngested.WithLabelValues(resultLabel(err)).Inc()
	}()

	// 1. 认证
	principal, err := s.keys.Authenticate(ctx, req.Credential, req.Info)
	if errors.Is(err, ErrInvalidCredential) {
		return nil, apperrors.New(apperrors.ErrAuthFailed, "missing or invalid API key", nil).WithReason("invalid_credential")
	}
	if err != nil {
		return nil, apperrors.NewInternal("authentication unavailable", err)
	}
	log := logger.FromContext(ctx).With("tenant_id", principal.TenantID)

	if req.BodyTooLarge {
		return nil, apperrors.New(apperrors.ErrPayloadTooLarge, "request body too large", nil).WithReason("body_too_large")
	}

	// 2. 签名
	if err := s.checkSignature(ctx, principal, req); err != nil {
		return nil, err
	}

	// 3. 解析与校验
	sub, err := s.validator.Parse(req.Body, s.now())
	if err != nil {
		return nil, err
	}

	// 4. 幂等
	eventID := s.guard.Key(principal.TenantID, sub)
	seen, err := s.guard.Seen(ctx, principal.TenantID, eventID)
	if err != nil {
		return nil, apperrors.NewInternal("idempotency check failed", err)
	}
	if seen {
		return nil, duplicate(eventID)
	}

	tenant, err := s.tenants.Get(ctx, principal.TenantID)
	if err != nil {
		return nil, apperrors.NewInternal("tenant lookup failed", err)
	}

	// 5. 持久化
	evt := &model.Event{
		TenantID:   principal.TenantID,
		EventID:    eventID,
		EventType:  sub.EventType,
		Source:     sub.Source,
		ReceivedAt: sub.ReceivedAt,
		Payload:    sub.Payload,
		Status:     model.DeliveryPending,
	}
	if err := s.events.Insert(ctx, evt); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			return nil, duplicate(eventID)
		}
		return nil, apperrors.NewInternal("failed to persist event", err)
	}

	// 6. 计量
	used, err := s.tenants.IncrementUsage(ctx, principal.TenantID, 1)
	if err != nil {
		return nil, apperrors.NewInternal("failed to record usage", err)
	}

	// 7. 业务闸门
	snap, err := s.gate.Check(ctx, tenant, used, principal.Credential, req.Info)
	if err != nil {
		return nil, err
	}

	// 8. 异步转发
	s.dispatcher.Dispatch(evt.Clone())
	log.Debug("event accepted", "event_id", eventID, "event_type", evt.EventType)

	return &IngestResult{EventID: eventID, Usage: snap}, nil
}

func (s *IngestService) checkSignature(ctx context.Context, p *Principal, req IngestRequest) error {
	result := s.verifier.Verify(req.Body, p.Credential, req.Signature, req.Timestamp)

	entry := req.Info.auditEntry(model.AuditRequestSigned)
	entry.TenantID = p.TenantID
	entry.KeyPrefix = model.KeyPrefix(p.Credential)
	entry.Metadata = model.Metadata{"scheme": string(s.verifier.Scheme())}
	switch {
	case result.Valid:
	case result.Reason.Unsigned():
		entry.Kind = model.AuditRequestUnsigned
	default:
		entry.Kind = model.AuditSignatureInvalid
	}
	if !result.Valid {
		entry.StatusCode = 401
		entry.Error = string(result.Reason)
	}
	s.audit.Record(ctx, entry).Log(ctx)

	if result.Valid {
		return nil
	}
	return apperrors.New(apperrors.ErrAuthFailed, result.Reason.Message(), nil).WithReason(string(result.Reason))
}

func duplicate(eventID string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrDuplicateEvent, "event "+eventID+" already received", nil).WithReason("duplicate_event")
}

func resultLabel(err error) string {
	if err == nil {
		return "accepted"
	}
	return strings.ToLower(string(apperrors.Wrap(err).Type))
}
