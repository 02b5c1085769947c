package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/notify"
	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
	"github.com/GoPolymarket/hookgate/internal/pkg/metrics"
	"github.com/GoPolymarket/hookgate/internal/signer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	HeaderEventID   = "X-Hookgate-Event-Id"
	HeaderEventType = "X-Hookgate-Event-Type"
	HeaderTenantID  = "X-Hookgate-Tenant-Id"
	HeaderAttempt   = "X-Hookgate-Attempt"
	HeaderTimestamp = "X-Hookgate-Timestamp"

	recordTimeout = 5 * time.Second

	// pacing state for endpoints idle this long is dropped when the map fills up
	limiterIdle         = 10 * time.Minute
	maxEndpointLimiters = 4096
)

type ForwarderConfig struct {
	Timeout          time.Duration
	MaxAttempts      int
	Backoff          []time.Duration
	UserAgent        string
	MaxResponseBytes int64
	Client           *http.Client
	// Sleep waits between attempts; tests replace it to skip real backoff.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *ForwarderConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if len(c.Backoff) == 0 {
		c.Backoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	if c.UserAgent == "" {
		c.UserAgent = "hookgate/1.0"
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 1024
	}
	if c.Client == nil {
		c.Client = &http.Client{}
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
}

// Forwarder fans accepted events out to every active endpoint of the tenant.
type Forwarder struct {
	endpoints EndpointStore
	events    EventStore
	notifier  notify.Notifier
	cfg       ForwarderConfig
	tracer    trace.Tracer

	limMu       sync.Mutex
	limiters    map[string]*endpointLimiter
	maxLimiters int

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	base    context.Context
	cancel  context.CancelFunc
}

type endpointLimiter struct {
	rps      float64
	lim      *rate.Limiter
	lastUsed time.Time
}

// attemptOutcome is the result of one endpoint's retry loop.
type attemptOutcome struct {
	url      string
	ok       bool
	code     int
	attempts int
}

func NewForwarder(endpoints EndpointStore, events EventStore, notifier notify.Notifier, cfg ForwarderConfig) *Forwarder {
	cfg.setDefaults()
	if notifier == nil {
		notifier = notify.Noop{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Forwarder{
		endpoints:   endpoints,
		events:      events,
		notifier:    notifier,
		cfg:         cfg,
		tracer:      otel.Tracer("github.com/GoPolymarket/hookgate/forwarder"),
		limiters:    make(map[string]*endpointLimiter),
		maxLimiters: maxEndpointLimiters,
		base:        base,
		cancel:      cancel,
	}
}

// Dispatch delivers evt in the background. It never blocks the caller.
func (f *Forwarder) Dispatch(evt *model.Event) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		logger.Warn("dispatch after shutdown, event left pending", "tenant_id", evt.TenantID, "event_id", evt.EventID)
		return
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		ctx := logger.NewContext(f.base, logger.With("tenant_id", evt.TenantID, "event_id", evt.EventID))
		if _, err := f.Deliver(ctx, evt); err != nil {
			logger.LogError(ctx, err, "delivery failed")
		}
	}()
}

// Stop refuses new dispatches and waits for in-flight deliveries. When ctx
// ends first, outstanding attempts are cancelled and their results recorded.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.cancel()
		return nil
	case <-ctx.Done():
		f.cancel()
		<-done
		return ctx.Err()
	}
}

// Deliver forwards evt to all active endpoints concurrently, records the
// aggregate result and notifies integrations.
func (f *Forwarder) Deliver(ctx context.Context, evt *model.Event) (model.DeliveryResult, error) {
	eps, err := f.endpoints.ListActive(ctx, evt.TenantID)
	if err != nil {
		// nothing was attempted; record it so the event does not stay pending
		logger.FromContext(ctx).Error("list endpoints failed, marking event failed",
			"tenant_id", evt.TenantID, "event_id", evt.EventID, "error", err)
		res := model.DeliveryResult{Status: model.DeliveryFailed, ForwardedTo: []string{}}
		if recErr := f.finish(ctx, evt, res); recErr != nil {
			return res, errors.Join(fmt.Errorf("list endpoints: %w", err), recErr)
		}
		return res, fmt.Errorf("list endpoints: %w", err)
	}

	body, err := json.Marshal(evt.Envelope())
	if err != nil {
		return model.DeliveryResult{}, fmt.Errorf("encode envelope: %w", err)
	}

	// outcomes arrive in completion order
	ch := make(chan attemptOutcome, len(eps))
	var wg sync.WaitGroup
	for _, ep := range eps {
		wg.Add(1)
		go func(ep *model.Endpoint) {
			defer wg.Done()
			ch <- f.deliverTo(ctx, ep, evt, body)
		}(ep)
	}
	wg.Wait()
	close(ch)

	outcomes := make([]attemptOutcome, 0, len(eps))
	for o := range ch {
		outcomes = append(outcomes, o)
	}
	res := aggregate(eps, outcomes)
	return res, f.finish(ctx, evt, res)
}

// finish records res on the event and notifies integrations. Recording
// survives cancellation of ctx.
func (f *Forwarder) finish(ctx context.Context, evt *model.Event, res model.DeliveryResult) error {
	metrics.DeliveryResults.WithLabelValues(string(res.Status)).Inc()

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := f.events.UpdateDelivery(recCtx, evt.TenantID, evt.EventID, res); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}

	notice := notify.DeliveryNotice{
		TenantID:         evt.TenantID,
		EventID:          evt.EventID,
		EventType:        evt.EventType,
		Status:           string(res.Status),
		ForwardedTo:      res.ForwardedTo,
		LastResponseCode: res.LastResponseCode,
		RetryCount:       res.RetryCount,
		At:               time.Now().UTC(),
	}
	BestEffort{Task: "notify", Err: f.notifier.Notify(recCtx, notice)}.Log(ctx)
	return nil
}

func aggregate(eps []*model.Endpoint, outcomes []attemptOutcome) model.DeliveryResult {
	res := model.DeliveryResult{Status: model.DeliverySuccess, ForwardedTo: []string{}}
	if len(eps) == 0 {
		return res
	}

	attempted := make(map[string]bool, len(outcomes))
	okCount := 0
	for _, o := range outcomes {
		if o.attempts > 0 {
			attempted[o.url] = true
			res.RetryCount += o.attempts - 1
		}
		if o.code > 0 {
			res.LastResponseCode = o.code
		}
		if o.ok {
			okCount++
		}
	}
	// endpoint order keeps forwarded_to stable across runs
	for _, ep := range eps {
		if attempted[ep.URL] {
			res.ForwardedTo = append(res.ForwardedTo, ep.URL)
			delete(attempted, ep.URL)
		}
	}

	switch okCount {
	case len(eps):
		res.Status = model.DeliverySuccess
	case 0:
		res.Status = model.DeliveryFailed
	default:
		res.Status = model.DeliveryPartial
	}
	return res
}

func (f *Forwarder) deliverTo(ctx context.Context, ep *model.Endpoint, evt *model.Event, body []byte) attemptOutcome {
	ctx, span := f.tracer.Start(ctx, "webhook.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("hookgate.tenant_id", evt.TenantID),
			attribute.String("hookgate.event_id", evt.EventID),
			attribute.String("hookgate.endpoint_id", ep.ID),
			attribute.String("url.full", ep.URL),
		))
	defer span.End()

	out := attemptOutcome{url: ep.URL}
	lim := f.limiterFor(ep)
	log := logger.FromContext(ctx).With("endpoint_id", ep.ID)

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.cfg.Sleep(ctx, f.backoff(attempt-1)); err != nil {
				break
			}
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				break
			}
		}

		code, err := f.post(ctx, ep, evt, body, attempt)
		out.attempts = attempt
		if code > 0 {
			out.code = code
		}

		outcome, retry := classify(code, err)
		metrics.DeliveryAttempts.WithLabelValues(outcome).Inc()
		if outcome == "success" {
			out.ok = true
			break
		}
		log.Debug("delivery attempt failed", "attempt", attempt, "outcome", outcome, "status", code)
		if !retry {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("hookgate.attempts", out.attempts),
		attribute.Int("http.response.status_code", out.code),
	)
	if out.ok {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "delivery failed")
	}
	return out
}

func (f *Forwarder) post(ctx context.Context, ep *model.Endpoint, evt *model.Event, body []byte, attempt int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set(HeaderEventID, evt.EventID)
	req.Header.Set(HeaderEventType, evt.EventType)
	req.Header.Set(HeaderTenantID, evt.TenantID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(attempt))
	req.Header.Set(HeaderTimestamp, signer.Timestamp(time.Now()))

	start := time.Now()
	resp, err := f.cfg.Client.Do(req)
	metrics.DeliveryLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// 只读取有限的响应体
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.cfg.MaxResponseBytes))
	return resp.StatusCode, nil
}

// classify labels an attempt and reports whether another attempt may follow.
func classify(code int, err error) (outcome string, retry bool) {
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, context.Canceled):
			return "canceled", false
		case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
			return "timeout", false
		default:
			return "network_error", true
		}
	}
	switch {
	case code >= 200 && code < 300:
		return "success", false
	case code >= 400 && code < 500:
		return "client_error", false
	case code >= 500:
		return "server_error", true
	default:
		return "unexpected_status", true
	}
}

// backoff returns the wait after the n-th attempt.
func (f *Forwarder) backoff(n int) time.Duration {
	if n-1 < len(f.cfg.Backoff) {
		return f.cfg.Backoff[n-1]
	}
	return f.cfg.Backoff[len(f.cfg.Backoff)-1]
}

func (f *Forwarder) limiterFor(ep *model.Endpoint) *rate.Limiter {
	f.limMu.Lock()
	defer f.limMu.Unlock()
	if ep.RateLimit <= 0 {
		delete(f.limiters, ep.ID)
		return nil
	}
	now := time.Now()
	if l, ok := f.limiters[ep.ID]; ok && l.rps == ep.RateLimit {
		l.lastUsed = now
		return l.lim
	}
	if _, ok := f.limiters[ep.ID]; !ok && len(f.limiters) >= f.maxLimiters {
		f.gcLimiters(now)
	}
	burst := int(math.Max(1, math.Ceil(ep.RateLimit)))
	l := &endpointLimiter{rps: ep.RateLimit, lim: rate.NewLimiter(rate.Limit(ep.RateLimit), burst), lastUsed: now}
	f.limiters[ep.ID] = l
	return l.lim
}

// gcLimiters drops idle entries. If every entry is recent it drops the least
// recently used half; a dropped endpoint only loses its accumulated burst.
func (f *Forwarder) gcLimiters(now time.Time) {
	for id, l := range f.limiters {
		if now.Sub(l.lastUsed) > limiterIdle {
			delete(f.limiters, id)
		}
	}
	if len(f.limiters) < f.maxLimiters {
		return
	}
	ids := make([]string, 0, len(f.limiters))
	for id := range f.limiters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return f.limiters[ids[i]].lastUsed.Before(f.limiters[ids[j]].lastUsed)
	})
	for _, id := range ids[:len(ids)/2+1] {
		delete(f.limiters, id)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
