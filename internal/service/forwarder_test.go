package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/notify"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu      sync.Mutex
	notices []notify.DeliveryNotice
}

func (c *captureNotifier) Notify(_ context.Context, n notify.DeliveryNotice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, n)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

type forwarderFixture struct {
	fwd       *Forwarder
	endpoints *repository.MemoryEndpointRepo
	events    *repository.MemoryEventRepo
	notifier  *captureNotifier
	sleeps    *sleepRecorder
}

func newForwarderFixture(t *testing.T, timeout time.Duration) *forwarderFixture {
	t.Helper()
	f := &forwarderFixture{
		endpoints: repository.NewMemoryEndpointRepo(),
		events:    repository.NewMemoryEventRepo(),
		notifier:  &captureNotifier{},
		sleeps:    &sleepRecorder{},
	}
	f.fwd = NewForwarder(f.endpoints, f.events, f.notifier, ForwarderConfig{
		Timeout: timeout,
		Sleep:   f.sleeps.Sleep,
	})
	return f
}

func (f *forwarderFixture) addEndpoint(t *testing.T, id, url string) *model.Endpoint {
	t.Helper()
	ep := &model.Endpoint{ID: id, TenantID: testTenant, Name: id, URL: url, Active: true, CreatedAt: time.Now()}
	require.NoError(t, f.endpoints.Create(context.Background(), ep))
	return ep
}

func (f *forwarderFixture) storeEvent(t *testing.T, id string) *model.Event {
	t.Helper()
	evt := &model.Event{
		TenantID:   testTenant,
		EventID:    id,
		EventType:  "order.created",
		Source:     "shop",
		ReceivedAt: testNow,
		Payload:    model.RawJSON(`{"id":42}`),
		Status:     model.DeliveryPending,
	}
	require.NoError(t, f.events.Insert(context.Background(), evt))
	return evt
}

func TestForwarderPartialWhenOneEndpointTimesOut(t *testing.T) {
	var inFlight, maxInFlight int32
	track := func() func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		return func() { atomic.AddInt32(&inFlight, -1) }
	}

	var slowHits, okHits1, okHits2 int32
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer track()()
		atomic.AddInt32(&slowHits, 1)
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer slow.Close()
	ok := func(hits *int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer track()()
			atomic.AddInt32(hits, 1)
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
	}
	ok1, ok2 := ok(&okHits1), ok(&okHits2)
	defer ok1.Close()
	defer ok2.Close()

	f := newForwarderFixture(t, 400*time.Millisecond)
	f.addEndpoint(t, "ep_slow", slow.URL)
	f.addEndpoint(t, "ep_ok1", ok1.URL)
	f.addEndpoint(t, "ep_ok2", ok2.URL)
	evt := f.storeEvent(t, "evt-partial")

	res, err := f.fwd.Deliver(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryPartial, res.Status)
	assert.ElementsMatch(t, []string{slow.URL, ok1.URL, ok2.URL}, res.ForwardedTo)
	assert.Equal(t, 0, res.RetryCount, "timeouts are not retried")
	assert.Equal(t, http.StatusOK, res.LastResponseCode)

	assert.Equal(t, int32(1), atomic.LoadInt32(&slowHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&okHits1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&okHits2))
	assert.Equal(t, int32(3), atomic.LoadInt32(&maxInFlight), "endpoints must be called concurrently")

	stored, err := f.events.Get(context.Background(), testTenant, "evt-partial")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPartial, stored.Status)
	assert.Len(t, stored.ForwardedTo, 3)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "partial", f.notifier.notices[0].Status)
	assert.Empty(t, f.sleeps.waits)
}

func TestForwarderRetriesServerErrors(t *testing.T) {
	var attempts []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts = append(attempts, r.Header.Get(HeaderAttempt))
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newForwarderFixture(t, time.Second)
	f.addEndpoint(t, "ep_flaky", srv.URL)

	res, err := f.fwd.Deliver(context.Background(), f.storeEvent(t, "evt-retry"))
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryFailed, res.Status)
	mu.Lock()
	assert.Equal(t, []string{"1", "2", "3"}, attempts)
	mu.Unlock()
	assert.Equal(t, 2, res.RetryCount)
	assert.Equal(t, http.StatusServiceUnavailable, res.LastResponseCode)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps.waits)
}

func TestForwarderRecoversOnRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := newForwarderFixture(t, time.Second)
	f.addEndpoint(t, "ep_recover", srv.URL)

	res, err := f.fwd.Deliver(context.Background(), f.storeEvent(t, "evt-recover"))
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySuccess, res.Status)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, http.StatusAccepted, res.LastResponseCode)
}

func TestForwarderClientErrorIsTerminal(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newForwarderFixture(t, time.Second)
	f.addEndpoint(t, "ep_gone", srv.URL)

	res, err := f.fwd.Deliver(context.Background(), f.storeEvent(t, "evt-404"))
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryFailed, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, 0, res.RetryCount)
	assert.Equal(t, http.StatusNotFound, res.LastResponseCode)
}

func TestForwarderNoActiveEndpoints(t *testing.T) {
	f := newForwarderFixture(t, time.Second)
	res, err := f.fwd.Deliver(context.Background(), f.storeEvent(t, "evt-none"))
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySuccess, res.Status)
	assert.Empty(t, res.ForwardedTo)
}

type brokenEndpointStore struct {
	*repository.MemoryEndpointRepo
}

func (brokenEndpointStore) ListActive(context.Context, string) ([]*model.Endpoint, error) {
	return nil, errors.New("connection refused")
}

func TestForwarderListFailureMarksEventFailed(t *testing.T) {
	f := newForwarderFixture(t, time.Second)
	fwd := NewForwarder(brokenEndpointStore{f.endpoints}, f.events, f.notifier, ForwarderConfig{Sleep: f.sleeps.Sleep})

	res, err := fwd.Deliver(context.Background(), f.storeEvent(t, "evt-nolist"))
	require.Error(t, err)
	assert.Equal(t, model.DeliveryFailed, res.Status)
	assert.Empty(t, res.ForwardedTo)

	stored, err := f.events.Get(context.Background(), testTenant, "evt-nolist")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryFailed, stored.Status)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, string(model.DeliveryFailed), f.notifier.notices[0].Status)
}

func TestForwarderLimiterBookkeeping(t *testing.T) {
	f := newForwarderFixture(t, time.Second)
	fwd := f.fwd
	fwd.maxLimiters = 4

	paced := &model.Endpoint{ID: "ep_paced", RateLimit: 5}
	lim := fwd.limiterFor(paced)
	require.NotNil(t, lim)
	assert.Same(t, lim, fwd.limiterFor(paced))

	t.Run("rate change replaces limiter", func(t *testing.T) {
		changed := &model.Endpoint{ID: "ep_paced", RateLimit: 2}
		assert.NotSame(t, lim, fwd.limiterFor(changed))
	})

	t.Run("unpaced endpoint drops its entry", func(t *testing.T) {
		assert.Nil(t, fwd.limiterFor(&model.Endpoint{ID: "ep_paced"}))
		fwd.limMu.Lock()
		defer fwd.limMu.Unlock()
		assert.NotContains(t, fwd.limiters, "ep_paced")
	})

	t.Run("map stays bounded", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			require.NotNil(t, fwd.limiterFor(&model.Endpoint{ID: fmt.Sprintf("ep_%d", i), RateLimit: 1}))
		}
		fwd.limMu.Lock()
		defer fwd.limMu.Unlock()
		assert.LessOrEqual(t, len(fwd.limiters), 4)
		assert.Contains(t, fwd.limiters, "ep_49")
	})
}

func TestForwarderSendsEnvelopeAndHeaders(t *testing.T) {
	var (
		mu   sync.Mutex
		got  *http.Request
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		got = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newForwarderFixture(t, time.Second)
	f.addEndpoint(t, "ep_hdr", srv.URL)
	_, err := f.fwd.Deliver(context.Background(), f.storeEvent(t, "evt-hdr"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "hookgate/1.0", got.Header.Get("User-Agent"))
	assert.Equal(t, "evt-hdr", got.Header.Get(HeaderEventID))
	assert.Equal(t, "order.created", got.Header.Get(HeaderEventType))
	assert.Equal(t, testTenant, got.Header.Get(HeaderTenantID))
	assert.Equal(t, "1", got.Header.Get(HeaderAttempt))
	assert.NotEmpty(t, got.Header.Get(HeaderTimestamp))

	var env map[string]any
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "evt-hdr", env["eventId"])
	assert.Equal(t, "order.created", env["type"])
	assert.Equal(t, "shop", env["source"])
	assert.Equal(t, map[string]any{"id": float64(42)}, env["payload"])
	assert.Equal(t, "2026-03-14T12:00:00Z", env["receivedAt"])
}

func TestForwarderSkipsDeactivatedEndpoint(t *testing.T) {
	var hitsA, hitsB int32
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&hitsA, 1) }))
	b := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&hitsB, 1) }))
	defer a.Close()
	defer b.Close()

	f := newForwarderFixture(t, time.Second)
	f.addEndpoint(t, "ep_a", a.URL)
	epB := f.addEndpoint(t, "ep_b", b.URL)
	ctx := context.Background()

	_, err := f.fwd.Deliver(ctx, f.storeEvent(t, "evt-before"))
	require.NoError(t, err)

	epB.Active = false
	require.NoError(t, f.endpoints.Update(ctx, epB))

	res, err := f.fwd.Deliver(ctx, f.storeEvent(t, "evt-after"))
	require.NoError(t, err)
	assert.Equal(t, []string{a.URL}, res.ForwardedTo)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hitsA))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hitsB))

	before, err := f.events.Get(ctx, testTenant, "evt-before")
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySuccess, before.Status)
	assert.Len(t, before.ForwardedTo, 2)
}

func TestForwarderDispatchAndStop(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { atomic.AddInt32(&hits, 1) }))
	defer srv.Close()

	f := newForwarderFixture(t, time.Second)
	f.addEndpoint(t, "ep_async", srv.URL)

	f.fwd.Dispatch(f.storeEvent(t, "evt-async"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.fwd.Stop(ctx))

	stored, err := f.events.Get(context.Background(), testTenant, "evt-async")
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySuccess, stored.Status)

	f.fwd.Dispatch(f.storeEvent(t, "evt-late"))
	late, err := f.events.Get(context.Background(), testTenant, "evt-late")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPending, late.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestForwarderStopCancelsInFlight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := newForwarderFixture(t, 10*time.Second)
	f.addEndpoint(t, "ep_hang", srv.URL)
	f.fwd.Dispatch(f.storeEvent(t, "evt-hang"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.fwd.Stop(ctx), context.DeadlineExceeded)

	stored, err := f.events.Get(context.Background(), testTenant, "evt-hang")
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryFailed, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code    int
		outcome string
		retry   bool
	}{
		{200, "success", false},
		{204, "success", false},
		{302, "unexpected_status", true},
		{400, "client_error", false},
		{429, "client_error", false},
		{500, "server_error", true},
		{503, "server_error", true},
	}
	for _, tt := range tests {
		outcome, retry := classify(tt.code, nil)
		assert.Equal(t, tt.outcome, outcome, "code %d", tt.code)
		assert.Equal(t, tt.retry, retry, "code %d", tt.code)
	}

	outcome, retry := classify(0, context.DeadlineExceeded)
	assert.Equal(t, "timeout", outcome)
	assert.False(t, retry)
	outcome, retry = classify(0, context.Canceled)
	assert.Equal(t, "canceled", outcome)
	assert.False(t, retry)
}
