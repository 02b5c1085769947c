package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_events_ingested_total",
		Help: "Ingestion outcomes by result code",
	}, []string{"result"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hookgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	GateRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_gate_rejects_total",
		Help: "Submissions rejected by plan, subscription or rate gates",
	}, []string{"reason"})

	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_delivery_attempts_total",
		Help: "Outbound delivery attempts by outcome",
	}, []string{"outcome"})

	DeliveryResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_delivery_results_total",
		Help: "Aggregate forwarding status per event",
	}, []string{"status"})

	DeliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hookgate_delivery_latency_seconds",
		Help:    "Single outbound attempt latency",
		Buckets: prometheus.DefBuckets,
	})

	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookgate_audit_dropped_total",
		Help: "Audit entries dropped because the queue was full",
	})

	RateLimitStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookgate_ratelimit_store_errors_total",
		Help: "Counter store failures seen by the rate limiter",
	})
)
