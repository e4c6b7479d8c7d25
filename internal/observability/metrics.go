package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpRequestsTotal       *prometheus.CounterVec
	httpLatencySeconds      *prometheus.HistogramVec
	policyDecisionsTotal    *prometheus.CounterVec
	presenceUpdatesTotal    *prometheus.CounterVec
	presenceEventsTotal     *prometheus.CounterVec
	liveFeedClientsActive   prometheus.Gauge
	auditAppendedTotal      prometheus.Counter
	auditDroppedTotal       prometheus.Counter
	retentionDeletionsTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors for the presence API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "presence_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		policyDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_policy_decisions_total",
			Help: "Policy evaluation outcomes by outcome and reason code.",
		}, []string{"outcome", "reason"})

		presenceUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_updates_total",
			Help: "Presence records written, by source.",
		}, []string{"source"})

		presenceEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_events_total",
			Help: "Presence change events broadcast to live feed subscribers.",
		}, []string{"kind"})

		liveFeedClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_live_feed_clients_active",
			Help: "Currently connected live map feed subscribers.",
		})

		auditAppendedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_audit_appended_total",
			Help: "Audit entries appended to the disclosure log.",
		})

		auditDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_audit_dropped_total",
			Help: "Audit entries dropped because the buffer was full or the write failed.",
		})

		retentionDeletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_retention_deletions_total",
			Help: "Presence records deleted by the retention sweep and campus purges.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			policyDecisionsTotal,
			presenceUpdatesTotal,
			presenceEventsTotal,
			liveFeedClientsActive,
			auditAppendedTotal,
			auditDroppedTotal,
			retentionDeletionsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// PolicyDecisionsTotal exposes the decision outcome counter.
func PolicyDecisionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return policyDecisionsTotal
}

// PresenceUpdatesTotal exposes the presence write counter.
func PresenceUpdatesTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return presenceUpdatesTotal
}

// PresenceEventsTotal exposes the event broadcast counter.
func PresenceEventsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return presenceEventsTotal
}

// LiveFeedClientsActive exposes the live feed subscriber gauge.
func LiveFeedClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return liveFeedClientsActive
}

// AuditAppendedTotal exposes the audit append counter.
func AuditAppendedTotal() prometheus.Counter {
	RegisterMetrics()
	return auditAppendedTotal
}

// AuditDroppedTotal exposes the audit drop counter.
func AuditDroppedTotal() prometheus.Counter {
	RegisterMetrics()
	return auditDroppedTotal
}

// RetentionDeletionsTotal exposes the retention deletion counter.
func RetentionDeletionsTotal() prometheus.Counter {
	RegisterMetrics()
	return retentionDeletionsTotal
}
