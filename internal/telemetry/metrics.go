package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	SubmitCounter      = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_submitted_total", Help: "Total submission jobs accepted"})
	RateLimitRejects   = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_rate_limit_rejects_total", Help: "API requests rejected by rate limiter"})
	DeliveryConfirmed  = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_confirmed_total", Help: "Deliveries confirmed by a portal"})
	DeliveryRetried    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_retried_total", Help: "Delivery attempts that failed and were requeued"})
	DeliveryAbandoned  = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_abandoned_total", Help: "Jobs terminally failed"})
	AssemblyFailures   = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_assembly_failures_total", Help: "Package assembly or validation failures"})
	DeadlineWarnings   = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_deadline_warnings_total", Help: "Jobs delivered after their RFP deadline"})
	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "bids_audit_write_failures_total", Help: "Audit log writes that failed"})
	QueueDepthGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bids_queue_depth", Help: "Ready queue depth"})
	InFlightGauge      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bids_inflight", Help: "Jobs currently holding a delivery lease"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			SubmitCounter,
			RateLimitRejects,
			DeliveryConfirmed,
			DeliveryRetried,
			DeliveryAbandoned,
			AssemblyFailures,
			DeadlineWarnings,
			AuditWriteFailures,
			QueueDepthGauge,
			InFlightGauge,
		)
	})
	return promhttp.Handler()
}
