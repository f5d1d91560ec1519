// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Polling metrics
	PhaseRefreshes     *prometheus.CounterVec
	BuyerRefreshes     *prometheus.CounterVec
	AdmissionRefreshes *prometheus.CounterVec

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Subscription metrics
	PurchaseEventsReceived prometheus.Counter
	PurchaseEventsDropped  prometheus.Counter
	WSReconnects           prometheus.Counter

	// Ledger client metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Archive metrics
	ArchiveWrites      *prometheus.CounterVec
	ArchiveWriteErrors *prometheus.CounterVec
	SnapshotsRecorded  prometheus.Counter

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
	TrackedBuyers         prometheus.Gauge
	PendingApplicants     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tokensale_coordinator"
	}

	return &Metrics{
		// Polling metrics
		PhaseRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "phase_refreshes_total",
			Help:      "Total number of phase snapshot refreshes by status",
		}, []string{"status"}),
		BuyerRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "buyer_refreshes_total",
			Help:      "Total number of buyer record refreshes by status",
		}, []string{"status"}),
		AdmissionRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "admission_refreshes_total",
			Help:      "Total number of applicant list refreshes by status",
		}, []string{"status"}),

		// Command metrics
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "total",
			Help:      "Total number of ledger commands by operation and status",
		}, []string{"operation", "status"}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Ledger command duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Subscription metrics
		PurchaseEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "purchase_events_received_total",
			Help:      "Total number of purchase notifications received",
		}),
		PurchaseEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "purchase_events_dropped_total",
			Help:      "Total number of purchase notifications dropped due to backpressure",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),

		// Ledger client metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of ledger RPC call errors by method",
		}, []string{"method"}),

		// Archive metrics
		ArchiveWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Total number of archive writes by kind",
		}, []string{"kind"}),
		ArchiveWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "write_errors_total",
			Help:      "Total number of archive write errors by kind",
		}, []string{"kind"}),
		SnapshotsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "snapshots_recorded_total",
			Help:      "Total number of sale snapshots recorded",
		}),

		// Health metrics
		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful phase refresh",
		}),
		TrackedBuyers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "tracked_buyers",
			Help:      "Current number of buyer records in the local view",
		}),
		PendingApplicants: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "pending_applicants",
			Help:      "Current number of pending seed applicants in the local view",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPhaseRefresh records a phase refresh outcome.
func RecordPhaseRefresh(ok bool) {
	DefaultMetrics.PhaseRefreshes.WithLabelValues(statusLabel(ok)).Inc()
	if ok {
		DefaultMetrics.LastSuccessfulRefresh.SetToCurrentTime()
	}
}

// RecordBuyerRefresh records a buyer refresh outcome.
func RecordBuyerRefresh(ok bool) {
	DefaultMetrics.BuyerRefreshes.WithLabelValues(statusLabel(ok)).Inc()
}

// RecordAdmissionRefresh records an applicant list refresh outcome.
func RecordAdmissionRefresh(ok bool) {
	DefaultMetrics.AdmissionRefreshes.WithLabelValues(statusLabel(ok)).Inc()
}

// RecordCommand records a ledger command outcome.
func RecordCommand(operation, status string, durationSeconds float64) {
	DefaultMetrics.CommandsTotal.WithLabelValues(operation, status).Inc()
	DefaultMetrics.CommandDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordPurchaseEvent increments the purchase events received counter.
func RecordPurchaseEvent() {
	DefaultMetrics.PurchaseEventsReceived.Inc()
}

// RecordPurchaseEventDropped increments the dropped events counter.
func RecordPurchaseEventDropped() {
	DefaultMetrics.PurchaseEventsDropped.Inc()
}

// RecordWSReconnect increments the WebSocket reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records an RPC call error.
func RecordRPCError(method string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
}

// RecordArchiveWrite records an archive write outcome.
func RecordArchiveWrite(kind string, err error) {
	DefaultMetrics.ArchiveWrites.WithLabelValues(kind).Inc()
	if err != nil {
		DefaultMetrics.ArchiveWriteErrors.WithLabelValues(kind).Inc()
	}
}

// RecordSnapshot increments the snapshots recorded counter.
func RecordSnapshot() {
	DefaultMetrics.SnapshotsRecorded.Inc()
}

// UpdateViewSizes updates the local view size gauges.
func UpdateViewSizes(buyers, pending int) {
	DefaultMetrics.TrackedBuyers.Set(float64(buyers))
	DefaultMetrics.PendingApplicants.Set(float64(pending))
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
