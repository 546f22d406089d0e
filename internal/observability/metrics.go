package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	dequeueTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	activeSessions    prometheus.Gauge
	changesTracked    *prometheus.CounterVec
	snapshotsTotal    prometheus.Counter
	rollbackTotal     *prometheus.CounterVec
	rollbackFailures  prometheus.Counter
	rollbackDuration  prometheus.Histogram
	contentReadErrors prometheus.Counter

	registeredViews     prometheus.Gauge
	activeSubscriptions prometheus.Gauge
	reconcileTotal      *prometheus.CounterVec
	resolveFailures     prometheus.Counter
	documentsOpen       prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agentdiff_queue_size",
					Help: "Current scheduler queue size by lane.",
				},
				[]string{"lane"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentdiff_enqueue_total",
					Help: "Total scheduler enqueue operations by lane.",
				},
				[]string{"lane"},
			),
			dequeueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentdiff_dequeue_total",
					Help: "Total scheduler task completions by lane and status.",
				},
				[]string{"lane", "status"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentdiff_task_duration_seconds",
					Help:    "Scheduler task duration in seconds by lane.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"lane"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "agentdiff_active_sessions",
					Help: "Current active tracking session count.",
				},
			),
			changesTracked: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentdiff_changes_tracked_total",
					Help: "Total changes recorded by kind.",
				},
				[]string{"kind"},
			),
			snapshotsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "agentdiff_snapshots_total",
					Help: "Total snapshots produced by finished sessions.",
				},
			),
			rollbackTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentdiff_rollback_total",
					Help: "Total rollback operations by status.",
				},
				[]string{"status"},
			),
			rollbackFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "agentdiff_rollback_path_failures_total",
					Help: "Total per-path rollback failures.",
				},
			),
			rollbackDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agentdiff_rollback_duration_seconds",
					Help:    "Rollback duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			contentReadErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "agentdiff_content_read_errors_total",
					Help: "Content reads that failed for reasons other than a missing file.",
				},
			),
			registeredViews: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "agentdiff_registered_views",
					Help: "Current registered preview views across all paths.",
				},
			),
			activeSubscriptions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "agentdiff_active_subscriptions",
					Help: "Current installed document change subscriptions.",
				},
			),
			reconcileTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentdiff_reconcile_total",
					Help: "Total per-view reconciliation outcomes.",
				},
				[]string{"outcome"},
			),
			resolveFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "agentdiff_document_resolve_failures_total",
					Help: "Total live document resolutions that failed.",
				},
			),
			documentsOpen: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "agentdiff_documents_open",
					Help: "Current open live documents.",
				},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.dequeueTotal,
			m.taskDuration,
			m.activeSessions,
			m.changesTracked,
			m.snapshotsTotal,
			m.rollbackTotal,
			m.rollbackFailures,
			m.rollbackDuration,
			m.contentReadErrors,
			m.registeredViews,
			m.activeSubscriptions,
			m.reconcileTotal,
			m.resolveFailures,
			m.documentsOpen,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordQueueEnqueue(lane string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(lane).Inc()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetQueueSize(lane string, queueSize int) {
	m := getMetrics()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordQueueCompletion(lane string, duration time.Duration, success bool, queueSize int) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.dequeueTotal.WithLabelValues(lane, status).Inc()
	m.taskDuration.WithLabelValues(lane).Observe(duration.Seconds())
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordChangeTracked(kind string) {
	m := getMetrics()
	m.changesTracked.WithLabelValues(kind).Inc()
}

func RecordSnapshot() {
	m := getMetrics()
	m.snapshotsTotal.Inc()
}

func RecordRollback(duration time.Duration, failures int) {
	m := getMetrics()
	status := "success"
	if failures > 0 {
		status = "partial"
	}
	m.rollbackTotal.WithLabelValues(status).Inc()
	m.rollbackFailures.Add(float64(failures))
	m.rollbackDuration.Observe(duration.Seconds())
}

func RecordContentReadError() {
	m := getMetrics()
	m.contentReadErrors.Inc()
}

func AddRegisteredViews(delta int) {
	m := getMetrics()
	m.registeredViews.Add(float64(delta))
}

func AddActiveSubscriptions(delta int) {
	m := getMetrics()
	m.activeSubscriptions.Add(float64(delta))
}

func RecordReconcile(outcome string) {
	m := getMetrics()
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

func RecordResolveFailure() {
	m := getMetrics()
	m.resolveFailures.Inc()
}

func SetDocumentsOpen(count int) {
	m := getMetrics()
	m.documentsOpen.Set(float64(count))
}
