package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciler metrics
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_job_runs_total",
			Help: "Total reconciler runs by job and result (success, error, skipped)",
		},
		[]string{"job", "result"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_job_duration_seconds",
			Help:    "Reconciler run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	DrainedKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_drained_keys_total",
			Help: "Total counter-store keys drained by job",
		},
		[]string{"job"},
	)

	SkippedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_skipped_records_total",
			Help: "Total malformed counter records skipped by job",
		},
		[]string{"job"},
	)

	BulkWriteDocsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_bulk_write_docs_total",
			Help: "Total documents written to the durable store by job",
		},
		[]string{"job"},
	)

	// Lock metrics
	LockContentionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_lock_contention_total",
			Help: "Total lock acquisitions skipped because the lock was held",
		},
		[]string{"lock"},
	)

	// Write-path metrics
	TrackEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_track_events_total",
			Help: "Total interaction events recorded by namespace",
		},
		[]string{"namespace"},
	)

	TrackErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_track_errors_total",
			Help: "Total write-path errors swallowed by namespace",
		},
		[]string{"namespace"},
	)

	// Backlog gauges, sampled by the Collector
	ProcessingBacklog = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analytics_processing_backlog",
			Help: "Keys awaiting drain acknowledgment per namespace",
		},
		[]string{"namespace"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobRunsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(DrainedKeysTotal)
	prometheus.MustRegister(SkippedRecordsTotal)
	prometheus.MustRegister(BulkWriteDocsTotal)
	prometheus.MustRegister(LockContentionTotal)
	prometheus.MustRegister(TrackEventsTotal)
	prometheus.MustRegister(TrackErrorsTotal)
	prometheus.MustRegister(ProcessingBacklog)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time into a histogram
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time into a labeled histogram
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
