package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guild_stats"

// Recorder holds the ingestion counters. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	rowsIngested             prometheus.Counter
	rowsSkipped              *prometheus.CounterVec
	sheetsSkipped            prometheus.Counter
	uploads                  *prometheus.CounterVec
	cacheInvalidationFailure prometheus.Counter
}

// NewRecorder registers the counters on registry
func NewRecorder(registry *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: registry,
		rowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Player rows recorded from uploads.",
		}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows dropped during ingestion by reason.",
		}, []string{"reason"}),
		sheetsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_skipped_total",
			Help:      "Sheets whose header matched no known export format.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload requests by result.",
		}, []string{"result"}),
		cacheInvalidationFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidation_failures_total",
			Help:      "Post-upload cache invalidations that failed.",
		}),
	}

	registry.MustRegister(
		r.rowsIngested,
		r.rowsSkipped,
		r.sheetsSkipped,
		r.uploads,
		r.cacheInvalidationFailure,
	)
	return r
}

// RowsIngested adds recorded rows
func (r *Recorder) RowsIngested(n int) {
	if r == nil {
		return
	}
	r.rowsIngested.Add(float64(n))
}

// RowsSkipped adds skipped rows for one reason
func (r *Recorder) RowsSkipped(reason string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.rowsSkipped.WithLabelValues(reason).Add(float64(n))
}

// SheetsSkipped adds unrecognized sheets
func (r *Recorder) SheetsSkipped(n int) {
	if r == nil {
		return
	}
	r.sheetsSkipped.Add(float64(n))
}

// Upload counts one upload with result "success" or an error class
func (r *Recorder) Upload(result string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(result).Inc()
}

// CacheInvalidationFailed counts one failed invalidation
func (r *Recorder) CacheInvalidationFailed() {
	if r == nil {
		return
	}
	r.cacheInvalidationFailure.Inc()
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
