package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Patch results recorded by PatchesTotal.
const (
	PatchApplied  = "applied"
	PatchRejected = "rejected"
	PatchFailed   = "failed"
)

// Metrics provides observability for the citizens module.
// Tracks import volume, patch outcomes, graph edge churn and the duration of
// the operations that hold store locks.
type Metrics struct {
	ImportsCreated      prometheus.Counter
	CitizensImported    prometheus.Counter
	PatchesTotal        *prometheus.CounterVec
	EdgesChanged        *prometheus.CounterVec
	ImportDuration      prometheus.Histogram
	PatchDuration       prometheus.Histogram
	AggregationDuration *prometheus.HistogramVec
}

// New registers the citizens metrics with the default Prometheus registry.
// Call it once per process.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the citizens metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "census_imports_created_total",
			Help: "Total number of imports created",
		}),
		CitizensImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "census_citizens_imported_total",
			Help: "Total number of citizens stored by imports",
		}),
		PatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "census_citizen_patches_total",
			Help: "Citizen patches by result",
		}, []string{"result"}),
		EdgesChanged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "census_relative_edges_changed_total",
			Help: "Neighbor relative edges added or removed by patches",
		}, []string{"direction"}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "census_import_duration_seconds",
			Help:    "Duration of import validation and persistence",
			Buckets: durationBuckets,
		}),
		PatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "census_patch_duration_seconds",
			Help:    "Duration of citizen patches",
			Buckets: durationBuckets,
		}),
		AggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "census_aggregation_duration_seconds",
			Help:    "Duration of aggregate views by view name",
			Buckets: durationBuckets,
		}, []string{"view"}),
	}
}

// RecordImport counts a created import of size citizens.
func (m *Metrics) RecordImport(size int, start time.Time) {
	m.ImportsCreated.Inc()
	m.CitizensImported.Add(float64(size))
	m.ImportDuration.Observe(time.Since(start).Seconds())
}

// RecordPatch counts a patch outcome and its duration.
func (m *Metrics) RecordPatch(result string, start time.Time) {
	m.PatchesTotal.WithLabelValues(result).Inc()
	m.PatchDuration.Observe(time.Since(start).Seconds())
}

// RecordEdges counts neighbor edges touched by one patch.
func (m *Metrics) RecordEdges(added, removed int) {
	if added > 0 {
		m.EdgesChanged.WithLabelValues("added").Add(float64(added))
	}
	if removed > 0 {
		m.EdgesChanged.WithLabelValues("removed").Add(float64(removed))
	}
}

// ObserveAggregation records the duration of one aggregate view.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAggregation(view string, start time.Time) {
	m.AggregationDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}
