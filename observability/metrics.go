package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clmsprep"

// Unit outcomes.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Metrics holds the Prometheus collectors of one pipeline run.
type Metrics struct {
	Units         *prometheus.CounterVec   // labels: stage, outcome={written,skipped,failed,dropped}
	StageDuration *prometheus.HistogramVec // labels: stage
	CloudFraction prometheus.Histogram

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Stage units (rasters or mosaic groups) by outcome.",
		}, []string{"stage", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of one stage run over every area and product.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"stage"}),
		CloudFraction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cloud_fraction",
			Help:      "Cloud fraction of each raster seen by the cloud filter.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

// NewMetrics creates the collectors and registers them with a fresh registry,
// which WriteTextfile exports.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.Units, m.StageDuration, m.CloudFraction)
	return m
}

// NewMetricsForTesting creates unregistered collectors.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
// It is a no-op for unregistered metrics or an empty path.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
