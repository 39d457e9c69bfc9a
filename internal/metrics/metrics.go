// Package metrics records run statistics for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one run on a private registry
type Metrics struct {
	registry *prometheus.Registry

	SectionsTotal     prometheus.Counter
	PolylinesTotal    prometheus.Counter
	SamplesTotal      prometheus.Counter
	DivergencesTotal  prometheus.Counter
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	OSMRequestsTotal  prometheus.Counter
	IndexSegments     prometheus.Gauge
	DivergenceLengthM prometheus.Histogram
	PhaseDurationSecs *prometheus.GaugeVec
	LastRunTimestamp  prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pctdiff_sections_total",
			Help: "Reference sections compared",
		}),
		PolylinesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pctdiff_polylines_total",
			Help: "Reference polylines compared",
		}),
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pctdiff_samples_total",
			Help: "Sample points measured against the comparison dataset",
		}),
		DivergencesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pctdiff_divergences_total",
			Help: "Divergent stretches reported",
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pctdiff_cache_hits_total",
			Help: "Response cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pctdiff_cache_misses_total",
			Help: "Response cache misses",
		}),
		OSMRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pctdiff_osm_requests_total",
			Help: "HTTP requests sent to the OSM API",
		}),
		IndexSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pctdiff_index_segments",
			Help: "Segments in the spatial index",
		}),
		DivergenceLengthM: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pctdiff_divergence_length_meters",
			Help:    "Length of reported divergences in meters",
			Buckets: []float64{500, 1000, 2000, 5000, 10000, 20000, 50000},
		}),
		PhaseDurationSecs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pctdiff_phase_duration_seconds",
			Help: "Wall time of each run phase",
		}, []string{"phase"}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pctdiff_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}

	m.registry.MustRegister(
		m.SectionsTotal,
		m.PolylinesTotal,
		m.SamplesTotal,
		m.DivergencesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.OSMRequestsTotal,
		m.IndexSegments,
		m.DivergenceLengthM,
		m.PhaseDurationSecs,
		m.LastRunTimestamp,
	)
	return m
}

// ObservePhase records how long a phase took
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDurationSecs.WithLabelValues(phase).Set(d.Seconds())
}

// WriteFile writes the registry in text exposition format
func (m *Metrics) WriteFile(path string) error {
	m.LastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
