package scan

import (
	"github.com/mrsinham/dicomfolder/internal/hierarchy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes counted by Metrics.
const (
	outcomeIgnored   = "ignored"
	outcomeFolded    = "folded"
	outcomeDuplicate = "duplicate"
	outcomeConflict  = "conflict"
	outcomeSkipped   = "skipped"
)

// Metrics holds the Prometheus metrics of a Scanner.
type Metrics struct {
	FilesTotal    *prometheus.CounterVec
	NodesCreated  *prometheus.CounterVec
	ScanDuration  prometheus.Histogram
	ScansTotal    *prometheus.CounterVec
	LastInstances prometheus.Gauge
}

// NewMetrics creates the scan metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dicomfolder_files_total",
				Help: "Files seen by the walk, by outcome",
			},
			[]string{"outcome"},
		),
		NodesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dicomfolder_nodes_created_total",
				Help: "Hierarchy nodes created, by level",
			},
			[]string{"level"},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dicomfolder_scan_duration_seconds",
				Help:    "Duration of folder scans in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dicomfolder_scans_total",
				Help: "Folder scans, by status",
			},
			[]string{"status"},
		),
		LastInstances: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dicomfolder_last_scan_instances",
				Help: "Instances in the hierarchy built by the last scan",
			},
		),
	}
}

func (m *Metrics) file(outcome string) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(outcome).Inc()
}

// created counts every node a fold created, from level down to the instance.
func (m *Metrics) created(level hierarchy.Level) {
	if m == nil {
		return
	}
	for l := level; l <= hierarchy.LevelInstance; l++ {
		m.NodesCreated.WithLabelValues(l.String()).Inc()
	}
}

func (m *Metrics) done(seconds float64, status string, instances int) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(seconds)
	m.ScansTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.LastInstances.Set(float64(instances))
	}
}
