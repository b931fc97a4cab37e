// Package observability provides Prometheus metrics and column edit statistics
// for table editing sessions.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save outcomes.
const (
	OutcomeSaved         = "saved"
	OutcomeNothingToSave = "nothing_to_save"
	OutcomeInvalid       = "invalid"
	OutcomeFailed        = "failed"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	CellEdits          *prometheus.CounterVec
	Pastes             *prometheus.CounterVec
	PastedCells        *prometheus.CounterVec
	Saves              *prometheus.CounterVec
	SaveDuration       *prometheus.HistogramVec
	ValidationFailures *prometheus.CounterVec
	SourceRefreshes    *prometheus.CounterVec
	OpenSessions       *prometheus.GaugeVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CellEdits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabledit_cell_edits_total",
			Help: "Single-cell edits applied, by table and mode",
		}, []string{"table", "mode"}),
		Pastes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabledit_pastes_total",
			Help: "Clipboard pastes applied, by table and mode",
		}, []string{"table", "mode"}),
		PastedCells: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabledit_pasted_cells_total",
			Help: "Cells written by pastes, by table",
		}, []string{"table"}),
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabledit_saves_total",
			Help: "Save attempts, by table, mode and outcome",
		}, []string{"table", "mode", "outcome"}),
		SaveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabledit_save_duration_seconds",
			Help:    "Duration of successful saves",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"table", "mode"}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabledit_validation_failures_total",
			Help: "Cells with validation errors observed at save time",
		}, []string{"table"}),
		SourceRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tabledit_source_refreshes_total",
			Help: "Source reloads of edit sessions, by table",
		}, []string{"table"}),
		OpenSessions: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tabledit_open_sessions",
			Help: "Open sessions, by mode",
		}, []string{"mode"}),
	}
}
