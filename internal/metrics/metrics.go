package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"micromanagerr/internal/services"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeCached  = "cached"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the run counters. Each instance owns its registry so tests
// and repeated CLI runs never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal           *prometheus.CounterVec
	ClassificationsTotal *prometheus.CounterVec
	TagOperationsTotal   *prometheus.CounterVec
	ProbeFailuresTotal   *prometheus.CounterVec
}

// New creates a Metrics instance with every counter registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "micromanagerr_scans_total",
				Help: "Files scanned, by outcome",
			},
			[]string{"outcome"},
		),
		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "micromanagerr_classifications_total",
				Help: "Classifications produced, by HDR kind",
			},
			[]string{"hdr_kind"},
		),
		TagOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "micromanagerr_tag_operations_total",
				Help: "Tag operations executed against an Arr app, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ProbeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "micromanagerr_probe_failures_total",
				Help: "Probe adapter failures, by source and error marker",
			},
			[]string{"source", "marker"},
		),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveScan counts one finished scan.
func (m *Metrics) ObserveScan(outcome string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(outcome).Inc()
}

// ObserveClassification counts one classification by its HDR kind.
func (m *Metrics) ObserveClassification(hdrKind string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(hdrKind).Inc()
}

// ObserveTagOperation counts one executed tag operation.
func (m *Metrics) ObserveTagOperation(kind string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.TagOperationsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveProbeFailure counts one adapter failure.
func (m *Metrics) ObserveProbeFailure(source string, err error) {
	if m == nil {
		return
	}
	m.ProbeFailuresTotal.WithLabelValues(source, markerLabel(err)).Inc()
}

func markerLabel(err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	case errors.Is(err, services.ErrExternalTool):
		return "external_tool"
	case errors.Is(err, services.ErrMalformedProbeOutput):
		return "malformed"
	default:
		return "other"
	}
}

// WriteTextfile writes the current counter values in the node-exporter
// textfile format. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
