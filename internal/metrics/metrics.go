// Package metrics counts pipeline events on a private Prometheus registry.
// Every method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"fuzzlens/internal/ir"
)

const namespace = "fuzzlens"

// Analyzer run outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	Registry *prometheus.Registry

	FilesParsed   prometheus.Counter
	FilesSkipped  *prometheus.CounterVec
	CallSites     *prometheus.CounterVec
	AnalyzerRuns  *prometheus.CounterVec
	ReachableFunc prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FilesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_parsed_total",
			Help:      "Source files parsed by a frontend.",
		}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Source files skipped, by reason.",
		}, []string{"reason"}),
		CallSites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_sites_total",
			Help:      "Call sites after resolution, by confidence.",
		}, []string{"confidence", "resolved"}),
		AnalyzerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_runs_total",
			Help:      "Analyzer invocations, by analyzer and outcome.",
		}, []string{"analyzer", "outcome"}),
		ReachableFunc: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reachable_functions",
			Help:      "Functions reachable from at least one entrypoint in the last profile.",
		}),
	}
	m.Registry.MustRegister(m.FilesParsed, m.FilesSkipped, m.CallSites, m.AnalyzerRuns, m.ReachableFunc)
	return m
}

func (m *Metrics) FileParsed() {
	if m == nil {
		return
	}
	m.FilesParsed.Inc()
}

func (m *Metrics) FileSkipped(reason string) {
	if m == nil {
		return
	}
	m.FilesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) CallSite(cs *ir.CallSite) {
	if m == nil {
		return
	}
	m.CallSites.WithLabelValues(string(cs.Confidence), fmt.Sprint(cs.Resolved())).Inc()
}

func (m *Metrics) AnalyzerRun(name, outcome string) {
	if m == nil {
		return
	}
	m.AnalyzerRuns.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) SetReachable(n int) {
	if m == nil {
		return
	}
	m.ReachableFunc.Set(float64(n))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
