package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuzzlens/internal/ir"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.FileParsed()
	m.FileParsed()
	m.FileSkipped("syntax error")
	m.CallSite(&ir.CallSite{Confidence: ir.ConfidenceExact, Targets: []ir.FunctionKey{{Name: "f"}}})
	m.CallSite(&ir.CallSite{Confidence: ir.ConfidenceNameOnly})
	m.AnalyzerRun("FarReachLowCoverageAnalyser", OutcomeOK)
	m.SetReachable(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesParsed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped.WithLabelValues("syntax error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallSites.WithLabelValues("exact", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallSites.WithLabelValues("name-only", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyzerRuns.WithLabelValues("FarReachLowCoverageAnalyser", OutcomeOK)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ReachableFunc))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FileParsed()
		m.FileSkipped("x")
		m.CallSite(&ir.CallSite{})
		m.AnalyzerRun("a", OutcomeError)
		m.SetReachable(1)
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.FileParsed()
	path := filepath.Join(t.TempDir(), "fuzzlens.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fuzzlens_files_parsed_total 1")
}
