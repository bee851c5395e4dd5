package crawler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuzzlens/internal/extractor"
	"fuzzlens/internal/ir"
	"fuzzlens/internal/metrics"
)

func newCrawler(t *testing.T, workers int, m *metrics.Metrics) *Crawler {
	t.Helper()
	ext, err := extractor.NewExtractor("c", extractor.Options{})
	require.NoError(t, err)
	return NewCrawler(ext, Options{Workers: workers, Metrics: m})
}

func TestCrawler_Collect(t *testing.T) {
	c := newCrawler(t, 1, nil)
	root := filepath.Join("testdata", "tree")

	paths, err := c.Collect(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src", "broken.c"),
		filepath.Join(root, "src", "helper.c"),
		filepath.Join(root, "src", "main.c"),
	}, paths, "vendor, build and generated names are excluded")
}

func TestCrawler_ScanProject(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run("workers", func(t *testing.T) {
			m := metrics.New()
			c := newCrawler(t, workers, m)

			var files []*ir.SourceFile
			var skipped []ir.SkippedFile
			err := c.ScanProject(context.Background(), filepath.Join("testdata", "tree"),
				func(sf *ir.SourceFile) { files = append(files, sf) },
				func(s ir.SkippedFile) { skipped = append(skipped, s) },
			)
			require.NoError(t, err)

			assert.Len(t, files, 2)
			require.Len(t, skipped, 1)
			assert.Equal(t, filepath.Join("testdata", "tree", "src", "broken.c"), skipped[0].Path)
			assert.Equal(t, "syntax error", skipped[0].Reason)

			assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesParsed))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped.WithLabelValues("syntax error")))
		})
	}
}

func TestCrawler_MissingRoot(t *testing.T) {
	c := newCrawler(t, 1, nil)
	err := c.ScanProject(context.Background(), filepath.Join("testdata", "missing"),
		func(*ir.SourceFile) {}, func(ir.SkippedFile) {})
	assert.Error(t, err)
}
