package crawler

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"fuzzlens/internal/extractor"
	"fuzzlens/internal/ir"
	"fuzzlens/internal/metrics"
)

var (
	defaultIgnoredDirs = []string{".git", "vendor", "node_modules", "third_party", "build", "target", "__pycache__", ".venv"}
	generatedNameParts = []string{".pb.", "_generated"}
)

// Options configures a Crawler. Zero values select sequential parsing with
// the default logger.
type Options struct {
	Workers int
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Crawler scans a directory for source files of one language.
type Crawler struct {
	extractor *extractor.Extractor
	ignored   []string
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewCrawler creates a new crawler instance.
func NewCrawler(ext *extractor.Extractor, opts Options) *Crawler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Crawler{
		extractor: ext,
		ignored:   defaultIgnoredDirs,
		workers:   opts.Workers,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Collect returns the candidate source files under root in path order.
func (c *Crawler) Collect(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && c.isIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !c.extractor.Accepts(d.Name()) || isGeneratedName(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ScanProject parses every candidate file under root. Parsed files are
// streamed to onFile and unusable files to onSkip; both callbacks are
// serialized, so they may append to shared state without locking. A file
// that cannot be parsed never fails the scan.
func (c *Crawler) ScanProject(ctx context.Context, root string, onFile func(*ir.SourceFile), onSkip func(ir.SkippedFile)) error {
	paths, err := c.Collect(root)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sf, err := c.extractor.ExtractFromFile(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				reason := skipReason(err)
				c.logger.Warn("crawler.skip", "path", path, "reason", reason, "err", err)
				c.metrics.FileSkipped(reason)
				onSkip(ir.SkippedFile{Path: path, Reason: reason})
				return nil
			}
			c.metrics.FileParsed()
			onFile(sf)
			return nil
		})
	}
	return g.Wait()
}

func (c *Crawler) isIgnoredDir(name string) bool {
	for _, ign := range c.ignored {
		if name == ign {
			return true
		}
	}
	return false
}

func isGeneratedName(name string) bool {
	for _, part := range generatedNameParts {
		if strings.Contains(name, part) {
			return true
		}
	}
	return false
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, extractor.ErrSyntax):
		return "syntax error"
	case errors.Is(err, extractor.ErrFileTooLarge):
		return "file too large"
	case errors.Is(err, extractor.ErrGenerated):
		return "generated"
	case errors.Is(err, extractor.ErrParseTimeout):
		return "parse timeout"
	default:
		return "unreadable"
	}
}
