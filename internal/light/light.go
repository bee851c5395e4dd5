// Package light inventories a project without building a call graph: the
// sources of one language, the test and example files among them, and the
// fuzz executables that can be paired with their harness source by name.
package light

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"fuzzlens/internal/correlate"
	"fuzzlens/internal/crawler"
	"fuzzlens/internal/extractor"
	"fuzzlens/internal/index"
)

const (
	TestsFileName   = "all_tests.json"
	PairsFileName   = "all_pairs.json"
	SourcesFileName = "all_files.json"
	SourcesDir      = "source_files"
)

var testMarkers = []string{"test", "example"}

// Pair links a harness source file to the executable built from it.
type Pair struct {
	Source     string `json:"source" yaml:"source"`
	Executable string `json:"executable" yaml:"executable"`
}

// Result lists paths as found under the scanned root, sorted.
type Result struct {
	Root      string   `json:"root" yaml:"root"`
	Sources   []string `json:"sources" yaml:"sources"`
	Harnesses []string `json:"harnesses" yaml:"harnesses"`
	Tests     []string `json:"tests" yaml:"tests"`
	Pairs     []Pair   `json:"pairs" yaml:"pairs"`
}

type Options struct {
	Language   string
	Entrypoint string // empty: language default
	// BinDir holds built fuzz executables. Empty skips pairing.
	BinDir  string
	Workers int
	Logger  *slog.Logger
}

// Analyze walks root with the crawler's filters. A source naming the
// entrypoint is a harness. Any other source whose path below root mentions
// "test" or "example" is a test. A harness is paired with every executable
// in BinDir sharing its file stem.
func Analyze(ctx context.Context, root string, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ext, err := extractor.NewExtractor(opts.Language, extractor.Options{})
	if err != nil {
		return nil, err
	}
	if opts.Entrypoint == "" {
		opts.Entrypoint = index.DefaultEntrypoint(ext.Language())
	}

	paths, err := crawler.NewCrawler(ext, crawler.Options{Logger: opts.Logger}).Collect(root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	harness := make([]bool, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				opts.Logger.Warn("light.unreadable", "path", path, "err", err)
				return nil
			}
			harness[i] = bytes.Contains(data, []byte(opts.Entrypoint))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Root: root, Sources: paths, Harnesses: []string{}, Tests: []string{}, Pairs: []Pair{}}
	for i, path := range paths {
		if harness[i] {
			res.Harnesses = append(res.Harnesses, path)
			continue
		}
		if isTestPath(root, path) {
			res.Tests = append(res.Tests, path)
		}
	}

	if opts.BinDir != "" {
		bins, err := correlate.Executables(opts.BinDir)
		if err != nil {
			return nil, err
		}
		res.Pairs = pairByStem(res.Harnesses, bins)
	}

	opts.Logger.Info("light.done",
		"root", root,
		"sources", len(res.Sources),
		"harnesses", len(res.Harnesses),
		"tests", len(res.Tests),
		"pairs", len(res.Pairs),
	)
	return res, nil
}

func isTestPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = strings.ToLower(filepath.ToSlash(rel))
	for _, m := range testMarkers {
		if strings.Contains(rel, m) {
			return true
		}
	}
	return false
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func pairByStem(harnesses, bins []string) []Pair {
	byStem := make(map[string][]string)
	for _, h := range harnesses {
		byStem[stem(h)] = append(byStem[stem(h)], h)
	}
	pairs := []Pair{}
	for _, bin := range bins {
		for _, src := range byStem[filepath.Base(bin)] {
			pairs = append(pairs, Pair{Source: src, Executable: bin})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Source != pairs[j].Source {
			return pairs[i].Source < pairs[j].Source
		}
		return pairs[i].Executable < pairs[j].Executable
	})
	return pairs
}

// Write stores the result under dir: the test, pair and source listings as
// JSON, and a copy of every source below dir/source_files at its path
// relative to the scanned root.
func Write(res *Result, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for name, v := range map[string]any{
		TestsFileName:   res.Tests,
		PairsFileName:   res.Pairs,
		SourcesFileName: res.Sources,
	} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	for _, src := range res.Sources {
		rel, err := filepath.Rel(res.Root, src)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(src)
		}
		if err := copyFile(src, filepath.Join(dir, SourcesDir, rel)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
