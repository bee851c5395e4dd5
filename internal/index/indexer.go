package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"fuzzlens/internal/crawler"
	"fuzzlens/internal/extractor"
	"fuzzlens/internal/ir"
	"fuzzlens/internal/metrics"
	"fuzzlens/internal/resolver"
)

// Options tunes a frontend run. The zero value parses sequentially with the
// default per-file bounds and resolver chain.
type Options struct {
	Workers      int
	MaxFileBytes int64
	ParseTimeout time.Duration
	Chain        *resolver.ResolverChain
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Indexer turns a source tree into a sealed, resolved Project.
type Indexer struct {
	opts Options
}

// NewIndexer creates a new indexer.
func NewIndexer(opts Options) *Indexer {
	if opts.Chain == nil {
		opts.Chain = resolver.NewDefaultChain()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Indexer{opts: opts}
}

// Analyze parses every source file of lang under root, resolves call sites
// and returns the project with its call-site report. An empty entrypoint
// selects the language default.
func Analyze(ctx context.Context, lang, root, entrypoint string) (*ir.Project, string, error) {
	return NewIndexer(Options{}).Analyze(ctx, lang, root, entrypoint)
}

func (i *Indexer) Analyze(ctx context.Context, lang, root, entrypoint string) (*ir.Project, string, error) {
	ext, err := extractor.NewExtractor(lang, extractor.Options{
		MaxFileBytes: i.opts.MaxFileBytes,
		ParseTimeout: i.opts.ParseTimeout,
	})
	if err != nil {
		return nil, "", err
	}
	if entrypoint == "" {
		entrypoint = DefaultEntrypoint(ext.Language())
	}

	p := &ir.Project{
		Language:   ext.Language(),
		Root:       root,
		Entrypoint: entrypoint,
	}
	c := crawler.NewCrawler(ext, crawler.Options{
		Workers: i.opts.Workers,
		Logger:  i.opts.Logger,
		Metrics: i.opts.Metrics,
	})
	err = c.ScanProject(ctx, root,
		func(sf *ir.SourceFile) { p.Files = append(p.Files, sf) },
		func(s ir.SkippedFile) { p.Skipped = append(p.Skipped, s) },
	)
	if err != nil {
		return nil, "", fmt.Errorf("scan failed: %w", err)
	}
	p.SortFiles()

	for _, stage := range i.opts.Chain.Run(p) {
		i.opts.Logger.Debug("index.resolve",
			"stage", stage.Resolver,
			"attempted", stage.Stats.Attempted,
			"resolved", stage.Stats.Resolved,
			"unresolved_before", stage.UnresolvedBefore,
			"unresolved_after", stage.UnresolvedAfter,
			"edges", stage.EdgeCount,
		)
		if stage.Err != nil {
			return nil, "", fmt.Errorf("resolver %s failed: %w", stage.Resolver, stage.Err)
		}
	}
	for _, cs := range p.CallSites() {
		i.opts.Metrics.CallSite(cs)
	}

	i.opts.Logger.Info("index.project",
		"language", p.Language,
		"root", root,
		"files", len(p.Files),
		"skipped", len(p.Skipped),
		"functions", len(p.Functions()),
	)
	return p, Report(p), nil
}

// DefaultEntrypoint returns the conventional fuzz harness name for lang.
func DefaultEntrypoint(lang ir.Language) string {
	switch lang {
	case ir.LanguageJVM:
		return "fuzzerTestOneInput"
	case ir.LanguagePython:
		return "TestOneInput"
	case ir.LanguageGo:
		return "Fuzz"
	case ir.LanguageRust:
		return extractor.RustFuzzTarget
	}
	return "LLVMFuzzerTestOneInput"
}

// Report renders the call-site report: for every function with at least one
// resolved call, a "<name> <file>" header followed by one indented
// "<callee> <file>" line per distinct resolved callee, in first-seen order.
func Report(p *ir.Project) string {
	var sb strings.Builder
	for _, fn := range p.Functions() {
		seen := make(map[ir.FunctionKey]bool)
		var targets []ir.FunctionKey
		for _, cs := range fn.Calls {
			for _, t := range cs.Targets {
				if !seen[t] {
					seen[t] = true
					targets = append(targets, t)
				}
			}
		}
		if len(targets) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s %s\n", fn.Name, fn.File)
		for _, t := range targets {
			fmt.Fprintf(&sb, "    %s %s\n", t.Name, t.File)
		}
	}
	return sb.String()
}

// SaveProject persists the project to a JSON file.
func SaveProject(p *ir.Project, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create project file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(p); err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	return nil
}

// LoadProject loads a project saved by SaveProject.
func LoadProject(path string) (*ir.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project file: %w", err)
	}
	defer f.Close()

	p := &ir.Project{}
	if err := json.NewDecoder(f).Decode(p); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}
	p.SortFiles()
	return p, nil
}
