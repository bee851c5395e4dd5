// Package pipeline wires the frontend, graph, correlation and analyzers
// into one run driven entirely by explicit options.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fuzzlens/internal/analysis"
	"fuzzlens/internal/config"
	"fuzzlens/internal/correlate"
	"fuzzlens/internal/coverage"
	"fuzzlens/internal/git"
	"fuzzlens/internal/graph"
	"fuzzlens/internal/index"
	"fuzzlens/internal/ir"
	"fuzzlens/internal/metrics"
	"fuzzlens/internal/profile"
	"fuzzlens/internal/storage"
)

const (
	CoverageYAML    = "yaml"
	CoverageLLVMCov = "llvm-cov"
)

// Options drives one run. Nothing is read from package state.
type Options struct {
	Language   string
	Root       string
	Entrypoint string

	Workers        int
	FollowNameOnly bool
	MaxFileBytes   int64
	ParseTimeout   time.Duration

	// DumpFiles writes one call-tree file per entrypoint into OutDir.
	DumpFiles bool
	OutDir    string

	CoveragePath    string
	CoverageFormat  string
	CorrelationPath string

	// Analyzer selects one analyzer; empty runs every registered one.
	Analyzer        string
	AnalyzerOptions analysis.Options
	// ChangedSince, when set, feeds "git diff <ref>" of Root to the
	// change impact analyser.
	ChangedSince string
	// SkipAnalysis stops the run after the profile is built.
	SkipAnalysis bool

	// Store, when set, receives the finished profile.
	Store storage.ProfileStore

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// FromConfig maps a loaded configuration onto run options.
func FromConfig(cfg *config.Config) (Options, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Language:        cfg.Project.Language,
		Root:            cfg.Project.Root,
		Entrypoint:      cfg.Project.Entrypoint,
		Workers:         cfg.EffectiveWorkers(),
		FollowNameOnly:  cfg.Analysis.FollowNameOnly,
		MaxFileBytes:    cfg.Analysis.MaxFileBytes,
		ParseTimeout:    timeout,
		DumpFiles:       cfg.Analysis.DumpFiles,
		OutDir:          cfg.Analysis.OutDir,
		CoveragePath:    cfg.Coverage.Path,
		CoverageFormat:  cfg.Coverage.Format,
		CorrelationPath: cfg.Correlation.Path,
	}
	fr := &opts.AnalyzerOptions.FarReach
	fr.ExcludeStatic = cfg.FarReach.ExcludeStatic
	fr.OnlyReferenced = cfg.FarReach.OnlyReferenced
	fr.OnlyHeader = cfg.FarReach.OnlyHeader
	fr.OnlyReached = cfg.FarReach.OnlyReached
	fr.InterestingPatterns = cfg.FarReach.InterestingPatterns
	fr.MaxFunctions = cfg.FarReach.MaxFunctions
	return opts, nil
}

// Result holds every artifact of a run.
type Result struct {
	Project       *ir.Project
	Report        string
	Graph         *graph.Graph
	Profile       *profile.Profile
	Findings      []analysis.Finding
	CallTreeFiles []string
	RunID         string
}

type Runner struct {
	opts     Options
	logger   *slog.Logger
	registry *analysis.Registry
}

func NewRunner(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	return &Runner{
		opts:     opts,
		logger:   opts.Logger,
		registry: analysis.NewDefaultRegistry(opts.Logger, opts.Metrics),
	}
}

// Registry exposes the analyzer registry so callers can add analyzers
// before Run.
func (r *Runner) Registry() *analysis.Registry {
	return r.registry
}

// Run executes frontend, graph, correlation, coverage, profile and analyzer
// stages in order.
func Run(ctx context.Context, opts Options) (*Result, error) {
	return NewRunner(opts).Run(ctx)
}

func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	start := time.Now()

	if err := r.frontendStage(ctx, res); err != nil {
		return nil, err
	}
	if err := r.graphStage(ctx, res); err != nil {
		return nil, err
	}
	if r.opts.DumpFiles {
		if err := r.dumpStage(res); err != nil {
			return nil, err
		}
	}
	if err := r.profileStage(res); err != nil {
		return nil, err
	}
	if !r.opts.SkipAnalysis {
		if err := r.analysisStage(ctx, res); err != nil {
			return nil, err
		}
	}
	if r.opts.Store != nil {
		runID, err := r.opts.Store.SaveProfile(ctx, res.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}
		res.RunID = runID
	}

	r.logger.Info("pipeline.done",
		"functions", len(res.Graph.Nodes),
		"entrypoints", len(res.Graph.Entrypoints),
		"findings", len(res.Findings),
		"elapsed", time.Since(start),
	)
	return res, nil
}

func (r *Runner) frontendStage(ctx context.Context, res *Result) error {
	idx := index.NewIndexer(index.Options{
		Workers:      r.opts.Workers,
		MaxFileBytes: r.opts.MaxFileBytes,
		ParseTimeout: r.opts.ParseTimeout,
		Logger:       r.logger,
		Metrics:      r.opts.Metrics,
	})
	p, report, err := idx.Analyze(ctx, r.opts.Language, r.opts.Root, r.opts.Entrypoint)
	if err != nil {
		return err
	}
	res.Project, res.Report = p, report
	return nil
}

func (r *Runner) graphStage(ctx context.Context, res *Result) error {
	g, err := graph.Build(ctx, res.Project, graph.Options{
		FollowNameOnly: r.opts.FollowNameOnly,
		Workers:        r.opts.Workers,
		Logger:         r.logger,
	})
	if err != nil {
		return fmt.Errorf("graph build failed: %w", err)
	}
	res.Graph = g
	r.opts.Metrics.SetReachable(len(g.ReachableNodes()))
	if len(g.Entrypoints) == 0 {
		r.logger.Warn("pipeline.no_entrypoints", "entrypoint", res.Project.Entrypoint)
	}
	return nil
}

func (r *Runner) dumpStage(res *Result) error {
	if err := os.MkdirAll(r.opts.OutDir, 0o755); err != nil {
		return err
	}
	paths, err := res.Graph.WriteCallTrees(r.opts.OutDir)
	if err != nil {
		return fmt.Errorf("failed to write call trees: %w", err)
	}
	res.CallTreeFiles = paths
	return nil
}

func (r *Runner) profileStage(res *Result) error {
	feed, err := r.loadCoverage()
	if err != nil {
		return err
	}

	var binaries map[string]string
	if r.opts.CorrelationPath != "" {
		c, err := correlate.ReadFile(r.opts.CorrelationPath)
		if err != nil {
			return fmt.Errorf("failed to read correlation: %w", err)
		}
		binaries = c.Binaries()
	}

	res.Profile = profile.Build(res.Graph, feed, profile.Options{Binaries: binaries})
	counts := res.Profile.StatusCounts()
	r.logger.Info("pipeline.profile",
		"covered", counts[profile.StatusCovered],
		"reached_uncovered", counts[profile.StatusReachedUncovered],
		"unreached", counts[profile.StatusUnreached],
	)
	return nil
}

func (r *Runner) loadCoverage() (coverage.Feed, error) {
	if r.opts.CoveragePath == "" {
		return coverage.Empty{}, nil
	}
	var (
		feed *coverage.MapFeed
		err  error
	)
	switch r.opts.CoverageFormat {
	case "", CoverageYAML:
		feed, err = coverage.LoadFile(r.opts.CoveragePath)
	case CoverageLLVMCov:
		feed, err = coverage.LoadCovReportFile(r.opts.CoveragePath)
	default:
		return nil, fmt.Errorf("unknown coverage format %q", r.opts.CoverageFormat)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("pipeline.coverage", "path", r.opts.CoveragePath, "records", feed.Len())
	return feed, nil
}

func (r *Runner) analysisStage(ctx context.Context, res *Result) error {
	if r.opts.ChangedSince != "" {
		changes, err := git.GetChangedFiles(ctx, r.opts.Root, r.opts.ChangedSince)
		if err != nil {
			return err
		}
		r.logger.Info("pipeline.changes", "ref", r.opts.ChangedSince, "files", len(changes))
		r.opts.AnalyzerOptions.Changes = append(r.opts.AnalyzerOptions.Changes, changes...)
	}
	if r.opts.Analyzer != "" {
		f, err := r.registry.RunOne(ctx, r.opts.Analyzer, res.Profile, r.opts.AnalyzerOptions)
		if err != nil {
			return err
		}
		res.Findings = []analysis.Finding{f}
		return nil
	}
	findings, err := r.registry.RunAll(ctx, res.Profile, r.opts.AnalyzerOptions)
	if err != nil {
		return err
	}
	res.Findings = findings
	return nil
}
