package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"fuzzlens/internal/metrics"
	"fuzzlens/internal/profile"
)

// Registry maps stable analyzer names to implementations, in registration
// order.
type Registry struct {
	mu        sync.RWMutex
	analyzers []Analyzer
	byName    map[string]Analyzer

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName:  make(map[string]Analyzer),
		logger:  logger,
		metrics: m,
	}
}

// NewDefaultRegistry returns a registry holding the built-in analyzers.
func NewDefaultRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	r := NewRegistry(logger, m)
	for _, a := range []Analyzer{
		NewSourceCodeLineAnalyser(),
		NewFarReachLowCoverageAnalyser(),
		NewEntrypointSummaryAnalyser(),
		NewChangeImpactAnalyser(),
	} {
		// Built-in names are distinct.
		_ = r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Analyzer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[a.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, a.Name())
	}
	r.byName[a.Name()] = a
	r.analyzers = append(r.analyzers, a)
	return nil
}

// Names lists registered analyzers in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		names = append(names, a.Name())
	}
	return names
}

func (r *Registry) Get(name string) (Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnalyzerNotFound, name)
	}
	return a, nil
}

// RunOne runs a single analyzer. Unknown names, missing inputs and analyzer
// failures are returned as errors.
func (r *Registry) RunOne(ctx context.Context, name string, p *profile.Profile, opts Options) (Finding, error) {
	a, err := r.Get(name)
	if err != nil {
		return Finding{}, err
	}
	if in, missing := missingInput(a, opts); missing {
		r.metrics.AnalyzerRun(name, metrics.OutcomeSkipped)
		return Finding{}, fmt.Errorf("%w: %s needs %s", ErrMissingInput, name, in)
	}
	res, err := a.Run(ctx, p, opts)
	if err != nil {
		r.metrics.AnalyzerRun(name, metrics.OutcomeError)
		return Finding{}, fmt.Errorf("analyzer %s: %w", name, err)
	}
	r.metrics.AnalyzerRun(name, metrics.OutcomeOK)
	return Finding{Analyzer: name, Result: res}, nil
}

// RunAll runs every registered analyzer concurrently and returns their
// findings in registration order. An analyzer that lacks input or fails is
// recorded in its Finding and does not stop the others.
func (r *Registry) RunAll(ctx context.Context, p *profile.Profile, opts Options) ([]Finding, error) {
	r.mu.RLock()
	analyzers := append([]Analyzer(nil), r.analyzers...)
	r.mu.RUnlock()

	findings := make([]Finding, len(analyzers))
	g, ctx := errgroup.WithContext(ctx)
	for i, a := range analyzers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f := Finding{Analyzer: a.Name()}
			if in, missing := missingInput(a, opts); missing {
				f.Skipped = fmt.Sprintf("requires %s", in)
				r.metrics.AnalyzerRun(a.Name(), metrics.OutcomeSkipped)
				r.logger.Debug("analysis.skip", "analyzer", a.Name(), "input", in)
				findings[i] = f
				return nil
			}
			res, err := a.Run(ctx, p, opts)
			if err != nil {
				f.Error = err.Error()
				r.metrics.AnalyzerRun(a.Name(), metrics.OutcomeError)
				r.logger.Warn("analysis.error", "analyzer", a.Name(), "err", err)
			} else {
				f.Result = res
				r.metrics.AnalyzerRun(a.Name(), metrics.OutcomeOK)
			}
			findings[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return findings, nil
}
