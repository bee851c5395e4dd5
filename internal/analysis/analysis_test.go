package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuzzlens/internal/coverage"
	"fuzzlens/internal/git"
	"fuzzlens/internal/graph"
	"fuzzlens/internal/ir"
	"fuzzlens/internal/metrics"
	"fuzzlens/internal/profile"
)

var (
	entry  = ir.FunctionKey{Name: "LLVMFuzzerTestOneInput", File: "fuzzer.cpp"}
	isPos  = ir.FunctionKey{Name: "isPositive", File: "sample.cpp"}
	clamp  = ir.FunctionKey{Name: "clamp", File: "sample.cpp"}
	unused = ir.FunctionKey{Name: "unusedHelper", File: "sample.cpp"}
	outer  = ir.FunctionKey{Name: "outer", File: "sample.cpp"}
	inner  = ir.FunctionKey{Name: "outer::inner", File: "sample.cpp"}
)

func def(key ir.FunctionKey, start, end int, vis string, calls ...*ir.CallSite) *ir.Function {
	return &ir.Function{Name: key.Name, File: key.File, StartLine: start, EndLine: end, Visibility: vis, Calls: calls}
}

func exact(caller, target ir.FunctionKey, line int) *ir.CallSite {
	return &ir.CallSite{Caller: caller, Callee: target.Name, Line: line, Targets: []ir.FunctionKey{target}, Confidence: ir.ConfidenceExact}
}

func sampleProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p := &ir.Project{
		Language:   ir.LanguageCPP,
		Root:       ".",
		Entrypoint: entry.Name,
		Files: []*ir.SourceFile{
			{Path: "fuzzer.cpp", Functions: []*ir.Function{
				def(entry, 5, 12, ir.VisibilityDefault,
					&ir.CallSite{Caller: entry, Callee: "memcpy", Line: 10, Confidence: ir.ConfidenceNameOnly},
					exact(entry, isPos, 11),
				),
			}},
			{Path: "sample.cpp", Functions: []*ir.Function{
				def(clamp, 1, 3, ir.VisibilityStatic),
				def(isPos, 7, 9, ir.VisibilityDefault),
				def(unused, 11, 13, ir.VisibilityDefault, exact(unused, clamp, 12)),
				def(outer, 20, 30, ir.VisibilityDefault),
				def(inner, 22, 25, ir.VisibilityDefault),
			}},
		},
	}
	g, err := graph.Build(context.Background(), p, graph.DefaultOptions())
	require.NoError(t, err)
	feed := coverage.NewMapFeed(coverage.Record{
		Name: entry.Name, File: entry.File,
		Lines: []coverage.LineHits{{Line: 5, Hits: 40}},
	})
	return profile.Build(g, feed, profile.Options{})
}

func names(res any) []string {
	var out []string
	for _, e := range res.(*FarReachResult).Functions {
		out = append(out, e.Name)
	}
	return out
}

func TestFarReach_Ranking(t *testing.T) {
	p := sampleProfile(t)
	a := NewFarReachLowCoverageAnalyser()
	ctx := context.Background()

	run := func(o FarReachOptions) any {
		t.Helper()
		res, err := a.Run(ctx, p, Options{FarReach: o})
		require.NoError(t, err)
		return res
	}

	t.Run("Reached uncovered outranks zero reach", func(t *testing.T) {
		res := run(FarReachOptions{})
		assert.Equal(t, []string{"isPositive", "clamp", "outer", "outer::inner", "unusedHelper"}, names(res))
		first := res.(*FarReachResult).Functions[0]
		assert.Equal(t, 1, first.Reach)
		assert.Equal(t, profile.StatusReachedUncovered, first.Status)
	})

	t.Run("Only reached", func(t *testing.T) {
		assert.Equal(t, []string{"isPositive"}, names(run(FarReachOptions{OnlyReached: true})))
	})

	t.Run("Exclude static", func(t *testing.T) {
		assert.NotContains(t, names(run(FarReachOptions{ExcludeStatic: true})), "clamp")
	})

	t.Run("Only referenced", func(t *testing.T) {
		assert.Equal(t, []string{"isPositive", "clamp"}, names(run(FarReachOptions{OnlyReferenced: true})))
	})

	t.Run("Top N", func(t *testing.T) {
		assert.Equal(t, []string{"isPositive", "clamp"}, names(run(FarReachOptions{MaxFunctions: 2})))
	})

	t.Run("Only header", func(t *testing.T) {
		res := run(FarReachOptions{OnlyHeader: true})
		assert.Empty(t, res.(*FarReachResult).Functions)
	})

	t.Run("Interesting", func(t *testing.T) {
		assert.Equal(t, []string{"outer", "outer::inner"},
			names(run(FarReachOptions{InterestingPatterns: []string{"^outer"}})))

		pred := func(f profile.FunctionProfile) bool { return f.Name == "unusedHelper" }
		assert.Equal(t, []string{"unusedHelper"}, names(run(FarReachOptions{Interesting: pred})))
	})

	t.Run("Bad pattern", func(t *testing.T) {
		_, err := a.Run(ctx, p, Options{FarReach: FarReachOptions{InterestingPatterns: []string{"("}}})
		assert.Error(t, err)
	})
}

func TestSourceCodeLine(t *testing.T) {
	p := sampleProfile(t)
	a := NewSourceCodeLineAnalyser()
	ctx := context.Background()

	t.Run("Innermost function wins", func(t *testing.T) {
		res, err := a.Run(ctx, p, Options{SourceFile: "sample.cpp", SourceLine: 23})
		require.NoError(t, err)
		assert.Equal(t, inner, res.(*SourceLineResult).Function.Key())
	})

	t.Run("Calls at the line and callers", func(t *testing.T) {
		res, err := a.Run(ctx, p, Options{SourceFile: "proj/sample.cpp", SourceLine: 12})
		require.NoError(t, err)
		r := res.(*SourceLineResult)
		assert.Equal(t, unused, r.Function.Key())
		require.Len(t, r.Calls, 1)
		assert.Equal(t, clamp, r.Calls[0].To)
		assert.Empty(t, r.Callers)

		res, err = a.Run(ctx, p, Options{SourceFile: "sample.cpp", SourceLine: 8})
		require.NoError(t, err)
		r = res.(*SourceLineResult)
		assert.Empty(t, r.Calls)
		require.Len(t, r.Callers, 1)
		assert.Equal(t, entry, r.Callers[0].From)
	})

	t.Run("No enclosing function", func(t *testing.T) {
		_, err := a.Run(ctx, p, Options{SourceFile: "sample.cpp", SourceLine: 100})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = a.Run(ctx, p, Options{SourceFile: "other.cpp", SourceLine: 8})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEntrypointSummary(t *testing.T) {
	res, err := NewEntrypointSummaryAnalyser().Run(context.Background(), sampleProfile(t), Options{})
	require.NoError(t, err)
	sums := res.([]EntrypointSummary)
	require.Len(t, sums, 1)
	assert.Equal(t, "fuzzerLogFile-fuzzer.data", sums[0].LogFile)
	assert.Equal(t, 2, sums[0].Reached)
	assert.Equal(t, 1, sums[0].Covered)
	assert.InDelta(t, 0.5, sums[0].Coverage, 1e-9)
}

type failing struct{}

func (failing) Name() string      { return "Failing" }
func (failing) Requires() []Input { return nil }
func (failing) Run(context.Context, *profile.Profile, Options) (any, error) {
	return nil, errors.New("boom")
}

func TestRegistry(t *testing.T) {
	p := sampleProfile(t)
	ctx := context.Background()
	m := metrics.New()
	r := NewDefaultRegistry(nil, m)

	assert.Equal(t, []string{SourceLineName, FarReachName, EntrypointSummaryName, ChangeImpactName}, r.Names())
	assert.ErrorIs(t, r.Register(NewFarReachLowCoverageAnalyser()), ErrDuplicate)
	require.NoError(t, r.Register(failing{}))

	t.Run("Run all", func(t *testing.T) {
		findings, err := r.RunAll(ctx, p, Options{})
		require.NoError(t, err)
		require.Len(t, findings, 5)

		assert.Equal(t, SourceLineName, findings[0].Analyzer)
		assert.Equal(t, "requires source-location", findings[0].Skipped)
		assert.Nil(t, findings[0].Result)

		assert.Equal(t, FarReachName, findings[1].Analyzer)
		assert.NotNil(t, findings[1].Result)
		assert.Equal(t, EntrypointSummaryName, findings[2].Analyzer)

		assert.Equal(t, "requires changed-lines", findings[3].Skipped)
		assert.Equal(t, "boom", findings[4].Error)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyzerRuns.WithLabelValues(SourceLineName, metrics.OutcomeSkipped)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyzerRuns.WithLabelValues("Failing", metrics.OutcomeError)))
	})

	t.Run("Run one", func(t *testing.T) {
		_, err := r.RunOne(ctx, "Nope", p, Options{})
		assert.ErrorIs(t, err, ErrAnalyzerNotFound)

		_, err = r.RunOne(ctx, SourceLineName, p, Options{})
		assert.ErrorIs(t, err, ErrMissingInput)

		_, err = r.RunOne(ctx, SourceLineName, p, Options{SourceFile: "sample.cpp", SourceLine: 99})
		assert.ErrorIs(t, err, ErrNotFound)

		f, err := r.RunOne(ctx, SourceLineName, p, Options{SourceFile: "sample.cpp", SourceLine: 8})
		require.NoError(t, err)
		assert.Equal(t, isPos, f.Result.(*SourceLineResult).Function.Key())
	})
}

func TestChangeImpact(t *testing.T) {
	p := sampleProfile(t)
	a := NewChangeImpactAnalyser()

	res, err := a.Run(context.Background(), p, Options{Changes: []git.ChangedFile{
		{Path: "sample.cpp", ChangedLines: []int{12, 8}},
		{Path: "fuzzer.cpp", ChangedLines: []int{200}},
	}})
	require.NoError(t, err)
	r := res.(*ChangeImpactResult)

	require.Len(t, r.Changed, 2)
	assert.Equal(t, isPos, keyOf(r.Changed[0]))
	assert.Equal(t, []int{8}, r.Changed[0].Lines)
	assert.Equal(t, unused, keyOf(r.Changed[1]))
	assert.Equal(t, 2, r.Unfuzzed)

	require.Len(t, r.Callers, 1)
	assert.Equal(t, entry, keyOf(r.Callers[0]))
	assert.Equal(t, 1, r.Callers[0].Hops)
	assert.Equal(t, []ir.FunctionKey{entry}, r.Harnesses)

	t.Run("Hop limit", func(t *testing.T) {
		res, err := a.Run(context.Background(), p, Options{
			Changes:    []git.ChangedFile{{Path: "sample.cpp", ChangedLines: []int{2}}},
			ImpactHops: 1,
		})
		require.NoError(t, err)
		r := res.(*ChangeImpactResult)
		require.Len(t, r.Changed, 1)
		assert.Equal(t, clamp, keyOf(r.Changed[0]))
		require.Len(t, r.Callers, 1)
		assert.Equal(t, unused, keyOf(r.Callers[0]))
		assert.Empty(t, r.Harnesses)
	})
}
