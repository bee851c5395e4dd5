package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuzzlens/internal/ir"
)

type fakeResolver struct {
	name string
	fn   func(idx *Index, pending []*ir.CallSite) (ResolveStats, error)
}

func (f fakeResolver) Name() string { return f.name }
func (f fakeResolver) Resolve(idx *Index, pending []*ir.CallSite) (ResolveStats, error) {
	return f.fn(idx, pending)
}

func mkFn(name, file, vis string, calls ...*ir.CallSite) *ir.Function {
	f := &ir.Function{Name: name, File: file, Visibility: vis}
	for _, c := range calls {
		c.Caller = f.Key()
	}
	f.Calls = calls
	return f
}

func call(callee string, member bool) *ir.CallSite {
	return &ir.CallSite{Callee: callee, Member: member, Line: 1}
}

func TestResolverChain_Run(t *testing.T) {
	p := &ir.Project{
		Language: ir.LanguageC,
		Files: []*ir.SourceFile{{Path: "a.c", Functions: []*ir.Function{
			mkFn("a", "a.c", ir.VisibilityDefault, call("x", false), call("y", false)),
		}}},
	}

	r1 := fakeResolver{
		name: "r1",
		fn: func(_ *Index, pending []*ir.CallSite) (ResolveStats, error) {
			pending[0].Targets = []ir.FunctionKey{{Name: "x", File: "x.c"}}
			return ResolveStats{Attempted: 2, Resolved: 1, Skipped: 1}, nil
		},
	}
	r2 := fakeResolver{
		name: "r2",
		fn: func(_ *Index, pending []*ir.CallSite) (ResolveStats, error) {
			pending[0].Targets = []ir.FunctionKey{{Name: "y", File: "y.c"}}
			return ResolveStats{Attempted: 1, Resolved: 1, Skipped: 0}, nil
		},
	}

	chain := NewResolverChain(r1, r2)
	results := chain.Run(p)

	if len(results) != 2 {
		t.Fatalf("expected 2 stage results, got %d", len(results))
	}
	if results[0].Resolver != "r1" || results[1].Resolver != "r2" {
		t.Fatalf("unexpected resolver order: %+v", results)
	}
	if results[0].UnresolvedBefore != 2 || results[0].UnresolvedAfter != 1 {
		t.Fatalf("unexpected unresolved transition for r1: %+v", results[0])
	}
	if results[1].UnresolvedBefore != 1 || results[1].UnresolvedAfter != 0 {
		t.Fatalf("unexpected unresolved transition for r2: %+v", results[1])
	}
	if results[1].EdgeCount != 2 {
		t.Fatalf("expected 2 edges after r2, got %d", results[1].EdgeCount)
	}
}

func TestDefaultChain_C(t *testing.T) {
	entry := mkFn("LLVMFuzzerTestOneInput", "fuzzer.c", ir.VisibilityDefault,
		call("parse", false),
		call("memcpy", false),
		call("c.cb", true),
		call("helper", false),
	)
	parseA := mkFn("parse", "a.c", ir.VisibilityDefault)
	cb := mkFn("cb", "fuzzer.c", ir.VisibilityStatic)
	helperA := mkFn("helper", "a.c", ir.VisibilityStatic)
	helperB := mkFn("helper", "b.c", ir.VisibilityDefault)

	p := &ir.Project{
		Language: ir.LanguageC,
		Files: []*ir.SourceFile{
			{Path: "a.c", Functions: []*ir.Function{parseA, helperA}},
			{Path: "b.c", Functions: []*ir.Function{helperB}},
			{Path: "fuzzer.c", Functions: []*ir.Function{cb, entry}},
		},
	}

	results := NewDefaultChain().Run(p)
	require.Len(t, results, 3)
	assert.Equal(t, "scope", results[0].Resolver)
	assert.Equal(t, "file", results[1].Resolver)
	assert.Equal(t, "name", results[2].Resolver)

	t.Run("Unique global is exact", func(t *testing.T) {
		cs := entry.Calls[0]
		assert.Equal(t, []ir.FunctionKey{parseA.Key()}, cs.Targets)
		assert.Equal(t, ir.ConfidenceExact, cs.Confidence)
		assert.Equal(t, "scope", cs.Resolver)
	})

	t.Run("Unresolved external is kept", func(t *testing.T) {
		cs := entry.Calls[1]
		assert.False(t, cs.Resolved())
		assert.Equal(t, ir.ConfidenceNameOnly, cs.Confidence)
		assert.Empty(t, cs.Resolver)
	})

	t.Run("Member call binds in the same file", func(t *testing.T) {
		cs := entry.Calls[2]
		assert.Equal(t, []ir.FunctionKey{cb.Key()}, cs.Targets)
		assert.Equal(t, ir.ConfidenceSameFile, cs.Confidence)
	})

	t.Run("Static function in another file is invisible", func(t *testing.T) {
		cs := entry.Calls[3]
		assert.Equal(t, []ir.FunctionKey{helperB.Key()}, cs.Targets)
		assert.Equal(t, ir.ConfidenceExact, cs.Confidence)
	})
}

func TestDefaultChain_AmbiguousIsNameOnly(t *testing.T) {
	entry := mkFn("main", "main.c", ir.VisibilityDefault, call("init", false))
	a := mkFn("init", "a.c", ir.VisibilityDefault)
	b := mkFn("init", "b.c", ir.VisibilityDefault)
	p := &ir.Project{
		Language: ir.LanguageC,
		Files: []*ir.SourceFile{
			{Path: "a.c", Functions: []*ir.Function{a}},
			{Path: "b.c", Functions: []*ir.Function{b}},
			{Path: "main.c", Functions: []*ir.Function{entry}},
		},
	}

	NewDefaultChain().Run(p)
	cs := entry.Calls[0]
	assert.Equal(t, []ir.FunctionKey{a.Key(), b.Key()}, cs.Targets, "over-approximate: every candidate")
	assert.Equal(t, ir.ConfidenceNameOnly, cs.Confidence)
	assert.Equal(t, "name", cs.Resolver)
}

func TestDefaultChain_EnclosingScope(t *testing.T) {
	parse := mkFn("demo::Parser::parse", "p.cpp", ir.VisibilityDefault, call("validate", false))
	validate := mkFn("demo::Parser::validate", "p.cpp", ir.VisibilityDefault)
	other := mkFn("validate", "q.cpp", ir.VisibilityDefault)
	p := &ir.Project{
		Language: ir.LanguageCPP,
		Files: []*ir.SourceFile{
			{Path: "p.cpp", Functions: []*ir.Function{parse, validate}},
			{Path: "q.cpp", Functions: []*ir.Function{other}},
		},
	}

	NewDefaultChain().Run(p)
	cs := parse.Calls[0]
	assert.Equal(t, []ir.FunctionKey{validate.Key()}, cs.Targets)
	assert.Equal(t, ir.ConfidenceExact, cs.Confidence)
}

func TestScopedCandidates(t *testing.T) {
	idx := NewIndex(&ir.Project{Language: ir.LanguagePython})
	assert.Equal(t,
		[]string{"TestOneInput.inner", "inner"},
		idx.scopedCandidates("TestOneInput", "inner"))

	idx = NewIndex(&ir.Project{Language: ir.LanguageRust})
	assert.Equal(t,
		[]string{"Parser::parse::helper", "Parser::helper", "helper"},
		idx.scopedCandidates("Parser::parse", "helper"))
}
