package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuzzlens/internal/coverage"
	"fuzzlens/internal/graph"
	"fuzzlens/internal/ir"
	"fuzzlens/internal/profile"
)

var (
	entry = ir.FunctionKey{Name: "LLVMFuzzerTestOneInput", File: "fuzzer.c"}
	parse = ir.FunctionKey{Name: "parse", File: "lib.c"}
	dead  = ir.FunctionKey{Name: "dead", File: "lib.c"}
)

func testProfile(t *testing.T, hits uint64) *profile.Profile {
	t.Helper()
	p := &ir.Project{
		Language:   ir.LanguageC,
		Root:       "/src/proj",
		Entrypoint: entry.Name,
		Files: []*ir.SourceFile{
			{Path: entry.File, Functions: []*ir.Function{{
				Name: entry.Name, File: entry.File, StartLine: 1, EndLine: 5,
				Calls: []*ir.CallSite{{Caller: entry, Callee: "parse", Line: 3, Targets: []ir.FunctionKey{parse}, Confidence: ir.ConfidenceExact, Resolver: "scope"}},
			}}},
			{Path: "lib.c", Functions: []*ir.Function{
				{Name: parse.Name, File: parse.File, StartLine: 1, EndLine: 9, Visibility: ir.VisibilityDefault},
				{Name: dead.Name, File: dead.File, StartLine: 11, EndLine: 12, Visibility: ir.VisibilityStatic},
			}},
		},
	}
	g, err := graph.Build(context.Background(), p, graph.DefaultOptions())
	require.NoError(t, err)
	feed := coverage.NewMapFeed(
		coverage.Record{Name: entry.Name, File: entry.File, Lines: []coverage.LineHits{{Line: 1, Hits: 7}}},
		coverage.Record{Name: parse.Name, File: parse.File, Lines: []coverage.LineHits{{Line: 2, Hits: hits}, {Line: 3, Hits: 0}}},
	)
	return profile.Build(g, feed, profile.Options{Binaries: map[string]string{"fuzzerLogFile-fuzzer.data": "out/fuzzer"}})
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveLoadProfile(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	want := testProfile(t, 12)
	runID, err := store.SaveProfile(ctx, want)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	got, err := store.LoadProfile(ctx, runID)
	require.NoError(t, err)

	assert.Equal(t, want.Dump(), got.Dump())
	assert.Equal(t, want.Snapshot(), got.Snapshot())

	f, ok := got.Function(parse)
	require.True(t, ok)
	assert.Equal(t, profile.StatusCovered, f.Status)
	assert.Equal(t, []ir.FunctionKey{entry}, f.ReachedBy)
	assert.Equal(t, uint64(12), f.Hits)

	eps := got.Entrypoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "out/fuzzer", eps[0].Binary)
	assert.Equal(t, 2, eps[0].Reached)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.SaveProfile(ctx, testProfile(t, 0))
	require.NoError(t, err)
	second, err := store.SaveProfile(ctx, testProfile(t, 4))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)
	assert.Equal(t, ir.LanguageC, runs[0].Language)
	assert.Equal(t, "/src/proj", runs[0].Root)
	assert.Equal(t, 3, runs[0].Functions)
	assert.False(t, runs[0].CreatedAt.IsZero())

	// Runs are independent snapshots.
	a, err := store.LoadProfile(ctx, first)
	require.NoError(t, err)
	fa, _ := a.Function(parse)
	assert.Equal(t, profile.StatusReachedUncovered, fa.Status)
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.LoadProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
