package analysis

import (
	"context"
	"fmt"
	"strings"

	"fuzzlens/internal/graph"
	"fuzzlens/internal/profile"
)

// SourceLineName is the registry name of SourceCodeLineAnalyser.
const SourceLineName = "SourceCodeLineAnalyser"

// SourceLineResult describes the function enclosing a source location.
type SourceLineResult struct {
	File     string                  `json:"file" yaml:"file"`
	Line     int                     `json:"line" yaml:"line"`
	Function profile.FunctionProfile `json:"function" yaml:"function"`
	// Calls are the outgoing edges made from the queried line.
	Calls []graph.Edge `json:"calls" yaml:"calls"`
	// Callers are the incoming edges of the enclosing function.
	Callers []graph.Edge `json:"callers" yaml:"callers"`
}

// SourceCodeLineAnalyser maps a (file, line) pair to the innermost function
// containing it.
type SourceCodeLineAnalyser struct{}

func NewSourceCodeLineAnalyser() *SourceCodeLineAnalyser {
	return &SourceCodeLineAnalyser{}
}

func (a *SourceCodeLineAnalyser) Name() string      { return SourceLineName }
func (a *SourceCodeLineAnalyser) Requires() []Input { return []Input{InputSourceLocation} }

func (a *SourceCodeLineAnalyser) Run(_ context.Context, p *profile.Profile, opts Options) (any, error) {
	fn, ok := enclosing(p.Functions(), opts.SourceFile, opts.SourceLine)
	if !ok {
		return nil, fmt.Errorf("%w: no function contains %s:%d", ErrNotFound, opts.SourceFile, opts.SourceLine)
	}

	res := &SourceLineResult{
		File:     opts.SourceFile,
		Line:     opts.SourceLine,
		Function: fn,
		Calls:    []graph.Edge{},
		Callers:  p.Callers(fn.Key()),
	}
	for _, e := range p.Callees(fn.Key()) {
		if e.Line == opts.SourceLine {
			res.Calls = append(res.Calls, e)
		}
	}
	return res, nil
}

// enclosing picks the function with the tightest span around line among
// those whose file matches path. Nested definitions win over their parents.
func enclosing(fns []profile.FunctionProfile, path string, line int) (profile.FunctionProfile, bool) {
	var best profile.FunctionProfile
	found := false
	for _, fn := range fns {
		if !matchesPath(fn.File, path) || !fn.Contains(line) {
			continue
		}
		if !found || fn.EndLine-fn.StartLine < best.EndLine-best.StartLine ||
			(fn.EndLine-fn.StartLine == best.EndLine-best.StartLine && fn.StartLine > best.StartLine) {
			best, found = fn, true
		}
	}
	return best, found
}

// matchesPath accepts exact paths and suffixes on a path separator so that
// "lib.c" finds "src/lib.c".
func matchesPath(file, path string) bool {
	file = strings.TrimPrefix(file, "./")
	path = strings.TrimPrefix(path, "./")
	if file == path {
		return true
	}
	return strings.HasSuffix(file, "/"+path) || strings.HasSuffix(path, "/"+file)
}
