// Package profile merges a call graph with coverage into the immutable
// analysis profile every analyzer and the diff engine consume.
package profile

import (
	"fmt"
	"strings"

	"fuzzlens/internal/coverage"
	"fuzzlens/internal/graph"
	"fuzzlens/internal/ir"
)

type Status string

const (
	StatusCovered          Status = "covered"
	StatusReachedUncovered Status = "reached-uncovered"
	StatusUnreached        Status = "unreached"
)

// FunctionProfile is the per-function view of a profile.
type FunctionProfile struct {
	Name       string           `json:"name" yaml:"name"`
	File       string           `json:"file" yaml:"file"`
	StartLine  int              `json:"start_line" yaml:"start_line"`
	EndLine    int              `json:"end_line" yaml:"end_line"`
	Visibility string           `json:"visibility" yaml:"visibility"`
	Header     bool             `json:"header,omitempty" yaml:"header,omitempty"`
	Arity      int              `json:"arity" yaml:"arity"`
	Entrypoint bool             `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Status     Status           `json:"status" yaml:"status"`
	ReachedBy  []ir.FunctionKey `json:"reached_by,omitempty" yaml:"reached_by,omitempty"`
	Depth      int              `json:"depth" yaml:"depth"`
	Hits       uint64           `json:"hits" yaml:"hits"`
	LinesHit   int              `json:"lines_hit" yaml:"lines_hit"`
	LinesTotal int              `json:"lines_total" yaml:"lines_total"`
	InDegree   int              `json:"in_degree" yaml:"in_degree"`
	OutDegree  int              `json:"out_degree" yaml:"out_degree"`
}

func (f FunctionProfile) Key() ir.FunctionKey {
	return ir.FunctionKey{Name: f.Name, File: f.File}
}

func (f FunctionProfile) Reachable() bool {
	return len(f.ReachedBy) > 0
}

// Restricted reports static or private linkage.
func (f FunctionProfile) Restricted() bool {
	return f.Visibility == ir.VisibilityStatic || f.Visibility == ir.VisibilityPrivate
}

func (f FunctionProfile) Contains(line int) bool {
	return line >= f.StartLine && line <= f.EndLine
}

func (f FunctionProfile) clone() FunctionProfile {
	f.ReachedBy = append([]ir.FunctionKey(nil), f.ReachedBy...)
	return f
}

// EntrypointInfo describes one fuzz harness of the profile.
type EntrypointInfo struct {
	Name    string `json:"name" yaml:"name"`
	File    string `json:"file" yaml:"file"`
	LogFile string `json:"log_file" yaml:"log_file"`
	// Binary is the executable paired with LogFile, when known.
	Binary  string `json:"binary,omitempty" yaml:"binary,omitempty"`
	Reached int    `json:"reached" yaml:"reached"`
	Covered int    `json:"covered" yaml:"covered"`
}

func (e EntrypointInfo) Key() ir.FunctionKey {
	return ir.FunctionKey{Name: e.Name, File: e.File}
}

type Options struct {
	// Binaries maps call-tree log file names to the executables that
	// produce them.
	Binaries map[string]string
}

// Profile is immutable once built; every accessor returns copies.
type Profile struct {
	language    ir.Language
	root        string
	entrypoint  string
	functions   []FunctionProfile
	edges       []graph.Edge
	entrypoints []EntrypointInfo

	index map[ir.FunctionKey]int
	out   map[ir.FunctionKey][]int
	in    map[ir.FunctionKey][]int
}

// Build classifies every graph node: unreached when no entrypoint reaches
// it, covered when reached with at least one hit, reached-uncovered
// otherwise. Missing coverage counts as zero hits.
func Build(g *graph.Graph, feed coverage.Feed, opts Options) *Profile {
	if feed == nil {
		feed = coverage.Empty{}
	}
	p := &Profile{
		language:   g.Project.Language,
		root:       g.Project.Root,
		entrypoint: g.Project.Entrypoint,
		edges:      append([]graph.Edge(nil), g.Edges...),
	}

	for _, n := range g.Nodes {
		fn := n.Function
		fp := FunctionProfile{
			Name:       n.Key.Name,
			File:       n.Key.File,
			StartLine:  fn.StartLine,
			EndLine:    fn.EndLine,
			Visibility: fn.Visibility,
			Header:     fn.Header,
			Arity:      fn.Arity(),
			Entrypoint: n.Entrypoint,
			ReachedBy:  append([]ir.FunctionKey(nil), n.ReachedBy...),
			Depth:      n.Depth,
			InDegree:   g.InDegree(n.Key),
			OutDegree:  g.OutDegree(n.Key),
		}
		if rec, ok := feed.Lookup(n.Key); ok {
			fp.Hits = rec.TotalHits()
			fp.LinesHit = rec.LinesHit()
			fp.LinesTotal = rec.LinesTotal()
		}
		fp.Status = classify(fp)
		p.functions = append(p.functions, fp)
	}

	logFiles := g.LogFiles()
	for _, e := range g.Entrypoints {
		info := EntrypointInfo{Name: e.Name, File: e.File, LogFile: logFiles[e]}
		info.Binary = opts.Binaries[info.LogFile]
		p.entrypoints = append(p.entrypoints, info)
	}

	p.reindex()
	return p
}

func classify(fp FunctionProfile) Status {
	switch {
	case !fp.Reachable():
		return StatusUnreached
	case fp.Hits > 0:
		return StatusCovered
	default:
		return StatusReachedUncovered
	}
}

// reindex rebuilds lookup tables and per-entrypoint counts.
func (p *Profile) reindex() {
	p.index = make(map[ir.FunctionKey]int, len(p.functions))
	p.out = make(map[ir.FunctionKey][]int)
	p.in = make(map[ir.FunctionKey][]int)
	for i, f := range p.functions {
		p.index[f.Key()] = i
	}
	for i, e := range p.edges {
		p.out[e.From] = append(p.out[e.From], i)
		p.in[e.To] = append(p.in[e.To], i)
	}

	reached := make(map[ir.FunctionKey]int)
	covered := make(map[ir.FunctionKey]int)
	for _, f := range p.functions {
		for _, e := range f.ReachedBy {
			reached[e]++
			if f.Status == StatusCovered {
				covered[e]++
			}
		}
	}
	for i := range p.entrypoints {
		k := p.entrypoints[i].Key()
		p.entrypoints[i].Reached = reached[k]
		p.entrypoints[i].Covered = covered[k]
	}
}

func (p *Profile) Language() ir.Language { return p.language }
func (p *Profile) Root() string          { return p.root }

// EntrypointName is the harness name the profile's entrypoints matched.
func (p *Profile) EntrypointName() string { return p.entrypoint }

// Functions returns every function in declaration order.
func (p *Profile) Functions() []FunctionProfile {
	out := make([]FunctionProfile, len(p.functions))
	for i, f := range p.functions {
		out[i] = f.clone()
	}
	return out
}

func (p *Profile) Function(key ir.FunctionKey) (FunctionProfile, bool) {
	i, ok := p.index[key]
	if !ok {
		return FunctionProfile{}, false
	}
	return p.functions[i].clone(), true
}

func (p *Profile) Entrypoints() []EntrypointInfo {
	return append([]EntrypointInfo(nil), p.entrypoints...)
}

func (p *Profile) Edges() []graph.Edge {
	return append([]graph.Edge(nil), p.edges...)
}

// Callees returns the outgoing edges of key in call-site order.
func (p *Profile) Callees(key ir.FunctionKey) []graph.Edge {
	return p.collect(p.out[key])
}

// Callers returns the incoming edges of key in call-site order.
func (p *Profile) Callers(key ir.FunctionKey) []graph.Edge {
	return p.collect(p.in[key])
}

func (p *Profile) collect(idx []int) []graph.Edge {
	out := make([]graph.Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, p.edges[i])
	}
	return out
}

// StatusCounts tallies functions by classification.
func (p *Profile) StatusCounts() map[Status]int {
	counts := map[Status]int{StatusCovered: 0, StatusReachedUncovered: 0, StatusUnreached: 0}
	for _, f := range p.functions {
		counts[f.Status]++
	}
	return counts
}

// Dump renders the profile as deterministic text, one record per line.
func (p *Profile) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "profile language=%s root=%s entrypoint=%s\n", p.language, p.root, p.entrypoint)
	for _, e := range p.entrypoints {
		fmt.Fprintf(&sb, "entrypoint %s %s log=%s binary=%s reached=%d covered=%d\n",
			e.Name, e.File, e.LogFile, orDash(e.Binary), e.Reached, e.Covered)
	}
	for _, f := range p.functions {
		fmt.Fprintf(&sb, "function %s %s status=%s reached_by=%d depth=%d hits=%d lines=%d/%d in=%d out=%d\n",
			f.Name, f.File, f.Status, len(f.ReachedBy), f.Depth, f.Hits, f.LinesHit, f.LinesTotal, f.InDegree, f.OutDegree)
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
