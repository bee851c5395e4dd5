package analysis

import (
	"context"
	"sort"

	"fuzzlens/internal/ir"
	"fuzzlens/internal/profile"
)

const (
	ChangeImpactName = "ChangeImpactAnalyser"

	DefaultImpactHops = 2
)

// ImpactedFunction is a function touched by, or calling into, a change.
type ImpactedFunction struct {
	Name      string           `json:"name" yaml:"name"`
	File      string           `json:"file" yaml:"file"`
	Status    profile.Status   `json:"status" yaml:"status"`
	ReachedBy []ir.FunctionKey `json:"reached_by,omitempty" yaml:"reached_by,omitempty"`
	Lines     []int            `json:"lines,omitempty" yaml:"lines,omitempty"`
	Hops      int              `json:"hops" yaml:"hops"`
}

type ChangeImpactResult struct {
	// Changed are functions containing a changed line.
	Changed []ImpactedFunction `json:"changed" yaml:"changed"`
	// Callers reach a changed function within the hop limit.
	Callers []ImpactedFunction `json:"callers" yaml:"callers"`
	// Harnesses are the entrypoints that reach any changed function.
	Harnesses []ir.FunctionKey `json:"harnesses" yaml:"harnesses"`
	// Unfuzzed counts changed functions no harness covers.
	Unfuzzed int `json:"unfuzzed" yaml:"unfuzzed"`
}

// ChangeImpactAnalyser maps changed lines to the functions that contain
// them and tells which harnesses exercise the change.
type ChangeImpactAnalyser struct{}

func NewChangeImpactAnalyser() *ChangeImpactAnalyser {
	return &ChangeImpactAnalyser{}
}

func (a *ChangeImpactAnalyser) Name() string      { return ChangeImpactName }
func (a *ChangeImpactAnalyser) Requires() []Input { return []Input{InputChanges} }

func (a *ChangeImpactAnalyser) Run(ctx context.Context, p *profile.Profile, opts Options) (any, error) {
	hops := opts.ImpactHops
	if hops <= 0 {
		hops = DefaultImpactHops
	}
	fns := p.Functions()

	// 1. Direct impact
	lines := make(map[ir.FunctionKey][]int)
	byKey := make(map[ir.FunctionKey]profile.FunctionProfile)
	for _, change := range opts.Changes {
		for _, line := range change.ChangedLines {
			fn, ok := enclosing(fns, change.Path, line)
			if !ok {
				continue
			}
			k := fn.Key()
			byKey[k] = fn
			lines[k] = append(lines[k], line)
		}
	}

	res := &ChangeImpactResult{
		Changed:   []ImpactedFunction{},
		Callers:   []ImpactedFunction{},
		Harnesses: []ir.FunctionKey{},
	}
	harnesses := make(map[ir.FunctionKey]bool)
	for k, fn := range byKey {
		res.Changed = append(res.Changed, impacted(fn, lines[k], 0))
		for _, e := range fn.ReachedBy {
			harnesses[e] = true
		}
		if fn.Status != profile.StatusCovered {
			res.Unfuzzed++
		}
	}

	// 2. Callers, breadth first up to the hop limit
	visited := make(map[ir.FunctionKey]bool, len(byKey))
	frontier := make([]ir.FunctionKey, 0, len(byKey))
	for k := range byKey {
		visited[k] = true
		frontier = append(frontier, k)
	}
	ir.SortKeys(frontier)
	for depth := 1; depth <= hops && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []ir.FunctionKey
		for _, k := range frontier {
			for _, e := range p.Callers(k) {
				if visited[e.From] {
					continue
				}
				visited[e.From] = true
				next = append(next, e.From)
				if fn, ok := p.Function(e.From); ok {
					res.Callers = append(res.Callers, impacted(fn, nil, depth))
				}
			}
		}
		ir.SortKeys(next)
		frontier = next
	}

	for k := range harnesses {
		res.Harnesses = append(res.Harnesses, k)
	}
	ir.SortKeys(res.Harnesses)
	sort.Slice(res.Changed, func(i, j int) bool {
		return keyOf(res.Changed[i]).Less(keyOf(res.Changed[j]))
	})
	sort.SliceStable(res.Callers, func(i, j int) bool {
		if res.Callers[i].Hops != res.Callers[j].Hops {
			return res.Callers[i].Hops < res.Callers[j].Hops
		}
		return keyOf(res.Callers[i]).Less(keyOf(res.Callers[j]))
	})
	return res, nil
}

func impacted(fn profile.FunctionProfile, lines []int, hops int) ImpactedFunction {
	if len(lines) > 0 {
		sort.Ints(lines)
	}
	return ImpactedFunction{
		Name:      fn.Name,
		File:      fn.File,
		Status:    fn.Status,
		ReachedBy: fn.ReachedBy,
		Lines:     lines,
		Hops:      hops,
	}
}

func keyOf(f ImpactedFunction) ir.FunctionKey {
	return ir.FunctionKey{Name: f.Name, File: f.File}
}
