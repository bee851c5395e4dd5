package analysis

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"fuzzlens/internal/profile"
)

// FarReachName is the registry name of FarReachLowCoverageAnalyser.
const FarReachName = "FarReachLowCoverageAnalyser"

// FarReachOptions are the filters of FarReachLowCoverageAnalyser. The zero
// value keeps every candidate.
type FarReachOptions struct {
	ExcludeStatic  bool `json:"exclude_static" yaml:"exclude_static"`
	OnlyReferenced bool `json:"only_referenced" yaml:"only_referenced"`
	OnlyHeader     bool `json:"only_header" yaml:"only_header"`
	// OnlyReached drops unreached functions from the tail of the ranking.
	OnlyReached bool `json:"only_reached" yaml:"only_reached"`
	// Interesting, when set, must accept a function for it to be kept.
	Interesting func(profile.FunctionProfile) bool `json:"-" yaml:"-"`
	// InterestingPatterns are regular expressions over the function name;
	// when non-empty one of them must match.
	InterestingPatterns []string `json:"interesting_patterns,omitempty" yaml:"interesting_patterns,omitempty"`
	MaxFunctions        int      `json:"max_functions" yaml:"max_functions"`
}

// FarReachEntry is one ranked function.
type FarReachEntry struct {
	Name       string         `json:"name" yaml:"name"`
	File       string         `json:"file" yaml:"file"`
	Status     profile.Status `json:"status" yaml:"status"`
	Reach      int            `json:"reach" yaml:"reach"`
	Depth      int            `json:"depth" yaml:"depth"`
	InDegree   int            `json:"in_degree" yaml:"in_degree"`
	Visibility string         `json:"visibility" yaml:"visibility"`
	Header     bool           `json:"header,omitempty" yaml:"header,omitempty"`
}

type FarReachResult struct {
	Functions []FarReachEntry `json:"functions" yaml:"functions"`
}

// FarReachLowCoverageAnalyser ranks functions with no coverage by how many
// entrypoints reach them. Reached but uncovered functions come first;
// functions no entrypoint reaches fill the tail.
type FarReachLowCoverageAnalyser struct{}

func NewFarReachLowCoverageAnalyser() *FarReachLowCoverageAnalyser {
	return &FarReachLowCoverageAnalyser{}
}

func (a *FarReachLowCoverageAnalyser) Name() string      { return FarReachName }
func (a *FarReachLowCoverageAnalyser) Requires() []Input { return nil }

func (a *FarReachLowCoverageAnalyser) Run(ctx context.Context, p *profile.Profile, opts Options) (any, error) {
	o := opts.FarReach
	patterns, err := compilePatterns(o.InterestingPatterns)
	if err != nil {
		return nil, err
	}

	var picked []profile.FunctionProfile
	for _, fn := range p.Functions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !candidate(fn, o) || !keep(fn, o, patterns) {
			continue
		}
		picked = append(picked, fn)
	}

	sort.SliceStable(picked, func(i, j int) bool {
		a, b := picked[i], picked[j]
		if len(a.ReachedBy) != len(b.ReachedBy) {
			return len(a.ReachedBy) > len(b.ReachedBy)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.File < b.File
	})
	if o.MaxFunctions > 0 && len(picked) > o.MaxFunctions {
		picked = picked[:o.MaxFunctions]
	}

	res := &FarReachResult{Functions: make([]FarReachEntry, 0, len(picked))}
	for _, fn := range picked {
		res.Functions = append(res.Functions, FarReachEntry{
			Name:       fn.Name,
			File:       fn.File,
			Status:     fn.Status,
			Reach:      len(fn.ReachedBy),
			Depth:      fn.Depth,
			InDegree:   fn.InDegree,
			Visibility: fn.Visibility,
			Header:     fn.Header,
		})
	}
	return res, nil
}

func candidate(fn profile.FunctionProfile, o FarReachOptions) bool {
	if fn.Entrypoint {
		return false
	}
	switch fn.Status {
	case profile.StatusReachedUncovered:
		return true
	case profile.StatusUnreached:
		return !o.OnlyReached && fn.Hits == 0
	}
	return false
}

func keep(fn profile.FunctionProfile, o FarReachOptions, patterns []*regexp.Regexp) bool {
	if o.ExcludeStatic && fn.Restricted() {
		return false
	}
	if o.OnlyReferenced && fn.InDegree == 0 {
		return false
	}
	if o.OnlyHeader && !fn.Header {
		return false
	}
	if o.Interesting != nil && !o.Interesting(fn) {
		return false
	}
	if len(patterns) == 0 {
		return true
	}
	for _, re := range patterns {
		if re.MatchString(fn.Name) {
			return true
		}
	}
	return false
}

func compilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		re, err := regexp.Compile(e)
		if err != nil {
			return nil, fmt.Errorf("interesting pattern %q: %w", e, err)
		}
		out = append(out, re)
	}
	return out, nil
}
