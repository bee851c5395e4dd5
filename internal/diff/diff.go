// Package diff compares two profiles function by function.
package diff

import (
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"fuzzlens/internal/ir"
	"fuzzlens/internal/profile"
)

// ReachabilityChange is a function that became reachable or unreachable.
type ReachabilityChange struct {
	Key       ir.FunctionKey   `json:"key" yaml:"key"`
	Before    bool             `json:"before" yaml:"before"`
	After     bool             `json:"after" yaml:"after"`
	ReachedBy []ir.FunctionKey `json:"reached_by,omitempty" yaml:"reached_by,omitempty"`
}

// CoverageChange is a function whose classification changed.
type CoverageChange struct {
	Key    ir.FunctionKey `json:"key" yaml:"key"`
	Before profile.Status `json:"before" yaml:"before"`
	After  profile.Status `json:"after" yaml:"after"`
}

// DeltaRecord is the structural difference between two profiles. Every
// list is sorted by function key.
type DeltaRecord struct {
	Added               []ir.FunctionKey     `json:"added" yaml:"added"`
	Removed             []ir.FunctionKey     `json:"removed" yaml:"removed"`
	ReachabilityChanged []ReachabilityChange `json:"reachability_changed" yaml:"reachability_changed"`
	CoverageChanged     []CoverageChange     `json:"coverage_changed" yaml:"coverage_changed"`
	EntrypointsAdded    []ir.FunctionKey     `json:"entrypoints_added" yaml:"entrypoints_added"`
	EntrypointsRemoved  []ir.FunctionKey     `json:"entrypoints_removed" yaml:"entrypoints_removed"`
}

// Empty reports whether the two profiles matched.
func (d *DeltaRecord) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 &&
		len(d.ReachabilityChanged) == 0 && len(d.CoverageChanged) == 0 &&
		len(d.EntrypointsAdded) == 0 && len(d.EntrypointsRemoved) == 0
}

// Diff matches functions of a and b by (name, file). A function present on
// one side only is an addition or removal and never a change.
func Diff(a, b *profile.Profile) *DeltaRecord {
	d := &DeltaRecord{}

	before := byKey(a.Functions())
	after := byKey(b.Functions())

	for k, fa := range before {
		fb, ok := after[k]
		if !ok {
			d.Removed = append(d.Removed, k)
			continue
		}
		if fa.Reachable() != fb.Reachable() {
			d.ReachabilityChanged = append(d.ReachabilityChanged, ReachabilityChange{
				Key:       k,
				Before:    fa.Reachable(),
				After:     fb.Reachable(),
				ReachedBy: fb.ReachedBy,
			})
		}
		if fa.Status != fb.Status {
			d.CoverageChanged = append(d.CoverageChanged, CoverageChange{Key: k, Before: fa.Status, After: fb.Status})
		}
	}
	for k := range after {
		if _, ok := before[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}

	epA := entrypointSet(a)
	epB := entrypointSet(b)
	for k := range epB {
		if !epA[k] {
			d.EntrypointsAdded = append(d.EntrypointsAdded, k)
		}
	}
	for k := range epA {
		if !epB[k] {
			d.EntrypointsRemoved = append(d.EntrypointsRemoved, k)
		}
	}

	ir.SortKeys(d.Added)
	ir.SortKeys(d.Removed)
	ir.SortKeys(d.EntrypointsAdded)
	ir.SortKeys(d.EntrypointsRemoved)
	sortByKey(d.ReachabilityChanged, func(c ReachabilityChange) ir.FunctionKey { return c.Key })
	sortByKey(d.CoverageChanged, func(c CoverageChange) ir.FunctionKey { return c.Key })
	return d
}

// TextDiff renders a line diff of the two profile dumps. Unchanged lines
// are omitted; changed lines carry a "-" or "+" prefix.
func TextDiff(a, b *profile.Profile) string {
	dmp := diffmatchpatch.New()
	ta, tb, lines := dmp.DiffLinesToChars(a.Dump(), b.Dump())
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ta, tb, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

func byKey(fns []profile.FunctionProfile) map[ir.FunctionKey]profile.FunctionProfile {
	out := make(map[ir.FunctionKey]profile.FunctionProfile, len(fns))
	for _, f := range fns {
		out[f.Key()] = f
	}
	return out
}

func entrypointSet(p *profile.Profile) map[ir.FunctionKey]bool {
	out := make(map[ir.FunctionKey]bool)
	for _, e := range p.Entrypoints() {
		out[e.Key()] = true
	}
	return out
}

func sortByKey[T any](items []T, key func(T) ir.FunctionKey) {
	sort.Slice(items, func(i, j int) bool { return key(items[i]).Less(key(items[j])) })
}
