package graph

import "fuzzlens/internal/ir"

// ConfidenceCounts tallies edges by resolution confidence.
func (g *Graph) ConfidenceCounts() map[ir.Confidence]int {
	counts := make(map[ir.Confidence]int)
	if g == nil {
		return counts
	}
	for _, e := range g.Edges {
		conf := e.Confidence
		if conf == "" {
			conf = ir.ConfidenceNameOnly
		}
		counts[conf]++
	}
	return counts
}

// UnresolvedCount is the number of call sites that bound to no function.
func (g *Graph) UnresolvedCount() int {
	if g == nil || g.Project == nil {
		return 0
	}
	n := 0
	for _, cs := range g.Project.CallSites() {
		if !cs.Resolved() {
			n++
		}
	}
	return n
}
