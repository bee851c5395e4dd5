package resolver

import (
	"fuzzlens/internal/ir"
)

type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

// CallResolver is one stage of call resolution. It is handed the call sites
// still lacking targets and fills in Targets, Confidence and Resolver on the
// ones it can resolve.
type CallResolver interface {
	Name() string
	Resolve(idx *Index, pending []*ir.CallSite) (ResolveStats, error)
}

type StageResult struct {
	Resolver         string
	Stats            ResolveStats
	UnresolvedBefore int
	UnresolvedAfter  int
	EdgeCount        int
	Err              error
}

type ResolverChain struct {
	resolvers []CallResolver
}

func NewResolverChain(resolvers ...CallResolver) *ResolverChain {
	return &ResolverChain{resolvers: resolvers}
}

// NewDefaultChain resolves by enclosing scope, then same file, then project
// wide short name.
func NewDefaultChain() *ResolverChain {
	return NewResolverChain(NewScopeResolver(), NewFileResolver(), NewNameResolver())
}

// Run resolves the call sites of p in place. Call sites left without a
// target are kept with name-only confidence.
func (c *ResolverChain) Run(p *ir.Project) []StageResult {
	if p == nil {
		return nil
	}
	idx := NewIndex(p)
	sites := p.CallSites()

	var out []StageResult
	for _, r := range c.resolvers {
		pending := unresolved(sites)
		stats, err := r.Resolve(idx, pending)
		out = append(out, StageResult{
			Resolver:         r.Name(),
			Stats:            stats,
			UnresolvedBefore: len(pending),
			UnresolvedAfter:  len(unresolved(sites)),
			EdgeCount:        edgeCount(sites),
			Err:              err,
		})
		if err != nil {
			break
		}
	}

	for _, cs := range unresolved(sites) {
		cs.Confidence = ir.ConfidenceNameOnly
		cs.Resolver = ""
	}
	return out
}

func unresolved(sites []*ir.CallSite) []*ir.CallSite {
	var out []*ir.CallSite
	for _, cs := range sites {
		if !cs.Resolved() {
			out = append(out, cs)
		}
	}
	return out
}

func edgeCount(sites []*ir.CallSite) int {
	n := 0
	for _, cs := range sites {
		n += len(cs.Targets)
	}
	return n
}
