package resolver

import (
	"fuzzlens/internal/ir"
)

// ScopeResolver binds non-member calls by qualified name: first within the
// caller's file and enclosing scopes, then to a unique visible global.
type ScopeResolver struct{}

func NewScopeResolver() *ScopeResolver {
	return &ScopeResolver{}
}

func (r *ScopeResolver) Name() string {
	return "scope"
}

func (r *ScopeResolver) Resolve(idx *Index, pending []*ir.CallSite) (ResolveStats, error) {
	var stats ResolveStats
	for _, cs := range pending {
		if cs.Member {
			continue
		}
		stats.Attempted++
		if targets := r.lookup(idx, cs); len(targets) > 0 {
			bind(cs, targets, ir.ConfidenceExact, r.Name())
			stats.Resolved++
			continue
		}
		stats.Skipped++
	}
	return stats, nil
}

func (r *ScopeResolver) lookup(idx *Index, cs *ir.CallSite) []*ir.Function {
	candidates := idx.scopedCandidates(cs.Caller.Name, cs.Callee)
	for _, name := range candidates {
		var local []*ir.Function
		for _, fn := range idx.Named(name) {
			if fn.File == cs.Caller.File {
				local = append(local, fn)
			}
		}
		if len(local) > 0 {
			return local
		}
	}
	for _, name := range candidates {
		var global []*ir.Function
		for _, fn := range idx.Named(name) {
			if idx.Visible(fn, cs.Caller.File) {
				global = append(global, fn)
			}
		}
		switch len(global) {
		case 0:
			continue
		case 1:
			return global
		default:
			// Ambiguous across files; leave it to the weaker stages.
			return nil
		}
	}
	return nil
}

// FileResolver binds a call to every function in the caller's file sharing
// its short name. It covers member and pointer calls the scope stage cannot.
type FileResolver struct{}

func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

func (r *FileResolver) Name() string {
	return "file"
}

func (r *FileResolver) Resolve(idx *Index, pending []*ir.CallSite) (ResolveStats, error) {
	var stats ResolveStats
	for _, cs := range pending {
		stats.Attempted++
		if targets := idx.InFile(cs.Caller.File, cs.ShortName()); len(targets) > 0 {
			bind(cs, targets, ir.ConfidenceSameFile, r.Name())
			stats.Resolved++
			continue
		}
		stats.Skipped++
	}
	return stats, nil
}

// NameResolver binds a call to every visible function in the project with
// the same short name.
type NameResolver struct{}

func NewNameResolver() *NameResolver {
	return &NameResolver{}
}

func (r *NameResolver) Name() string {
	return "name"
}

func (r *NameResolver) Resolve(idx *Index, pending []*ir.CallSite) (ResolveStats, error) {
	var stats ResolveStats
	for _, cs := range pending {
		stats.Attempted++
		var targets []*ir.Function
		for _, fn := range idx.Short(cs.ShortName()) {
			if idx.Visible(fn, cs.Caller.File) {
				targets = append(targets, fn)
			}
		}
		if len(targets) > 0 {
			bind(cs, targets, ir.ConfidenceNameOnly, r.Name())
			stats.Resolved++
			continue
		}
		stats.Skipped++
	}
	return stats, nil
}

func bind(cs *ir.CallSite, targets []*ir.Function, conf ir.Confidence, resolver string) {
	cs.Targets = make([]ir.FunctionKey, 0, len(targets))
	for _, fn := range targets {
		cs.Targets = append(cs.Targets, fn.Key())
	}
	cs.Confidence = conf
	cs.Resolver = resolver
}
