package graph

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fuzzlens/internal/ir"
)

// Graph is the call graph of one project plus entrypoint reachability.
// It is read-only once Build returns.
type Graph struct {
	Project     *ir.Project
	Nodes       []*Node
	Edges       []Edge
	Entrypoints []ir.FunctionKey

	opts  Options
	index map[ir.FunctionKey]int
	out   map[ir.FunctionKey][]int
	in    map[ir.FunctionKey][]int
}

// Build constructs the call graph of p and computes reachability from every
// entrypoint. Traversal of each entrypoint runs independently.
func Build(ctx context.Context, p *ir.Project, opts Options) (*Graph, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	g := &Graph{
		Project: p,
		opts:    opts,
		index:   make(map[ir.FunctionKey]int),
		out:     make(map[ir.FunctionKey][]int),
		in:      make(map[ir.FunctionKey][]int),
	}

	match := entryMatcher(p.Language, p.Entrypoint)
	for _, fn := range p.Functions() {
		key := fn.Key()
		if _, dup := g.index[key]; dup {
			continue
		}
		node := &Node{Function: fn, Key: key, Depth: Unreachable, Entrypoint: match(fn)}
		g.index[key] = len(g.Nodes)
		g.Nodes = append(g.Nodes, node)
		if node.Entrypoint {
			g.Entrypoints = append(g.Entrypoints, key)
		}
	}

	for _, cs := range p.CallSites() {
		for _, target := range cs.Targets {
			if _, ok := g.index[target]; !ok {
				continue
			}
			g.addEdge(Edge{
				From:       cs.Caller,
				To:         target,
				Line:       cs.Line,
				Confidence: cs.Confidence,
				Resolver:   cs.Resolver,
			})
		}
	}

	if err := g.computeReachability(ctx); err != nil {
		return nil, err
	}
	opts.Logger.Info("graph.build",
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"entrypoints", len(g.Entrypoints),
		"reachable", len(g.ReachableNodes()),
	)
	return g, nil
}

func (g *Graph) addEdge(e Edge) {
	g.out[e.From] = append(g.out[e.From], len(g.Edges))
	g.in[e.To] = append(g.in[e.To], len(g.Edges))
	g.Edges = append(g.Edges, e)
}

// traversable reports whether reachability may follow e.
func (g *Graph) traversable(e Edge) bool {
	return g.opts.FollowNameOnly || e.Confidence != ir.ConfidenceNameOnly
}

// computeReachability runs one BFS per entrypoint in parallel and merges the
// results in entrypoint order, so the outcome is independent of scheduling.
func (g *Graph) computeReachability(ctx context.Context) error {
	depths := make([]map[ir.FunctionKey]int, len(g.Entrypoints))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Workers)
	for i, entry := range g.Entrypoints {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			depths[i] = g.bfs(entry)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, entry := range g.Entrypoints {
		for _, node := range g.Nodes {
			d, ok := depths[i][node.Key]
			if !ok {
				continue
			}
			node.ReachedBy = append(node.ReachedBy, entry)
			if node.Depth == Unreachable || d < node.Depth {
				node.Depth = d
			}
		}
	}
	return nil
}

// bfs returns the call distance from entry to every node it reaches,
// including entry itself at depth zero.
func (g *Graph) bfs(entry ir.FunctionKey) map[ir.FunctionKey]int {
	seen := map[ir.FunctionKey]int{entry: 0}
	queue := []ir.FunctionKey{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ei := range g.out[cur] {
			e := g.Edges[ei]
			if !g.traversable(e) {
				continue
			}
			if _, ok := seen[e.To]; ok {
				continue
			}
			seen[e.To] = seen[cur] + 1
			queue = append(queue, e.To)
		}
	}
	return seen
}

// Node looks a node up by key.
func (g *Graph) Node(key ir.FunctionKey) (*Node, bool) {
	i, ok := g.index[key]
	if !ok {
		return nil, false
	}
	return g.Nodes[i], true
}

// Callees returns the outgoing edges of key in call-site order.
func (g *Graph) Callees(key ir.FunctionKey) []Edge {
	return g.collect(g.out[key])
}

// Callers returns the incoming edges of key in call-site order.
func (g *Graph) Callers(key ir.FunctionKey) []Edge {
	return g.collect(g.in[key])
}

func (g *Graph) collect(idx []int) []Edge {
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.Edges[i])
	}
	return out
}

// InDegree counts distinct callers of key other than key itself.
func (g *Graph) InDegree(key ir.FunctionKey) int {
	return distinct(g.Callers(key), key, func(e Edge) ir.FunctionKey { return e.From })
}

// OutDegree counts distinct callees of key other than key itself.
func (g *Graph) OutDegree(key ir.FunctionKey) int {
	return distinct(g.Callees(key), key, func(e Edge) ir.FunctionKey { return e.To })
}

func distinct(edges []Edge, self ir.FunctionKey, end func(Edge) ir.FunctionKey) int {
	seen := make(map[ir.FunctionKey]bool)
	for _, e := range edges {
		if k := end(e); k != self {
			seen[k] = true
		}
	}
	return len(seen)
}

// ReachableNodes returns the nodes reached by at least one entrypoint, in
// declaration order.
func (g *Graph) ReachableNodes() []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Reachable() {
			out = append(out, n)
		}
	}
	return out
}

// ReachableFrom returns the keys reached from entry, in declaration order.
func (g *Graph) ReachableFrom(entry ir.FunctionKey) []ir.FunctionKey {
	var out []ir.FunctionKey
	for _, n := range g.Nodes {
		for _, e := range n.ReachedBy {
			if e == entry {
				out = append(out, n.Key)
				break
			}
		}
	}
	return out
}
