package graph

import (
	"log/slog"

	"fuzzlens/internal/ir"
)

// Unreachable is the depth recorded for nodes no entrypoint reaches.
const Unreachable = -1

// Node is a function vertex. Function points into the sealed project and
// must not be modified.
type Node struct {
	Function   *ir.Function
	Key        ir.FunctionKey
	Entrypoint bool
	// ReachedBy lists the entrypoints reaching this node, in entrypoint order.
	ReachedBy []ir.FunctionKey
	// Depth is the smallest call distance from any entrypoint.
	Depth int
}

// Reachable reports whether at least one entrypoint reaches the node.
func (n *Node) Reachable() bool {
	return len(n.ReachedBy) > 0
}

// Edge is one (call site, target) pair.
type Edge struct {
	From       ir.FunctionKey `json:"from" yaml:"from"`
	To         ir.FunctionKey `json:"to" yaml:"to"`
	Line       int            `json:"line" yaml:"line"`
	Confidence ir.Confidence  `json:"confidence" yaml:"confidence"`
	Resolver   string         `json:"resolver,omitempty" yaml:"resolver,omitempty"`
}

type Options struct {
	// FollowNameOnly controls whether reachability traverses edges resolved
	// by short name alone. The edges stay in the graph either way.
	FollowNameOnly bool
	Workers        int
	Logger         *slog.Logger
}

func DefaultOptions() Options {
	return Options{FollowNameOnly: true, Workers: 1}
}
