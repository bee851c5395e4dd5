package graph

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fuzzlens/internal/ir"
)

// LogFileName is the conventional call-tree file for a harness source file:
// "fuzz_parser.cc" -> "fuzzerLogFile-fuzz-parser.data".
func LogFileName(harnessFile string) string {
	stem := strings.TrimSuffix(filepath.Base(harnessFile), filepath.Ext(harnessFile))
	return "fuzzerLogFile-" + strings.ReplaceAll(stem, "_", "-") + ".data"
}

// LogFiles maps every entrypoint to its call-tree file name. Entrypoints
// sharing a harness file are told apart by their short name.
func (g *Graph) LogFiles() map[ir.FunctionKey]string {
	perFile := make(map[string]int)
	for _, e := range g.Entrypoints {
		perFile[e.File]++
	}
	out := make(map[ir.FunctionKey]string, len(g.Entrypoints))
	for _, e := range g.Entrypoints {
		name := LogFileName(e.File)
		if perFile[e.File] > 1 {
			name = strings.TrimSuffix(name, ".data") + "-" + ir.ShortName(e.Name) + ".data"
		}
		out[e] = name
	}
	return out
}

// CallTree renders the call tree of entry: a "Call tree" header, the
// entrypoint at linenumber=-1, then every callee indented two spaces per
// depth with the caller's file and call line. A function is expanded once
// per tree; unresolved callees appear as leaves.
func (g *Graph) CallTree(entry ir.FunctionKey) (string, error) {
	root, ok := g.Node(entry)
	if !ok {
		return "", fmt.Errorf("no function %s in graph", entry)
	}

	var sb strings.Builder
	sb.WriteString("Call tree\n")
	fmt.Fprintf(&sb, "%s %s linenumber=-1\n", root.Key.Name, root.Key.File)

	visited := map[ir.FunctionKey]bool{entry: true}
	var walk func(fn *ir.Function, depth int)
	walk = func(fn *ir.Function, depth int) {
		indent := strings.Repeat("  ", depth+1)
		for _, cs := range fn.Calls {
			if !cs.Resolved() {
				fmt.Fprintf(&sb, "%s%s %s linenumber=%d\n", indent, cs.Callee, cs.Caller.File, cs.Line)
				continue
			}
			if !g.opts.FollowNameOnly && cs.Confidence == ir.ConfidenceNameOnly {
				continue
			}
			for _, t := range cs.Targets {
				node, ok := g.Node(t)
				if !ok || visited[t] {
					continue
				}
				visited[t] = true
				fmt.Fprintf(&sb, "%s%s %s linenumber=%d\n", indent, t.Name, cs.Caller.File, cs.Line)
				walk(node.Function, depth+1)
			}
		}
	}
	walk(root.Function, 0)
	return sb.String(), nil
}

// WriteCallTrees writes one call-tree file per entrypoint into dir and
// returns the paths written, in entrypoint order.
func (g *Graph) WriteCallTrees(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	names := g.LogFiles()
	var paths []string
	for _, e := range g.Entrypoints {
		tree, err := g.CallTree(e)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, names[e])
		if err := os.WriteFile(path, []byte(tree), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write call tree %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteDOT writes the graph in Graphviz DOT format. Reachable nodes are
// filled; entrypoints are drawn as double octagons.
func (g *Graph) WriteDOT(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("digraph CallGraph {\n")
	sb.WriteString("  node [shape=box, style=filled, fillcolor=white];\n")

	for _, n := range g.Nodes {
		attrs := fmt.Sprintf("label=\"%s\\n%s:%d\"", n.Key.Name, filepath.Base(n.Key.File), n.Function.StartLine)
		switch {
		case n.Entrypoint:
			attrs += ", shape=doubleoctagon, fillcolor=gold"
		case n.Reachable():
			attrs += ", fillcolor=lightblue"
		}
		fmt.Fprintf(&sb, "  %q [%s];\n", dotID(n.Key), attrs)
	}
	for _, e := range g.Edges {
		style := ""
		if e.Confidence == ir.ConfidenceNameOnly {
			style = ", style=dashed"
		}
		fmt.Fprintf(&sb, "  %q -> %q [label=\"line %d\"%s];\n", dotID(e.From), dotID(e.To), e.Line, style)
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func dotID(k ir.FunctionKey) string {
	return k.File + ":" + k.Name
}
