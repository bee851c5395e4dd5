package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"fuzzlens/internal/ir"
)

// LanguageExtractor defines the interface that each language frontend must implement.
type LanguageExtractor interface {
	Language() ir.Language
	GetLanguage() *sitter.Language
	Extensions() []string
	// Extract walks a parsed tree and returns the functions, call sites and
	// imports declared in the file. Call sites are left unresolved.
	Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.SourceFile
}

// callClassifier inspects a node and reports whether it is a call, with the
// callee text and whether the call goes through a receiver or pointer.
type callClassifier func(n *sitter.Node, sourceCode []byte) (callee string, member bool, ok bool)

func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

func content(n *sitter.Node, sourceCode []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(sourceCode)
}

// compact removes all whitespace, so "Foo :: bar" and "p -> cb" normalize.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

func hasChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, c := range children(n) {
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

// collectCalls walks a function body and records every call expression the
// classifier recognizes. Subtrees whose type is in stop (nested named
// functions that are extracted on their own) are not entered.
func collectCalls(body *sitter.Node, sourceCode []byte, caller ir.FunctionKey, classify callClassifier, stop map[string]bool) []*ir.CallSite {
	if body == nil {
		return nil
	}
	var calls []*ir.CallSite
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if callee, member, ok := classify(n, sourceCode); ok && callee != "" {
			calls = append(calls, &ir.CallSite{
				Caller: caller,
				Callee: callee,
				Member: member,
				Line:   startLine(n),
			})
		}
		for _, c := range namedChildren(n) {
			if stop[c.Type()] {
				continue
			}
			visit(c)
		}
	}
	visit(body)
	return calls
}

// queryImports runs an import query and collects the captured paths.
func queryImports(lang *sitter.Language, pattern string, root *sitter.Node, sourceCode []byte) []ir.Import {
	query, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		return nil
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var imports []ir.Import
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			path := strings.Trim(c.Node.Content(sourceCode), "\"<>`")
			if path == "" {
				continue
			}
			imports = append(imports, ir.Import{Path: path, Line: startLine(c.Node)})
		}
	}
	return imports
}

// scope is a stack of enclosing namespace/class names.
type scope []string

func (s scope) push(name string) scope {
	out := make(scope, len(s), len(s)+1)
	copy(out, s)
	return append(out, name)
}

func hasExtension(path string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
