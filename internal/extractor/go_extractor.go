package extractor

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"fuzzlens/internal/ir"
)

// GoExtractor implements LanguageExtractor for Go.
type GoExtractor struct{}

func (g *GoExtractor) Language() ir.Language {
	return ir.LanguageGo
}

func (g *GoExtractor) GetLanguage() *sitter.Language {
	return golang.GetLanguage()
}

func (g *GoExtractor) Extensions() []string {
	return []string{".go"}
}

func (g *GoExtractor) Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.SourceFile {
	sf := &ir.SourceFile{Path: filepath}
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "function_declaration", "method_declaration":
			if fn := g.extractFunction(n, sourceCode, filepath); fn != nil {
				sf.Functions = append(sf.Functions, fn)
			}
		}
	}
	sf.Imports = queryImports(g.GetLanguage(), `(import_spec path: (interpreted_string_literal) @path)`, root, sourceCode)
	return sf
}

func (g *GoExtractor) extractFunction(node *sitter.Node, sourceCode []byte, filepath string) *ir.Function {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(sourceCode)
	visibility := ir.VisibilityDefault
	if r := []rune(name); len(r) > 0 && unicode.IsUpper(r[0]) {
		visibility = ir.VisibilityExported
	}

	if node.Type() == "method_declaration" {
		if recv := g.receiverType(node.ChildByFieldName("receiver"), sourceCode); recv != "" {
			name = recv + "." + name
		}
	}

	fn := &ir.Function{
		Name:       name,
		File:       filepath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Visibility: visibility,
		ReturnType: content(node.ChildByFieldName("result"), sourceCode),
	}
	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		fn.Params = g.extractParams(paramsNode, sourceCode)
	}
	fn.Calls = collectCalls(node.ChildByFieldName("body"), sourceCode, fn.Key(), g.classifyCall, nil)
	return fn
}

// receiverType returns the bare receiver type name: "(s *Server[T])" -> "Server".
func (g *GoExtractor) receiverType(receiver *sitter.Node, sourceCode []byte) string {
	for _, p := range namedChildren(receiver) {
		if p.Type() != "parameter_declaration" {
			continue
		}
		typ := content(p.ChildByFieldName("type"), sourceCode)
		typ = strings.TrimLeft(typ, "*")
		if i := strings.IndexByte(typ, '['); i >= 0 {
			typ = typ[:i]
		}
		return strings.TrimSpace(typ)
	}
	return ""
}

func (g *GoExtractor) extractParams(paramsNode *sitter.Node, sourceCode []byte) []ir.Param {
	var params []ir.Param
	for _, pNode := range namedChildren(paramsNode) {
		switch pNode.Type() {
		case "parameter_declaration", "variadic_parameter_declaration":
		default:
			continue
		}
		pType := content(pNode.ChildByFieldName("type"), sourceCode)
		if pNode.Type() == "variadic_parameter_declaration" {
			pType = "..." + pType
		}
		var names []string
		for _, c := range namedChildren(pNode) {
			if c.Type() == "identifier" {
				names = append(names, c.Content(sourceCode))
			}
		}
		if len(names) == 0 {
			params = append(params, ir.Param{Type: pType})
			continue
		}
		for _, n := range names {
			params = append(params, ir.Param{Name: n, Type: pType})
		}
	}
	return params
}

func (g *GoExtractor) classifyCall(n *sitter.Node, sourceCode []byte) (string, bool, bool) {
	if n.Type() != "call_expression" {
		return "", false, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return "", false, false
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(sourceCode), false, true
	case "selector_expression":
		// pkg.Func or value.Method; the two are indistinguishable without types.
		return compact(fn.Content(sourceCode)), true, true
	case "generic_type", "index_expression":
		if inner := fn.NamedChild(0); inner != nil && inner.Type() == "identifier" {
			return inner.Content(sourceCode), false, true
		}
	}
	return "", false, false
}
