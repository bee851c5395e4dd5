package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"fuzzlens/internal/ir"
)

var (
	cExtensions   = []string{".c", ".h"}
	cppExtensions = []string{".cc", ".cpp", ".cxx", ".c++", ".hpp", ".hh", ".hxx", ".h"}
	headerExts    = []string{".h", ".hpp", ".hh", ".hxx"}
)

// CExtractor implements LanguageExtractor for C and, with cpp set, C++.
type CExtractor struct {
	cpp bool
}

func (x *CExtractor) Language() ir.Language {
	if x.cpp {
		return ir.LanguageCPP
	}
	return ir.LanguageC
}

func (x *CExtractor) GetLanguage() *sitter.Language {
	if x.cpp {
		return cpp.GetLanguage()
	}
	return c.GetLanguage()
}

func (x *CExtractor) Extensions() []string {
	if x.cpp {
		return cppExtensions
	}
	return cExtensions
}

func (x *CExtractor) Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.SourceFile {
	sf := &ir.SourceFile{Path: filepath}
	header := hasExtension(filepath, headerExts)

	var visit func(n *sitter.Node, sc scope)
	visit = func(n *sitter.Node, sc scope) {
		switch n.Type() {
		case "function_definition":
			if fn := x.extractFunction(n, sourceCode, filepath, sc); fn != nil {
				fn.Header = header
				sf.Functions = append(sf.Functions, fn)
			}
			return
		case "namespace_definition":
			if name := n.ChildByFieldName("name"); name != nil {
				sc = sc.push(content(name, sourceCode))
			}
		case "class_specifier", "struct_specifier":
			if body := n.ChildByFieldName("body"); body != nil && x.cpp {
				if name := n.ChildByFieldName("name"); name != nil {
					visit(body, sc.push(content(name, sourceCode)))
				}
				return
			}
		}
		for _, child := range namedChildren(n) {
			visit(child, sc)
		}
	}
	visit(root, nil)

	sf.Imports = queryImports(x.GetLanguage(), `(preproc_include path: (_) @path)`, root, sourceCode)
	return sf
}

func (x *CExtractor) extractFunction(node *sitter.Node, sourceCode []byte, filepath string, sc scope) *ir.Function {
	fnDecl := functionDeclarator(node.ChildByFieldName("declarator"))
	if fnDecl == nil {
		return nil
	}
	nameNode := fnDecl.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil
	}
	name := compact(content(nameNode, sourceCode))
	if name == "" {
		return nil
	}

	fn := &ir.Function{
		Name:       ir.Qualify(sc, name, "::"),
		File:       filepath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		ReturnType: strings.TrimSpace(content(node.ChildByFieldName("type"), sourceCode)),
		Visibility: ir.VisibilityDefault,
		Params:     x.extractParams(fnDecl.ChildByFieldName("parameters"), sourceCode),
	}
	for _, child := range children(node) {
		if child.Type() == "storage_class_specifier" && content(child, sourceCode) == "static" {
			fn.Visibility = ir.VisibilityStatic
		}
	}

	fn.Calls = collectCalls(node.ChildByFieldName("body"), sourceCode, fn.Key(), x.classifyCall, nil)
	return fn
}

// functionDeclarator descends through pointer and reference declarators to
// the function_declarator carrying the name and parameter list.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator", "attributed_declarator":
			next := n.ChildByFieldName("declarator")
			if next == nil {
				next = lastNamedChild(n)
			}
			n = next
		default:
			return nil
		}
	}
	return nil
}

func lastNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(int(n.NamedChildCount()) - 1)
}

func (x *CExtractor) extractParams(list *sitter.Node, sourceCode []byte) []ir.Param {
	var params []ir.Param
	for _, p := range namedChildren(list) {
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
			typ := strings.TrimSpace(content(p.ChildByFieldName("type"), sourceCode))
			decl := p.ChildByFieldName("declarator")
			if decl == nil && typ == "void" {
				continue
			}
			name := ""
			if decl != nil {
				name = strings.TrimLeft(compact(content(decl, sourceCode)), "*&")
				if ptr := strings.Count(content(decl, sourceCode), "*"); ptr > 0 {
					typ += " " + strings.Repeat("*", ptr)
				}
			}
			params = append(params, ir.Param{Name: name, Type: typ})
		case "variadic_parameter", "variadic_parameter_declaration":
			params = append(params, ir.Param{Type: "..."})
		}
	}
	return params
}

func (x *CExtractor) classifyCall(n *sitter.Node, sourceCode []byte) (string, bool, bool) {
	if n.Type() != "call_expression" {
		return "", false, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return "", false, false
	}
	switch fn.Type() {
	case "identifier", "qualified_identifier":
		return compact(content(fn, sourceCode)), false, true
	case "template_function":
		return compact(content(fn.ChildByFieldName("name"), sourceCode)), false, true
	case "field_expression":
		return compact(content(fn, sourceCode)), true, true
	case "parenthesized_expression", "pointer_expression":
		// (*fp)(x) and (fp)(x): calls through a function pointer.
		name := strings.Trim(compact(content(fn, sourceCode)), "()*&")
		return name, true, name != ""
	}
	return "", false, false
}
