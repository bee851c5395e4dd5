package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"fuzzlens/internal/ir"
)

// PythonExtractor implements LanguageExtractor for Python.
type PythonExtractor struct{}

func (p *PythonExtractor) Language() ir.Language {
	return ir.LanguagePython
}

func (p *PythonExtractor) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

func (p *PythonExtractor) Extensions() []string {
	return []string{".py"}
}

func (p *PythonExtractor) Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.SourceFile {
	sf := &ir.SourceFile{Path: filepath}

	var visit func(n *sitter.Node, sc scope)
	visit = func(n *sitter.Node, sc scope) {
		switch n.Type() {
		case "function_definition":
			fn := p.extractFunction(n, sourceCode, filepath, sc)
			if fn == nil {
				return
			}
			sf.Functions = append(sf.Functions, fn)
			if body := n.ChildByFieldName("body"); body != nil {
				visit(body, sc.push(ir.ShortName(fn.Name)))
			}
			return
		case "class_definition":
			name := content(n.ChildByFieldName("name"), sourceCode)
			if body := n.ChildByFieldName("body"); body != nil && name != "" {
				visit(body, sc.push(name))
			}
			return
		}
		for _, child := range namedChildren(n) {
			visit(child, sc)
		}
	}
	visit(root, nil)

	sf.Imports = append(
		queryImports(p.GetLanguage(), `(import_statement name: (dotted_name) @path)`, root, sourceCode),
		queryImports(p.GetLanguage(), `(import_from_statement module_name: (dotted_name) @path)`, root, sourceCode)...,
	)
	return sf
}

func (p *PythonExtractor) extractFunction(node *sitter.Node, sourceCode []byte, filepath string, sc scope) *ir.Function {
	name := content(node.ChildByFieldName("name"), sourceCode)
	if name == "" {
		return nil
	}
	fn := &ir.Function{
		Name:       ir.Qualify(sc, name, "."),
		File:       filepath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		ReturnType: content(node.ChildByFieldName("return_type"), sourceCode),
		Visibility: ir.VisibilityPublic,
	}
	if strings.HasPrefix(name, "_") && !strings.HasSuffix(name, "__") {
		fn.Visibility = ir.VisibilityPrivate
	}
	for _, param := range namedChildren(node.ChildByFieldName("parameters")) {
		switch param.Type() {
		case "identifier":
			fn.Params = append(fn.Params, ir.Param{Name: content(param, sourceCode)})
		case "typed_parameter":
			fn.Params = append(fn.Params, ir.Param{
				Name: content(param.NamedChild(0), sourceCode),
				Type: content(param.ChildByFieldName("type"), sourceCode),
			})
		case "default_parameter", "typed_default_parameter":
			fn.Params = append(fn.Params, ir.Param{
				Name: content(param.ChildByFieldName("name"), sourceCode),
				Type: content(param.ChildByFieldName("type"), sourceCode),
			})
		case "list_splat_pattern", "dictionary_splat_pattern":
			fn.Params = append(fn.Params, ir.Param{Name: content(param, sourceCode)})
		}
	}

	stop := map[string]bool{"function_definition": true, "class_definition": true}
	fn.Calls = collectCalls(node.ChildByFieldName("body"), sourceCode, fn.Key(), p.classifyCall, stop)
	return fn
}

func (p *PythonExtractor) classifyCall(n *sitter.Node, sourceCode []byte) (string, bool, bool) {
	if n.Type() != "call" {
		return "", false, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return "", false, false
	}
	switch fn.Type() {
	case "identifier":
		return content(fn, sourceCode), false, true
	case "attribute":
		return compact(content(fn, sourceCode)), true, true
	}
	return "", false, false
}
