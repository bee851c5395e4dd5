package extractor

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"fuzzlens/internal/ir"
)

// JavaExtractor implements LanguageExtractor for JVM sources written in Java.
type JavaExtractor struct{}

func (j *JavaExtractor) Language() ir.Language {
	return ir.LanguageJVM
}

func (j *JavaExtractor) GetLanguage() *sitter.Language {
	return java.GetLanguage()
}

func (j *JavaExtractor) Extensions() []string {
	return []string{".java"}
}

func (j *JavaExtractor) Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.SourceFile {
	sf := &ir.SourceFile{Path: filepath}

	anon := 0
	var visit func(n *sitter.Node, sc scope, iface bool)
	visit = func(n *sitter.Node, sc scope, iface bool) {
		switch n.Type() {
		case "object_creation_expression":
			body := hasChildOfType(n, "class_body")
			if body == nil {
				break
			}
			// Anonymous classes are numbered per file in source order.
			anon++
			name := j.anonymousName(n, sourceCode, anon)
			j.visitLocalClasses(n.ChildByFieldName("arguments"), sc, visit)
			visit(body, sc.push(name), false)
			return
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			name := content(n.ChildByFieldName("name"), sourceCode)
			if body := n.ChildByFieldName("body"); body != nil && name != "" {
				visit(body, sc.push(name), n.Type() == "interface_declaration")
			}
			return
		case "method_declaration", "constructor_declaration":
			if fn := j.extractMethod(n, sourceCode, filepath, sc); fn != nil {
				fn.Header = iface
				sf.Functions = append(sf.Functions, fn)
			}
			// Anonymous and local classes inside the body carry their own methods.
			if body := n.ChildByFieldName("body"); body != nil {
				j.visitLocalClasses(body, sc, visit)
			}
			return
		}
		for _, child := range namedChildren(n) {
			visit(child, sc, iface)
		}
	}
	visit(root, nil, false)

	sf.Imports = queryImports(j.GetLanguage(), `(import_declaration (scoped_identifier) @path)`, root, sourceCode)
	return sf
}

func (j *JavaExtractor) visitLocalClasses(n *sitter.Node, sc scope, visit func(*sitter.Node, scope, bool)) {
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "class_declaration", "object_creation_expression":
			visit(child, sc, false)
			continue
		}
		j.visitLocalClasses(child, sc, visit)
	}
}

// anonymousName names the class of "new T() { ... }" as T$n.
func (j *JavaExtractor) anonymousName(n *sitter.Node, sourceCode []byte, seq int) string {
	typ := compact(content(n.ChildByFieldName("type"), sourceCode))
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		typ = typ[:i]
	}
	return typ[strings.LastIndex(typ, ".")+1:] + "$" + strconv.Itoa(seq)
}

func (j *JavaExtractor) extractMethod(node *sitter.Node, sourceCode []byte, filepath string, sc scope) *ir.Function {
	name := content(node.ChildByFieldName("name"), sourceCode)
	if name == "" {
		return nil
	}
	fn := &ir.Function{
		Name:       ir.Qualify(sc, name, "."),
		File:       filepath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		ReturnType: content(node.ChildByFieldName("type"), sourceCode),
		Visibility: ir.VisibilityDefault,
	}
	if mods := hasChildOfType(node, "modifiers"); mods != nil {
		text := " " + content(mods, sourceCode) + " "
		switch {
		case strings.Contains(text, " private "):
			fn.Visibility = ir.VisibilityPrivate
		case strings.Contains(text, " public "):
			fn.Visibility = ir.VisibilityPublic
		}
	}
	for _, p := range namedChildren(node.ChildByFieldName("parameters")) {
		switch p.Type() {
		case "formal_parameter":
			fn.Params = append(fn.Params, ir.Param{
				Name: content(p.ChildByFieldName("name"), sourceCode),
				Type: content(p.ChildByFieldName("type"), sourceCode),
			})
		case "spread_parameter":
			fn.Params = append(fn.Params, ir.Param{Type: compact(content(p, sourceCode))})
		}
	}

	stop := map[string]bool{"class_declaration": true, "class_body": true}
	fn.Calls = collectCalls(node.ChildByFieldName("body"), sourceCode, fn.Key(), j.classifyCall, stop)
	return fn
}

func (j *JavaExtractor) classifyCall(n *sitter.Node, sourceCode []byte) (string, bool, bool) {
	switch n.Type() {
	case "method_invocation":
		name := content(n.ChildByFieldName("name"), sourceCode)
		obj := n.ChildByFieldName("object")
		if obj == nil || obj.Type() == "this" {
			return name, false, true
		}
		return compact(content(obj, sourceCode)) + "." + name, true, true
	case "object_creation_expression":
		typ := compact(content(n.ChildByFieldName("type"), sourceCode))
		if i := strings.IndexByte(typ, '<'); i >= 0 {
			typ = typ[:i]
		}
		if typ == "" {
			return "", false, false
		}
		short := typ[strings.LastIndex(typ, ".")+1:]
		return typ + "." + short, false, true
	}
	return "", false, false
}
