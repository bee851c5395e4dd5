package extractor

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"fuzzlens/internal/ir"
)

// RustFuzzTarget is the synthetic function name given to a fuzz_target! body.
const RustFuzzTarget = "fuzz_target"

// Macro arguments are token trees, not expressions, so calls inside them are
// recovered textually. A match preceded by '.' is a method call.
var macroCall = regexp.MustCompile(`((?:[A-Za-z_]\w*::)*[A-Za-z_]\w*)\s*\(`)

// RustExtractor implements LanguageExtractor for Rust.
type RustExtractor struct{}

func (r *RustExtractor) Language() ir.Language {
	return ir.LanguageRust
}

func (r *RustExtractor) GetLanguage() *sitter.Language {
	return rust.GetLanguage()
}

func (r *RustExtractor) Extensions() []string {
	return []string{".rs"}
}

func (r *RustExtractor) Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.SourceFile {
	sf := &ir.SourceFile{Path: filepath}

	var visit func(n *sitter.Node, sc scope)
	visit = func(n *sitter.Node, sc scope) {
		switch n.Type() {
		case "function_item":
			fn := r.extractFunction(n, sourceCode, filepath, sc)
			if fn == nil {
				return
			}
			sf.Functions = append(sf.Functions, fn)
			// Items declared inside the body are scoped under the function.
			if body := n.ChildByFieldName("body"); body != nil {
				visit(body, sc.push(ir.ShortName(fn.Name)))
			}
			return
		case "impl_item":
			name := r.implName(n, sourceCode)
			if body := n.ChildByFieldName("body"); body != nil {
				visit(body, sc.push(name))
			}
			return
		case "mod_item", "trait_item":
			name := content(n.ChildByFieldName("name"), sourceCode)
			if body := n.ChildByFieldName("body"); body != nil && name != "" {
				visit(body, sc.push(name))
			}
			return
		case "macro_invocation":
			if len(sc) == 0 && r.macroName(n, sourceCode) == RustFuzzTarget {
				sf.Functions = append(sf.Functions, r.fuzzTarget(n, sourceCode, filepath))
			}
			return
		}
		for _, child := range namedChildren(n) {
			visit(child, sc)
		}
	}
	visit(root, nil)

	sf.Imports = queryImports(r.GetLanguage(), `(use_declaration argument: (_) @path)`, root, sourceCode)
	return sf
}

// implName returns the self type of an impl block, without generics.
func (r *RustExtractor) implName(n *sitter.Node, sourceCode []byte) string {
	typ := compact(content(n.ChildByFieldName("type"), sourceCode))
	if i := strings.IndexByte(typ, '<'); i >= 0 {
		typ = typ[:i]
	}
	return typ
}

func (r *RustExtractor) macroName(n *sitter.Node, sourceCode []byte) string {
	name := compact(content(n.ChildByFieldName("macro"), sourceCode))
	return ir.ShortName(name)
}

func (r *RustExtractor) extractFunction(node *sitter.Node, sourceCode []byte, filepath string, sc scope) *ir.Function {
	name := content(node.ChildByFieldName("name"), sourceCode)
	if name == "" {
		return nil
	}
	fn := &ir.Function{
		Name:       ir.Qualify(sc, name, "::"),
		File:       filepath,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		ReturnType: content(node.ChildByFieldName("return_type"), sourceCode),
		Visibility: ir.VisibilityPrivate,
	}
	if hasChildOfType(node, "visibility_modifier") != nil {
		fn.Visibility = ir.VisibilityPublic
	}
	for _, p := range namedChildren(node.ChildByFieldName("parameters")) {
		switch p.Type() {
		case "parameter":
			fn.Params = append(fn.Params, ir.Param{
				Name: content(p.ChildByFieldName("pattern"), sourceCode),
				Type: content(p.ChildByFieldName("type"), sourceCode),
			})
		case "self_parameter":
			fn.Params = append(fn.Params, ir.Param{Name: "self", Type: compact(content(p, sourceCode))})
		}
	}
	stop := map[string]bool{"function_item": true}
	body := node.ChildByFieldName("body")
	fn.Calls = collectCalls(body, sourceCode, fn.Key(), r.classifyCall, stop)
	if body != nil {
		fn.Calls = append(fn.Calls, r.macroCalls(body, sourceCode, fn.Key())...)
	}
	return fn
}

// fuzzTarget synthesizes a function for a top level fuzz_target! invocation.
func (r *RustExtractor) fuzzTarget(n *sitter.Node, sourceCode []byte, filepath string) *ir.Function {
	fn := &ir.Function{
		Name:       RustFuzzTarget,
		File:       filepath,
		StartLine:  startLine(n),
		EndLine:    endLine(n),
		Visibility: ir.VisibilityPublic,
	}
	fn.Calls = r.macroCalls(n, sourceCode, fn.Key())
	return fn
}

func (r *RustExtractor) classifyCall(n *sitter.Node, sourceCode []byte) (string, bool, bool) {
	switch n.Type() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return "", false, false
		}
		switch fn.Type() {
		case "identifier", "scoped_identifier":
			return compact(content(fn, sourceCode)), false, true
		case "field_expression":
			return compact(content(fn, sourceCode)), true, true
		case "generic_function":
			inner := fn.ChildByFieldName("function")
			return compact(content(inner, sourceCode)), inner != nil && inner.Type() == "field_expression", inner != nil
		}
	}
	return "", false, false
}

var rustKeywords = map[string]bool{
	"if": true, "while": true, "match": true, "for": true, "return": true, "loop": true, "in": true,
}

// macroCalls recovers calls written inside macro token trees under n. Token
// trees are raw tokens in the grammar, so the callee text is matched line by
// line.
func (r *RustExtractor) macroCalls(n *sitter.Node, sourceCode []byte, caller ir.FunctionKey) []*ir.CallSite {
	var calls []*ir.CallSite
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "function_item" {
			return
		}
		if n.Type() == "macro_invocation" {
			if tt := hasChildOfType(n, "token_tree"); tt != nil {
				base := startLine(tt)
				for i, line := range strings.Split(content(tt, sourceCode), "\n") {
					for _, m := range macroCall.FindAllStringSubmatchIndex(line, -1) {
						callee := line[m[2]:m[3]]
						if rustKeywords[callee] {
							continue
						}
						member := strings.HasSuffix(strings.TrimRight(line[:m[2]], " "), ".")
						calls = append(calls, &ir.CallSite{Caller: caller, Callee: callee, Member: member, Line: base + i})
					}
				}
			}
		}
		for _, c := range namedChildren(n) {
			visit(c)
		}
	}
	visit(n)
	return calls
}
