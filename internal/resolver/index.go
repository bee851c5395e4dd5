package resolver

import (
	"strings"

	"fuzzlens/internal/ir"
)

// Index is the project symbol table the stages resolve against.
type Index struct {
	lang      ir.Language
	byName    map[string][]*ir.Function
	byShort   map[string][]*ir.Function
	byFileKey map[string]map[string][]*ir.Function // file -> short name
}

// NewIndex builds a symbol table over every function in p, in declaration order.
func NewIndex(p *ir.Project) *Index {
	idx := &Index{
		lang:      p.Language,
		byName:    make(map[string][]*ir.Function),
		byShort:   make(map[string][]*ir.Function),
		byFileKey: make(map[string]map[string][]*ir.Function),
	}
	for _, fn := range p.Functions() {
		short := fn.ShortName()
		idx.byName[fn.Name] = append(idx.byName[fn.Name], fn)
		idx.byShort[short] = append(idx.byShort[short], fn)
		if idx.byFileKey[fn.File] == nil {
			idx.byFileKey[fn.File] = make(map[string][]*ir.Function)
		}
		idx.byFileKey[fn.File][short] = append(idx.byFileKey[fn.File][short], fn)
	}
	return idx
}

// Named returns the functions whose qualified name is exactly name.
func (idx *Index) Named(name string) []*ir.Function {
	return idx.byName[name]
}

// InFile returns the functions declared in file whose short name matches.
func (idx *Index) InFile(file, short string) []*ir.Function {
	return idx.byFileKey[file][short]
}

// Short returns every function with the given short name.
func (idx *Index) Short(short string) []*ir.Function {
	return idx.byShort[short]
}

// Visible reports whether fn may be called from callerFile. Static C
// functions and private Java/Rust items never link across files; Python
// privacy is a naming convention only.
func (idx *Index) Visible(fn *ir.Function, callerFile string) bool {
	if fn.File == callerFile || !fn.Restricted() {
		return true
	}
	return idx.lang == ir.LanguagePython
}

// separator is the qualifier used in function names of the indexed language.
func (idx *Index) separator() string {
	switch idx.lang {
	case ir.LanguageC, ir.LanguageCPP, ir.LanguageRust:
		return "::"
	}
	return "."
}

// scopedCandidates lists the qualified names a non-member call may refer to,
// innermost enclosing scope first. The caller itself is a scope for nested
// functions: "validate" called from "ns::Parser::parse" yields
// "ns::Parser::parse::validate", "ns::Parser::validate", "ns::validate",
// "validate".
func (idx *Index) scopedCandidates(caller, callee string) []string {
	sep := idx.separator()
	parts := strings.Split(caller, sep)

	out := make([]string, 0, len(parts)+1)
	for i := len(parts); i > 0; i-- {
		out = append(out, strings.Join(parts[:i], sep)+sep+callee)
	}
	return append(out, callee)
}
