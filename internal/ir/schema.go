package ir

import (
	"fmt"
	"sort"
)

// Language is the tag selecting which frontend parses a project.
type Language string

const (
	LanguageC      Language = "c"
	LanguageCPP    Language = "c++"
	LanguageGo     Language = "go"
	LanguageJVM    Language = "jvm"
	LanguageRust   Language = "rust"
	LanguagePython Language = "python"
)

// Confidence describes how a call edge was resolved.
type Confidence string

const (
	ConfidenceExact    Confidence = "exact"
	ConfidenceSameFile Confidence = "same-file"
	ConfidenceNameOnly Confidence = "name-only"
)

// Rank orders confidences from weakest (0) to strongest.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceExact:
		return 2
	case ConfidenceSameFile:
		return 1
	default:
		return 0
	}
}

// Visibility values recorded on functions.
const (
	VisibilityDefault  = "default"
	VisibilityStatic   = "static"
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityExported = "exported"
)

// FunctionKey uniquely identifies a function: two functions with the same
// name in different files are distinct nodes.
type FunctionKey struct {
	Name string `json:"name" yaml:"name"`
	File string `json:"file" yaml:"file"`
}

func (k FunctionKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.File)
}

// Less orders keys by name, then file.
func (k FunctionKey) Less(o FunctionKey) bool {
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.File < o.File
}

// SortKeys sorts keys in place with Less.
func SortKeys(keys []FunctionKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Param is a best-effort parameter description.
type Param struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// CallSite is one call expression inside a function body.
type CallSite struct {
	Caller FunctionKey `json:"caller"`
	// Callee is the textual callee as written, e.g. "isPositive" or "Foo::bar".
	Callee string `json:"callee"`
	// Member is set for calls through a receiver, field or pointer
	// (obj.m(), p->fn(), self.m()), which cannot be scope-resolved.
	Member     bool          `json:"member,omitempty"`
	Line       int           `json:"line"`
	Targets    []FunctionKey `json:"targets,omitempty"`
	Confidence Confidence    `json:"confidence,omitempty"`
	Resolver   string        `json:"resolver,omitempty"`
}

// Resolved reports whether at least one candidate target was found.
func (c *CallSite) Resolved() bool {
	return len(c.Targets) > 0
}

// ShortName strips any qualifier from the callee text.
func (c *CallSite) ShortName() string {
	return ShortName(c.Callee)
}

// Function is a named callable.
type Function struct {
	Name       string      `json:"name"`
	File       string      `json:"file"`
	StartLine  int         `json:"start_line"`
	EndLine    int         `json:"end_line"`
	Params     []Param     `json:"params,omitempty"`
	ReturnType string      `json:"return_type,omitempty"`
	Visibility string      `json:"visibility"`
	Header     bool        `json:"header,omitempty"`
	Calls      []*CallSite `json:"calls,omitempty"`
}

func (f *Function) Key() FunctionKey {
	return FunctionKey{Name: f.Name, File: f.File}
}

func (f *Function) Arity() int {
	return len(f.Params)
}

func (f *Function) ShortName() string {
	return ShortName(f.Name)
}

// Contains reports whether line falls inside the function's span.
func (f *Function) Contains(line int) bool {
	return line >= f.StartLine && line <= f.EndLine
}

// Restricted reports whether the function has static or private linkage.
func (f *Function) Restricted() bool {
	return f.Visibility == VisibilityStatic || f.Visibility == VisibilityPrivate
}

// Import is an include or import reference.
type Import struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// SourceFile is a parsed unit. It is created once by a frontend and not
// modified after the project is sealed.
type SourceFile struct {
	Path      string      `json:"path"`
	Functions []*Function `json:"functions"`
	Imports   []Import    `json:"imports,omitempty"`
}

// SkippedFile records a file the frontend could not use.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Project is one analyzed codebase in a single language.
type Project struct {
	Language   Language      `json:"language"`
	Root       string        `json:"root"`
	Entrypoint string        `json:"entrypoint"`
	Files      []*SourceFile `json:"files"`
	Skipped    []SkippedFile `json:"skipped,omitempty"`
}

// SortFiles orders files by path so that iteration is deterministic
// regardless of the order in which parallel parsing finished.
func (p *Project) SortFiles() {
	sort.Slice(p.Files, func(i, j int) bool { return p.Files[i].Path < p.Files[j].Path })
	sort.Slice(p.Skipped, func(i, j int) bool { return p.Skipped[i].Path < p.Skipped[j].Path })
}

// Functions returns every function in declaration order.
func (p *Project) Functions() []*Function {
	var out []*Function
	for _, f := range p.Files {
		out = append(out, f.Functions...)
	}
	return out
}

// Function looks a function up by key.
func (p *Project) Function(key FunctionKey) *Function {
	for _, f := range p.Files {
		if f.Path != key.File {
			continue
		}
		for _, fn := range f.Functions {
			if fn.Name == key.Name {
				return fn
			}
		}
	}
	return nil
}

// CallSites returns every call site in declaration order.
func (p *Project) CallSites() []*CallSite {
	var out []*CallSite
	for _, fn := range p.Functions() {
		out = append(out, fn.Calls...)
	}
	return out
}
