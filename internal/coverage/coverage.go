// Package coverage reads per-function line hit counts produced by executed
// fuzz binaries. Absent data is never an error: a function without a record
// simply has zero hits.
package coverage

import (
	"sort"
	"strings"

	"fuzzlens/internal/ir"
)

type LineHits struct {
	Line int    `yaml:"line" json:"line"`
	Hits uint64 `yaml:"hits" json:"hits"`
}

// Record is the coverage of one function. File may be empty when the source
// of the data does not attribute functions to files.
type Record struct {
	Name  string     `yaml:"name" json:"name"`
	File  string     `yaml:"file,omitempty" json:"file,omitempty"`
	Lines []LineHits `yaml:"lines" json:"lines"`
}

func (r Record) TotalHits() uint64 {
	var n uint64
	for _, l := range r.Lines {
		n += l.Hits
	}
	return n
}

func (r Record) LinesHit() int {
	n := 0
	for _, l := range r.Lines {
		if l.Hits > 0 {
			n++
		}
	}
	return n
}

func (r Record) LinesTotal() int {
	return len(r.Lines)
}

// Feed answers coverage lookups for functions of a project.
type Feed interface {
	Lookup(key ir.FunctionKey) (Record, bool)
}

// Empty is the feed of a run without coverage.
type Empty struct{}

func (Empty) Lookup(ir.FunctionKey) (Record, bool) {
	return Record{}, false
}

// MapFeed is an in-memory Feed. Lookups match on (name, file) first, then
// fall back to a record of the same name whose file is unknown or is a path
// suffix of the other.
type MapFeed struct {
	byKey  map[ir.FunctionKey]*Record
	byName map[string][]*Record
	order  []ir.FunctionKey
}

func NewMapFeed(records ...Record) *MapFeed {
	m := &MapFeed{
		byKey:  make(map[ir.FunctionKey]*Record),
		byName: make(map[string][]*Record),
	}
	for _, r := range records {
		m.Add(r)
	}
	return m
}

// Add merges r into the feed. Hits on a line already present are summed.
func (m *MapFeed) Add(r Record) {
	r.Name = NormalizeName(r.Name)
	key := ir.FunctionKey{Name: r.Name, File: r.File}
	existing, ok := m.byKey[key]
	if !ok {
		rec := &Record{Name: r.Name, File: r.File}
		m.byKey[key] = rec
		m.byName[r.Name] = append(m.byName[r.Name], rec)
		m.order = append(m.order, key)
		existing = rec
	}
	existing.Lines = mergeLines(existing.Lines, r.Lines)
}

func (m *MapFeed) Lookup(key ir.FunctionKey) (Record, bool) {
	if r, ok := m.byKey[key]; ok {
		return copyRecord(r), true
	}
	for _, r := range m.byName[key.Name] {
		if r.File == "" || sameFile(r.File, key.File) {
			return copyRecord(r), true
		}
	}
	return Record{}, false
}

// Records returns every record in insertion order.
func (m *MapFeed) Records() []Record {
	out := make([]Record, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, copyRecord(m.byKey[k]))
	}
	return out
}

func (m *MapFeed) Len() int {
	return len(m.order)
}

func copyRecord(r *Record) Record {
	out := *r
	out.Lines = append([]LineHits(nil), r.Lines...)
	return out
}

func mergeLines(a, b []LineHits) []LineHits {
	byLine := make(map[int]uint64, len(a)+len(b))
	for _, l := range a {
		byLine[l.Line] += l.Hits
	}
	for _, l := range b {
		byLine[l.Line] += l.Hits
	}
	out := make([]LineHits, 0, len(byLine))
	for line, hits := range byLine {
		out = append(out, LineHits{Line: line, Hits: hits})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func sameFile(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, b = strings.TrimPrefix(a, "./"), strings.TrimPrefix(b, "./")
	return a == b || strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}

// NormalizeName strips what coverage tools add around a function's
// qualified name: a parameter list and a "file.c:" prefix on static
// functions.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	_, name = SplitStaticName(name)
	return name
}

// SplitStaticName splits the "file.c:name" form coverage tools use for
// functions with internal linkage. Other names come back with an empty file.
func SplitStaticName(name string) (file, fn string) {
	i := strings.IndexByte(name, ':')
	if i <= 0 || strings.HasPrefix(name[i:], "::") || !strings.Contains(name[:i], ".") {
		return "", name
	}
	return name[:i], name[i+1:]
}
