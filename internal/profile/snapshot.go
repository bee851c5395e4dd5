package profile

import (
	"fuzzlens/internal/graph"
	"fuzzlens/internal/ir"
)

// Snapshot is the serializable form of a Profile.
type Snapshot struct {
	Language    ir.Language       `json:"language" yaml:"language"`
	Root        string            `json:"root" yaml:"root"`
	Entrypoint  string            `json:"entrypoint" yaml:"entrypoint"`
	Functions   []FunctionProfile `json:"functions" yaml:"functions"`
	Edges       []graph.Edge      `json:"edges,omitempty" yaml:"edges,omitempty"`
	Entrypoints []EntrypointInfo  `json:"entrypoints,omitempty" yaml:"entrypoints,omitempty"`
}

func (p *Profile) Snapshot() Snapshot {
	return Snapshot{
		Language:    p.language,
		Root:        p.root,
		Entrypoint:  p.entrypoint,
		Functions:   p.Functions(),
		Edges:       p.Edges(),
		Entrypoints: p.Entrypoints(),
	}
}

// FromSnapshot rebuilds a Profile. Statuses are taken as stored;
// per-entrypoint counts are recomputed.
func FromSnapshot(s Snapshot) *Profile {
	p := &Profile{
		language:    s.Language,
		root:        s.Root,
		entrypoint:  s.Entrypoint,
		edges:       append([]graph.Edge(nil), s.Edges...),
		entrypoints: append([]EntrypointInfo(nil), s.Entrypoints...),
	}
	for _, f := range s.Functions {
		p.functions = append(p.functions, f.clone())
	}
	p.reindex()
	return p
}
