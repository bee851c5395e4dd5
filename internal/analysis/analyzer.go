// Package analysis runs pluggable analyzers over an immutable profile.
package analysis

import (
	"context"
	"errors"

	"fuzzlens/internal/git"
	"fuzzlens/internal/profile"
)

var (
	// ErrAnalyzerNotFound is returned when a named analyzer is not registered.
	ErrAnalyzerNotFound = errors.New("analyzer not found")
	// ErrNotFound is returned by lookups that match nothing in the profile.
	ErrNotFound = errors.New("not found")
	// ErrMissingInput is returned when an analyzer's required input is absent.
	ErrMissingInput = errors.New("missing analyzer input")
	ErrDuplicate    = errors.New("analyzer already registered")
)

// Input names an auxiliary input an analyzer needs beyond the profile.
type Input string

const (
	InputSourceLocation Input = "source-location"
	InputChanges        Input = "changed-lines"
)

// Options carries every analyzer's auxiliary inputs. Each analyzer reads
// only its own part.
type Options struct {
	SourceFile string
	SourceLine int
	FarReach   FarReachOptions

	// Changes are the touched lines fed to ChangeImpactAnalyser.
	Changes []git.ChangedFile
	// ImpactHops bounds how far callers of changed functions are followed.
	ImpactHops int
}

func (o Options) has(in Input) bool {
	switch in {
	case InputSourceLocation:
		return o.SourceFile != "" && o.SourceLine > 0
	case InputChanges:
		return len(o.Changes) > 0
	}
	return false
}

// Analyzer consumes a profile and returns a serializable result. It must
// treat the profile as read-only; several analyzers run on it concurrently.
type Analyzer interface {
	Name() string
	Requires() []Input
	Run(ctx context.Context, p *profile.Profile, opts Options) (any, error)
}

// Finding is one analyzer's output. Skipped is set when a full run left the
// analyzer out for lack of input; Error when it failed.
type Finding struct {
	Analyzer string `json:"analyzer" yaml:"analyzer"`
	Result   any    `json:"result,omitempty" yaml:"result,omitempty"`
	Skipped  string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func missingInput(a Analyzer, opts Options) (Input, bool) {
	for _, in := range a.Requires() {
		if !opts.has(in) {
			return in, true
		}
	}
	return "", false
}
