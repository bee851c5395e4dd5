package analysis

import (
	"context"

	"fuzzlens/internal/profile"
)

const EntrypointSummaryName = "EntrypointSummaryAnalyser"

type EntrypointSummary struct {
	Name     string  `json:"name" yaml:"name"`
	File     string  `json:"file" yaml:"file"`
	LogFile  string  `json:"log_file" yaml:"log_file"`
	Binary   string  `json:"binary,omitempty" yaml:"binary,omitempty"`
	Reached  int     `json:"reached" yaml:"reached"`
	Covered  int     `json:"covered" yaml:"covered"`
	Coverage float64 `json:"coverage" yaml:"coverage"`
}

// EntrypointSummaryAnalyser reports reach and covered-function ratio per
// entrypoint.
type EntrypointSummaryAnalyser struct{}

func NewEntrypointSummaryAnalyser() *EntrypointSummaryAnalyser {
	return &EntrypointSummaryAnalyser{}
}

func (a *EntrypointSummaryAnalyser) Name() string      { return EntrypointSummaryName }
func (a *EntrypointSummaryAnalyser) Requires() []Input { return nil }

func (a *EntrypointSummaryAnalyser) Run(_ context.Context, p *profile.Profile, _ Options) (any, error) {
	eps := p.Entrypoints()
	out := make([]EntrypointSummary, 0, len(eps))
	for _, ep := range eps {
		s := EntrypointSummary{
			Name:    ep.Name,
			File:    ep.File,
			LogFile: ep.LogFile,
			Binary:  ep.Binary,
			Reached: ep.Reached,
			Covered: ep.Covered,
		}
		if ep.Reached > 0 {
			s.Coverage = float64(ep.Covered) / float64(ep.Reached)
		}
		out = append(out, s)
	}
	return out, nil
}
