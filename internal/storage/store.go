package storage

import (
	"context"
	"errors"
	"time"

	"fuzzlens/internal/ir"
	"fuzzlens/internal/profile"
)

// ErrRunNotFound is returned for run ids the store does not hold.
var ErrRunNotFound = errors.New("run not found")

// ProfileStore persists profiles so runs can be compared later.
type ProfileStore interface {
	// SaveProfile stores p under a new run id.
	SaveProfile(ctx context.Context, p *profile.Profile) (string, error)

	// LoadProfile rebuilds the profile stored under runID.
	LoadProfile(ctx context.Context, runID string) (*profile.Profile, error)

	// ListRuns returns every stored run, oldest first.
	ListRuns(ctx context.Context) ([]RunInfo, error)

	Close() error
}

// RunInfo summarizes one stored run.
type RunInfo struct {
	ID         string      `json:"id" yaml:"id"`
	CreatedAt  time.Time   `json:"created_at" yaml:"created_at"`
	Language   ir.Language `json:"language" yaml:"language"`
	Root       string      `json:"root" yaml:"root"`
	Entrypoint string      `json:"entrypoint" yaml:"entrypoint"`
	Functions  int         `json:"functions" yaml:"functions"`
}
