package correlate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is where the CLI writes correlations.
const DefaultFileName = "exe_to_fuzz_introspector_logs.yaml"

// WriteFile stores c as YAML.
func WriteFile(c *Correlation, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal correlation: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a correlation file. A missing file is an empty correlation.
func ReadFile(path string) (*Correlation, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Correlation{Pairings: []Pairing{}}, nil
	}
	if err != nil {
		return nil, err
	}
	c := &Correlation{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse correlation %s: %w", path, err)
	}
	if c.Pairings == nil {
		c.Pairings = []Pairing{}
	}
	return c, nil
}
