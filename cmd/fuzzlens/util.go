package main

import (
	"errors"
	"os"
	"path/filepath"

	"fuzzlens/internal/config"
)

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func writeText(path, text string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// binariesDir picks the positional directory, falling back to
// correlation.bin_dir from the config.
func binariesDir(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Correlation.BinDir != "" {
		return cfg.Correlation.BinDir, nil
	}
	return "", errors.New("no binaries directory given and correlation.bin_dir is unset")
}
