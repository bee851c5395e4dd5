package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Project struct {
		Root       string `yaml:"root" toml:"root"`
		Language   string `yaml:"language" toml:"language"`
		Entrypoint string `yaml:"entrypoint" toml:"entrypoint"` // empty: language default
	} `yaml:"project" toml:"project"`
	Analysis struct {
		Parallel       bool   `yaml:"parallel" toml:"parallel"`
		Workers        int    `yaml:"workers" toml:"workers"`
		DumpFiles      bool   `yaml:"dump_files" toml:"dump_files"`
		OutDir         string `yaml:"out_dir" toml:"out_dir"`
		FollowNameOnly bool   `yaml:"follow_name_only" toml:"follow_name_only"`
		MaxFileBytes   int64  `yaml:"max_file_bytes" toml:"max_file_bytes"`
		ParseTimeout   string `yaml:"parse_timeout" toml:"parse_timeout"`
	} `yaml:"analysis" toml:"analysis"`
	FarReach struct {
		ExcludeStatic       bool     `yaml:"exclude_static" toml:"exclude_static"`
		OnlyReferenced      bool     `yaml:"only_referenced" toml:"only_referenced"`
		OnlyHeader          bool     `yaml:"only_header" toml:"only_header"`
		OnlyReached         bool     `yaml:"only_reached" toml:"only_reached"`
		InterestingPatterns []string `yaml:"interesting_patterns" toml:"interesting_patterns"`
		MaxFunctions        int      `yaml:"max_functions" toml:"max_functions"`
	} `yaml:"far_reach" toml:"far_reach"`
	Coverage struct {
		Path   string `yaml:"path" toml:"path"`
		Format string `yaml:"format" toml:"format"` // "yaml" or "llvm-cov"
	} `yaml:"coverage" toml:"coverage"`
	Correlation struct {
		Path   string `yaml:"path" toml:"path"`
		BinDir string `yaml:"bin_dir" toml:"bin_dir"`
	} `yaml:"correlation" toml:"correlation"`
	Storage struct {
		DB string `yaml:"db" toml:"db"`
	} `yaml:"storage" toml:"storage"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Project.Root = "."
	cfg.Project.Language = "c++"
	cfg.Analysis.Parallel = true
	cfg.Analysis.Workers = 8
	cfg.Analysis.OutDir = "."
	cfg.Analysis.FollowNameOnly = true
	cfg.Analysis.MaxFileBytes = 4 << 20
	cfg.Analysis.ParseTimeout = "10s"
	cfg.Coverage.Format = "yaml"
	cfg.Storage.DB = ".fuzzlens/fuzzlens.db"
	return cfg
}

// LoadConfig reads path on top of Default. Files ending in .toml are TOML,
// anything else YAML. FUZZLENS_* environment variables, including those
// from a local .env file, override file values.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Decode the config file
	cfg := Default()
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(file), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault behaves like LoadConfig but treats a missing file as the
// defaults plus environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return cfg, err
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FUZZLENS_LANGUAGE"); v != "" {
		c.Project.Language = v
	}
	if v := os.Getenv("FUZZLENS_ROOT"); v != "" {
		c.Project.Root = v
	}
	if v := os.Getenv("FUZZLENS_COVERAGE"); v != "" {
		c.Coverage.Path = v
	}
	if v := os.Getenv("FUZZLENS_DB"); v != "" {
		c.Storage.DB = v
	}
	if v := os.Getenv("FUZZLENS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FUZZLENS_WORKERS: %w", err)
		}
		c.Analysis.Workers = n
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := c.Timeout(); err != nil {
		return err
	}
	switch c.Coverage.Format {
	case "", "yaml", "llvm-cov":
	default:
		return fmt.Errorf("unknown coverage format %q", c.Coverage.Format)
	}
	return nil
}

// Timeout parses analysis.parse_timeout. Empty yields zero, which the
// extractor replaces with its own default bound.
func (c *Config) Timeout() (time.Duration, error) {
	if c.Analysis.ParseTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Analysis.ParseTimeout)
	if err != nil {
		return 0, fmt.Errorf("parse_timeout: %w", err)
	}
	return d, nil
}

// EffectiveWorkers is 1 when parallel analysis is off.
func (c *Config) EffectiveWorkers() int {
	if !c.Analysis.Parallel || c.Analysis.Workers < 1 {
		return 1
	}
	return c.Analysis.Workers
}
