// Package correlate pairs built fuzz binaries with the call-tree log files
// they produce.
package correlate

import (
	"bytes"
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"fuzzlens/internal/graph"
)

const (
	EvidenceMarker     = "marker"
	EvidenceBinaryName = "binary-name"

	// DefaultMaxScanBytes bounds how much of each binary is searched.
	DefaultMaxScanBytes = 512 << 20

	harnessSymbol = "LLVMFuzzerTestOneInput"
	chunkSize     = 1 << 20
)

var (
	logMarker = regexp.MustCompile(`fuzzerLogFile-[A-Za-z0-9_-]+\.data`)
	elfMagic  = []byte("\x7fELF")
)

// Pairing links one executable to its log file.
type Pairing struct {
	ExecutablePath string `json:"executable_path" yaml:"executable_path"`
	FuzzerLogFile  string `json:"fuzzer_log_file" yaml:"fuzzer_log_file"`
	Evidence       string `json:"evidence" yaml:"evidence"`
}

// Correlation is the result of one scan. Unmatched lists executables for
// which no evidence was found.
type Correlation struct {
	Pairings  []Pairing `json:"pairings" yaml:"pairings"`
	Unmatched []string  `json:"unmatched,omitempty" yaml:"unmatched,omitempty"`
}

// Binaries maps log file base names to executables.
func (c *Correlation) Binaries() map[string]string {
	out := make(map[string]string, len(c.Pairings))
	for _, p := range c.Pairings {
		out[filepath.Base(p.FuzzerLogFile)] = p.ExecutablePath
	}
	return out
}

type Options struct {
	MaxScanBytes int64
	Logger       *slog.Logger
}

type Scanner struct {
	maxBytes int64
	logger   *slog.Logger
}

func NewScanner(opts Options) *Scanner {
	if opts.MaxScanBytes <= 0 {
		opts.MaxScanBytes = DefaultMaxScanBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scanner{maxBytes: opts.MaxScanBytes, logger: opts.Logger}
}

// ScanExecutables scans binDir with default options.
func ScanExecutables(ctx context.Context, binDir string, logDirs ...string) (*Correlation, error) {
	return NewScanner(Options{}).Scan(ctx, binDir, logDirs...)
}

// Scan walks binDir and inspects every executable. A binary embedding a
// log file name is paired through that marker. Otherwise, a binary that
// exports the harness symbol is paired with a log named after it when such a
// log exists in logDirs. Binaries without either are listed as unmatched.
func (s *Scanner) Scan(ctx context.Context, binDir string, logDirs ...string) (*Correlation, error) {
	bins, err := Executables(binDir)
	if err != nil {
		return nil, err
	}

	c := &Correlation{Pairings: []Pairing{}}
	for _, bin := range bins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok, err := s.pair(bin, logDirs)
		if err != nil {
			s.logger.Warn("correlate.unreadable", "path", bin, "err", err)
		}
		if !ok {
			c.Unmatched = append(c.Unmatched, bin)
			continue
		}
		s.logger.Debug("correlate.pair", "path", bin, "log", p.FuzzerLogFile, "evidence", p.Evidence)
		c.Pairings = append(c.Pairings, p)
	}
	return c, nil
}

func (s *Scanner) pair(bin string, logDirs []string) (Pairing, bool, error) {
	marker, err := s.findMarker(bin)
	if err != nil {
		return Pairing{}, false, err
	}
	if marker != "" {
		return Pairing{ExecutablePath: bin, FuzzerLogFile: locate(marker, logDirs), Evidence: EvidenceMarker}, true, nil
	}

	if !hasHarnessSymbol(bin) {
		return Pairing{}, false, nil
	}
	name := graph.LogFileName(filepath.Base(bin))
	for _, dir := range logDirs {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return Pairing{ExecutablePath: bin, FuzzerLogFile: path, Evidence: EvidenceBinaryName}, true, nil
		}
	}
	return Pairing{}, false, nil
}

// findMarker returns the first log file name embedded in the binary. Chunks
// overlap so a marker straddling a boundary is still seen.
func (s *Scanner) findMarker(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	const overlap = 256
	r := io.LimitReader(f, s.maxBytes)
	buf := make([]byte, chunkSize+overlap)
	carry := 0
	for {
		n, err := io.ReadFull(r, buf[carry:])
		window := buf[:carry+n]
		if m := logMarker.Find(window); m != nil {
			return string(m), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return "", nil
			}
			return "", err
		}
		carry = min(overlap, len(window))
		copy(buf, window[len(window)-carry:])
	}
}

func hasHarnessSymbol(path string) bool {
	f, err := elf.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	syms, _ := f.Symbols()
	dyn, _ := f.DynamicSymbols()
	for _, sym := range append(syms, dyn...) {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}
		if demangle.Filter(sym.Name, demangle.NoParams) == harnessSymbol {
			return true
		}
	}
	return false
}

// locate returns the path of name in the first log dir holding it, or name
// itself when none does.
func locate(name string, logDirs []string) string {
	for _, dir := range logDirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return name
}

// executables lists regular files under dir that carry an executable bit or
// start with the ELF magic, sorted by path.
// Executables lists the regular files under dir that carry an exec bit or
// ELF magic, in path order. Hidden directories are skipped.
func Executables(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode().Perm()&0o111 != 0 || isELF(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func isELF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, elfMagic)
}
