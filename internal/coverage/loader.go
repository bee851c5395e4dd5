package coverage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ianlancetaylor/demangle"
	"gopkg.in/yaml.v3"
)

// File is the on-disk coverage document. JSON documents of the same shape
// are accepted since YAML is a superset of JSON.
type File struct {
	Functions []Record `yaml:"functions" json:"functions"`
}

// LoadFile reads a YAML or JSON coverage document. A missing path yields an
// empty feed.
func LoadFile(path string) (*MapFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMapFeed(), nil
		}
		return nil, fmt.Errorf("failed to read coverage file %s: %w", path, err)
	}
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse coverage file %s: %w", path, err)
	}
	return NewMapFeed(doc.Functions...), nil
}

// Save writes the feed as a YAML coverage document.
func Save(feed *MapFeed, path string) error {
	data, err := yaml.Marshal(File{Functions: feed.Records()})
	if err != nil {
		return fmt.Errorf("failed to encode coverage: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write coverage file %s: %w", path, err)
	}
	return nil
}

var covLine = regexp.MustCompile(`^\s*(\d+)\|\s*([0-9.]+[kMGE]?)?\|`)

// LoadCovReport parses the text output of "llvm-cov show". A line at column
// zero ending in ':' opens a function (mangled names are demangled) or, when
// it names a source path, sets the file of the functions that follow. Each
// "<line>|<hits>|<source>" row that carries a count adds to the open
// function. Counts may be abbreviated as 1.2k or 3M.
func LoadCovReport(r io.Reader) (*MapFeed, error) {
	feed := NewMapFeed()
	var cur *Record
	var file string
	flush := func() {
		if cur != nil {
			feed.Add(*cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if line[0] != ' ' && line[0] != '|' && strings.HasSuffix(line, ":") && !strings.Contains(line, "|") {
			flush()
			header := strings.TrimSuffix(line, ":")
			if isSourcePath(header) {
				file = header
				continue
			}
			cur = &Record{Name: demangleName(header), File: file}
			if own, _ := SplitStaticName(header); own != "" {
				cur.File = own
			}
			continue
		}
		if cur == nil {
			continue
		}
		m := covLine.FindStringSubmatch(line)
		if m == nil || m[2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		hits, err := parseCount(m[2])
		if err != nil {
			return nil, fmt.Errorf("bad hit count %q on line %d of %s: %w", m[2], n, cur.Name, err)
		}
		cur.Lines = append(cur.Lines, LineHits{Line: n, Hits: hits})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coverage report: %w", err)
	}
	flush()
	return feed, nil
}

// LoadCovReportFile is LoadCovReport over a file path.
func LoadCovReportFile(path string) (*MapFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open coverage report %s: %w", path, err)
	}
	defer f.Close()
	return LoadCovReport(f)
}

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".h": true, ".hpp": true, ".hh": true, ".rs": true,
}

func isSourcePath(s string) bool {
	if strings.Contains(s, ":") {
		return false
	}
	return strings.ContainsAny(s, "/\\") || sourceExts[filepath.Ext(s)]
}

func demangleName(name string) string {
	if d, err := demangle.ToString(name, demangle.NoParams); err == nil {
		return d
	}
	return name
}

func parseCount(s string) (uint64, error) {
	mult := 1.0
	switch s[len(s)-1] {
	case 'k':
		mult = 1e3
	case 'M':
		mult = 1e6
	case 'G':
		mult = 1e9
	case 'E':
		mult = 1e18
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return uint64(f * mult), nil
}
