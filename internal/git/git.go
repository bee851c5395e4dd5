// Package git reads changed line ranges from "git diff".
package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ChangedFile lists the lines of the new version of a file touched by a
// diff.
type ChangedFile struct {
	Path         string `json:"path" yaml:"path"`
	ChangedLines []int  `json:"changed_lines" yaml:"changed_lines"`
}

// hunk header: @@ -oldStart,oldLen +newStart,newLen @@
var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// GetChangedFiles runs "git diff -U0 baseRef" in repoDir.
func GetChangedFiles(ctx context.Context, repoDir, baseRef string) ([]ChangedFile, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "diff", "-U0", baseRef)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	return ParseDiff(bytes.NewReader(output))
}

// ParseDiff reads a zero-context unified diff. Deleted files and pure
// deletion hunks contribute no lines since nothing remains to map them to.
func ParseDiff(r io.Reader) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var changes []ChangedFile
	var current *ChangedFile
	flush := func() {
		if current != nil && len(current.ChangedLines) > 0 {
			changes = append(changes, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
		case strings.HasPrefix(line, "+++ "):
			path := strings.TrimPrefix(line, "+++ ")
			if path == "/dev/null" {
				current = nil
				continue
			}
			current = &ChangedFile{Path: strings.TrimPrefix(path, "b/")}
		case strings.HasPrefix(line, "@@") && current != nil:
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start, _ := strconv.Atoi(m[1])
			count := 1
			if m[2] != "" {
				count, _ = strconv.Atoi(m[2])
			}
			for i := 0; i < count; i++ {
				current.ChangedLines = append(current.ChangedLines, start+i)
			}
		}
	}
	flush()
	return changes, scanner.Err()
}
