package correlate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path string, data []byte, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, mode))
}

func TestScanExecutables(t *testing.T) {
	dir := t.TempDir()
	bins := filepath.Join(dir, "out")
	logs := filepath.Join(dir, "logs")

	write(t, filepath.Join(bins, "fuzz_a"), []byte("\x00\x01junk fuzzerLogFile-fuzz-a.data\x00more"), 0o755)
	write(t, filepath.Join(bins, "fuzz_b"), []byte("#!/bin/sh\necho nothing\n"), 0o755)
	write(t, filepath.Join(bins, "readme.txt"), []byte("fuzzerLogFile-readme.data"), 0o644)
	write(t, filepath.Join(bins, ".cache", "fuzz_c"), []byte("fuzzerLogFile-c.data"), 0o755)
	write(t, filepath.Join(logs, "fuzzerLogFile-fuzz-a.data"), []byte("Call tree\n"), 0o644)

	c, err := ScanExecutables(context.Background(), bins, logs)
	require.NoError(t, err)

	require.Len(t, c.Pairings, 1)
	assert.Equal(t, Pairing{
		ExecutablePath: filepath.Join(bins, "fuzz_a"),
		FuzzerLogFile:  filepath.Join(logs, "fuzzerLogFile-fuzz-a.data"),
		Evidence:       EvidenceMarker,
	}, c.Pairings[0])
	assert.Equal(t, []string{filepath.Join(bins, "fuzz_b")}, c.Unmatched)

	assert.Equal(t, map[string]string{"fuzzerLogFile-fuzz-a.data": filepath.Join(bins, "fuzz_a")}, c.Binaries())
}

func TestScan_LogDirOptional(t *testing.T) {
	bins := t.TempDir()
	write(t, filepath.Join(bins, "fuzz"), []byte("fuzzerLogFile-fuzz.data"), 0o755)

	c, err := ScanExecutables(context.Background(), bins)
	require.NoError(t, err)
	require.Len(t, c.Pairings, 1)
	assert.Equal(t, "fuzzerLogFile-fuzz.data", c.Pairings[0].FuzzerLogFile)
}

func TestScan_ELFMagicWithoutExecBit(t *testing.T) {
	bins := t.TempDir()
	write(t, filepath.Join(bins, "lib.so"), append([]byte("\x7fELF"), []byte(" fuzzerLogFile-lib.data")...), 0o644)

	c, err := ScanExecutables(context.Background(), bins)
	require.NoError(t, err)
	require.Len(t, c.Pairings, 1)
	assert.Empty(t, c.Unmatched)
}

func TestFindMarker(t *testing.T) {
	dir := t.TempDir()

	t.Run("Across chunk boundary", func(t *testing.T) {
		path := filepath.Join(dir, "big")
		data := append(bytes.Repeat([]byte{'a'}, chunkSize+256-10), []byte("fuzzerLogFile-big.data")...)
		write(t, path, data, 0o755)

		m, err := NewScanner(Options{}).findMarker(path)
		require.NoError(t, err)
		assert.Equal(t, "fuzzerLogFile-big.data", m)
	})

	t.Run("Bounded read", func(t *testing.T) {
		path := filepath.Join(dir, "far")
		write(t, path, []byte("0123456789abcdefghij fuzzerLogFile-far.data"), 0o755)

		m, err := NewScanner(Options{MaxScanBytes: 16}).findMarker(path)
		require.NoError(t, err)
		assert.Empty(t, m)
	})
}

func TestCorrelationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)

	c, err := ReadFile(path)
	require.NoError(t, err, "missing file is an empty correlation")
	assert.Empty(t, c.Pairings)

	want := &Correlation{Pairings: []Pairing{{ExecutablePath: "out/fuzz", FuzzerLogFile: "fuzzerLogFile-fuzz.data", Evidence: EvidenceMarker}}}
	require.NoError(t, WriteFile(want, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "executable_path: out/fuzz")

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
