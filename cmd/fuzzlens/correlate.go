package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"fuzzlens/internal/correlate"
)

var (
	correlateLogDirs []string
	correlateOut     string
)

var correlateCmd = &cobra.Command{
	Use:   "correlate [binaries-dir]",
	Short: "Pair fuzz binaries with their call-tree log files",
	Long:  "Pair fuzz binaries with their call-tree log files. The directory defaults to correlation.bin_dir.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		binDir, err := binariesDir(args, loadConfig())
		if err != nil {
			log.Fatalf("Correlation failed: %v", err)
		}
		s := correlate.NewScanner(correlate.Options{Logger: newLogger()})
		c, err := s.Scan(context.Background(), binDir, correlateLogDirs...)
		if err != nil {
			log.Fatalf("Correlation failed: %v", err)
		}
		for _, p := range c.Pairings {
			log.Printf("Paired %s -> %s (%s)", p.ExecutablePath, p.FuzzerLogFile, p.Evidence)
		}
		for _, bin := range c.Unmatched {
			log.Printf("No log found for %s", bin)
		}
		if err := correlate.WriteFile(c, correlateOut); err != nil {
			log.Fatalf("Failed to write %s: %v", correlateOut, err)
		}
	},
}

func init() {
	correlateCmd.Flags().StringSliceVar(&correlateLogDirs, "log-dir", nil, "Directories holding fuzzerLogFile-*.data files")
	correlateCmd.Flags().StringVarP(&correlateOut, "out", "o", correlate.DefaultFileName, "Output correlation file")
}
