package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"fuzzlens/internal/index"
)

var (
	analyzeEntrypoint string
	analyzeReport     string
	analyzeProject    string
	analyzeWorkers    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <language> <dir>",
	Short: "Parse a source tree and print its call-site report",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		lang, dir := args[0], args[1]
		idx := index.NewIndexer(index.Options{Workers: analyzeWorkers, Logger: newLogger()})

		start := time.Now()
		p, report, err := idx.Analyze(context.Background(), lang, dir, analyzeEntrypoint)
		if err != nil {
			log.Fatalf("Analyze failed: %v", err)
		}
		log.Printf("Parsed %d files (%d skipped), %d functions in %v",
			len(p.Files), len(p.Skipped), len(p.Functions()), time.Since(start))

		if analyzeProject != "" {
			if err := index.SaveProject(p, analyzeProject); err != nil {
				log.Fatalf("Failed to save project: %v", err)
			}
		}
		if analyzeReport != "" {
			if err := writeText(analyzeReport, report); err != nil {
				log.Fatalf("Failed to write report: %v", err)
			}
			return
		}
		fmt.Print(report)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeEntrypoint, "entrypoint", "e", "", "Fuzz entrypoint name (default: language convention)")
	analyzeCmd.Flags().StringVarP(&analyzeReport, "out", "o", "", "Write the call-site report to a file")
	analyzeCmd.Flags().StringVar(&analyzeProject, "project-json", "", "Also write the parsed project as JSON")
	analyzeCmd.Flags().IntVarP(&analyzeWorkers, "workers", "w", 4, "Parallel parse workers")
}
