package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"fuzzlens/internal/diff"
)

var diffText bool

var diffCmd = &cobra.Command{
	Use:   "diff <run-a> <run-b>",
	Short: "Compare two stored runs",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		ctx := context.Background()
		a, err := store.LoadProfile(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to load run: %v", err)
		}
		b, err := store.LoadProfile(ctx, args[1])
		if err != nil {
			log.Fatalf("Failed to load run: %v", err)
		}

		if diffText {
			fmt.Print(diff.TextDiff(a, b))
			return
		}
		printYAML(diff.Diff(a, b))
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := initStore(loadConfig())
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(context.Background())
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %-6s %5d functions  %s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Language, r.Functions, r.Root)
		}
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffText, "text", false, "Print a line diff of the profile dumps")
}
