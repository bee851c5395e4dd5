package main

import (
	"context"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"fuzzlens/internal/light"
)

var (
	lightLanguage string
	lightBinDir   string
	lightOutDir   string
)

var lightCmd = &cobra.Command{
	Use:   "light [path]",
	Short: "List sources, tests and harness executables without building a call graph",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		root := cfg.Project.Root
		if len(args) == 1 {
			root = args[0]
		}
		lang := cfg.Project.Language
		if lightLanguage != "" {
			lang = lightLanguage
		}
		binDir := lightBinDir
		if binDir == "" {
			binDir = cfg.Correlation.BinDir
		}
		outDir := lightOutDir
		if outDir == "" {
			outDir = filepath.Join(cfg.Analysis.OutDir, "light")
		}

		res, err := light.Analyze(context.Background(), root, light.Options{
			Language:   lang,
			Entrypoint: cfg.Project.Entrypoint,
			BinDir:     binDir,
			Workers:    cfg.EffectiveWorkers(),
			Logger:     newLogger(),
		})
		if err != nil {
			log.Fatalf("Light analysis failed: %v", err)
		}
		if err := light.Write(res, outDir); err != nil {
			log.Fatalf("Failed to write %s: %v", outDir, err)
		}
		log.Printf("Light analysis written to %s", outDir)
		printYAML(res)
	},
}

func init() {
	lightCmd.Flags().StringVarP(&lightLanguage, "language", "l", "", "Source language (c, c++, go, jvm, rust, python)")
	lightCmd.Flags().StringVar(&lightBinDir, "bin-dir", "", "Directory of built fuzz executables (default correlation.bin_dir)")
	lightCmd.Flags().StringVarP(&lightOutDir, "out-dir", "o", "", "Output directory (default <analysis.out_dir>/light)")
}
