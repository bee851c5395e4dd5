package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"fuzzlens/internal/analysis"
	"fuzzlens/internal/config"
	"fuzzlens/internal/metrics"
	"fuzzlens/internal/pipeline"
)

var (
	runLanguage    string
	runCoverage    string
	runCovFormat   string
	runCorrelation string
	runDump        bool
	runOutDir      string
	runSave        bool
	runDOT         string
	runSince       string
	runImpactHops  int

	analyserFile  string
	analyserLine  int
	farReachFlags analysis.FarReachOptions
)

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run the full pipeline and every registered analyser",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		runPipeline(cmd, cfg, args, "")
	},
}

var analyserCmd = &cobra.Command{
	Use:     "analyse <analyser> [path]",
	Aliases: []string{"analyser"},
	Short:   "Run one analyser by name",
	Args:    cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		runPipeline(cmd, cfg, args[1:], args[0])
	},
}

var listAnalysersCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered analysers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range analysis.NewDefaultRegistry(nil, nil).Names() {
			fmt.Println(name)
		}
	},
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, args []string, analyser string) {
	if len(args) > 0 {
		cfg.Project.Root = args[0]
	}
	opts, err := pipeline.FromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	applyRunFlags(cmd, &opts)
	opts.Analyzer = analyser
	opts.Logger = newLogger()
	opts.Metrics = metrics.New()
	defer writeMetrics(opts.Metrics)

	if runSave {
		store, err := initStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()
		opts.Store = store
	}

	res, err := pipeline.Run(context.Background(), opts)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	for _, path := range res.CallTreeFiles {
		log.Printf("Wrote call tree %s", path)
	}
	if runDOT != "" {
		f, err := os.Create(runDOT)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", runDOT, err)
		}
		if err := res.Graph.WriteDOT(f); err != nil {
			log.Fatalf("Failed to write DOT: %v", err)
		}
		f.Close()
	}
	if res.RunID != "" {
		log.Printf("Stored run %s", res.RunID)
	}
	printYAML(res.Findings)
}

// applyRunFlags overrides config values with flags the user actually set.
func applyRunFlags(cmd *cobra.Command, opts *pipeline.Options) {
	flags := cmd.Flags()
	if flags.Changed("language") {
		opts.Language = runLanguage
	}
	if flags.Changed("coverage") {
		opts.CoveragePath = runCoverage
	}
	if flags.Changed("coverage-format") {
		opts.CoverageFormat = runCovFormat
	}
	if flags.Changed("correlation") {
		opts.CorrelationPath = runCorrelation
	}
	if flags.Changed("dump-files") {
		opts.DumpFiles = runDump
	}
	if flags.Changed("out-dir") {
		opts.OutDir = runOutDir
	}
	if flags.Changed("changed-since") {
		opts.ChangedSince = runSince
	}
	if flags.Changed("impact-hops") {
		opts.AnalyzerOptions.ImpactHops = runImpactHops
	}
	if flags.Changed("file") {
		opts.AnalyzerOptions.SourceFile = analyserFile
	}
	if flags.Changed("line") {
		opts.AnalyzerOptions.SourceLine = analyserLine
	}

	fr := &opts.AnalyzerOptions.FarReach
	if flags.Changed("exclude-static") {
		fr.ExcludeStatic = farReachFlags.ExcludeStatic
	}
	if flags.Changed("only-referenced") {
		fr.OnlyReferenced = farReachFlags.OnlyReferenced
	}
	if flags.Changed("only-header") {
		fr.OnlyHeader = farReachFlags.OnlyHeader
	}
	if flags.Changed("only-reached") {
		fr.OnlyReached = farReachFlags.OnlyReached
	}
	if flags.Changed("interesting") {
		fr.InterestingPatterns = farReachFlags.InterestingPatterns
	}
	if flags.Changed("max-functions") {
		fr.MaxFunctions = farReachFlags.MaxFunctions
	}
}

func init() {
	for _, c := range []*cobra.Command{runCmd, analyserCmd} {
		f := c.Flags()
		f.StringVarP(&runLanguage, "language", "l", "", "Source language (c, c++, go, jvm, rust, python)")
		f.StringVar(&runCoverage, "coverage", "", "Coverage file")
		f.StringVar(&runCovFormat, "coverage-format", "", "Coverage format: yaml or llvm-cov")
		f.StringVar(&runCorrelation, "correlation", "", "Binary to log correlation file")
		f.BoolVar(&runDump, "dump-files", false, "Write per-entrypoint call tree files")
		f.StringVarP(&runOutDir, "out-dir", "o", "", "Directory for call tree files")
		f.BoolVar(&runSave, "save", false, "Store the profile in the run database")
		f.StringVar(&runDOT, "dot", "", "Write the call graph in DOT format")
		f.StringVar(&runSince, "changed-since", "", "Git ref; report harnesses reaching code changed since it")
		f.IntVar(&runImpactHops, "impact-hops", analysis.DefaultImpactHops, "Caller hops followed from changed functions")
		f.StringVar(&analyserFile, "file", "", "Source file for SourceCodeLineAnalyser")
		f.IntVar(&analyserLine, "line", 0, "Source line for SourceCodeLineAnalyser")
		f.BoolVar(&farReachFlags.ExcludeStatic, "exclude-static", false, "Far reach: skip static and private functions")
		f.BoolVar(&farReachFlags.OnlyReferenced, "only-referenced", false, "Far reach: keep functions with at least one caller")
		f.BoolVar(&farReachFlags.OnlyHeader, "only-header", false, "Far reach: keep functions defined in header files or Java interfaces")
		f.BoolVar(&farReachFlags.OnlyReached, "only-reached", false, "Far reach: drop unreached functions")
		f.StringSliceVar(&farReachFlags.InterestingPatterns, "interesting", nil, "Far reach: name patterns to keep")
		f.IntVar(&farReachFlags.MaxFunctions, "max-functions", 0, "Far reach: cap on reported functions")
	}
	analyserCmd.AddCommand(listAnalysersCmd)
}
