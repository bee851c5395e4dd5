package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fuzzlens/internal/config"
	"fuzzlens/internal/metrics"
	"fuzzlens/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "fuzzlens",
		Short: "Fuzz harness reachability and coverage analysis",
	}
	configPath  string
	dbPath      string
	verbose     bool
	metricsFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fuzzlens.yaml", "Config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database for stored runs (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyserCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(correlateCmd)
	rootCmd.AddCommand(lightCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.Storage.DB = dbPath
	}
	return cfg
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// initStore opens the run database, creating its directory.
func initStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	if err := ensureParent(cfg.Storage.DB); err != nil {
		return nil, err
	}
	return storage.NewSQLiteStore(cfg.Storage.DB)
}

func writeMetrics(m *metrics.Metrics) {
	if metricsFile == "" {
		return
	}
	if err := m.WriteTextfile(metricsFile); err != nil {
		log.Printf("Warning: failed to write metrics: %v", err)
	}
}

func printYAML(v any) {
	out, err := yaml.Marshal(v)
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Print(string(out))
}
