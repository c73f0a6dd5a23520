// Package main implements the pri CLI: a recursive, self-training static
// analysis and fix pipeline. This file is the entry point and command
// registration hub; each subcommand lives in its own cmd_*.go file.
//
// # File Index
//
// Entry Point & Global State:
//   - main.go       - rootCmd, persistent flags, init()
//
// Commands:
//   - cmd_analyze.go - analyzeCmd, runAnalyze()
//   - cmd_fix.go      - fixCmd, runFix()
//   - cmd_train.go    - trainCmd, runTrain()
//   - cmd_stats.go    - statsCmd, runStats()
//   - cmd_prune.go    - pruneCmd, runPrune()
//   - cmd_cycle.go    - cycleCmd, runCycle(), watchAndRerun()
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	workspace        string
	verbose          bool
	memoryDB         string
	embeddingProvider string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pri",
	Short: "pri - persistent recursive intelligence for code analysis and fixing",
	Long: `pri recursively analyzes a codebase, proposes fixes, scores them for
safety, and applies the ones a human (or an auto-approve threshold) signs
off on - remembering what it learns across runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace root (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&memoryDB, "memory-db", "", "override the memory database path (PRI_MEMORY_DB)")
	rootCmd.PersistentFlags().StringVar(&embeddingProvider, "embedding-provider", "", "override the embedding provider (PRI_EMBEDDING_PROVIDER)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(cycleCmd)
}

func applyPersistentOverrides() {
	if memoryDB != "" {
		os.Setenv("PRI_MEMORY_DB", memoryDB)
	}
	if embeddingProvider != "" {
		os.Setenv("PRI_EMBEDDING_PROVIDER", embeddingProvider)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
