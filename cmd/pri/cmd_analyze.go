package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/app"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/engine"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/perrors"
)

var (
	analyzeOutputFile string
	analyzeMaxDepth   int
	analyzeBatchSize  int
	analyzeQuick      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project_path>",
	Short: "Recursively analyze a project and report issues",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOutputFile, "output-file", "", "write the issue list as JSON to this path instead of stdout")
	analyzeCmd.Flags().IntVar(&analyzeMaxDepth, "max-depth", 0, "limit traversal to this many directories below the project root (0 = unlimited)")
	analyzeCmd.Flags().IntVar(&analyzeBatchSize, "batch-size", 0, "override the engine's batch size (0 = use config default)")
	analyzeCmd.Flags().BoolVar(&analyzeQuick, "quick", false, "quick pass: halve the batch size and skip the cross-domain detector")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	applyPersistentOverrides()
	projectPath := args[0]
	if _, err := os.Stat(projectPath); err != nil {
		return &perrors.InputError{Op: "analyze", Err: fmt.Errorf("project path %s: %w", projectPath, err)}
	}

	a, err := app.New(workspace, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Engine.Config()
	if analyzeMaxDepth > 0 {
		cfg.MaxDepth = analyzeMaxDepth
	}
	if analyzeBatchSize > 0 {
		cfg.BatchSize = analyzeBatchSize
	}
	if analyzeQuick {
		cfg.BatchSize = maxInt(1, cfg.BatchSize/2)
	}
	eng := engine.New(cfg, a.Registry, a.Store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nanalysis cancelled")
		cancel()
	}()

	result, err := eng.Run(ctx, projectPath)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if err := writeIssues(result.Issues, analyzeOutputFile); err != nil {
		return err
	}

	fmt.Printf("analyzed %d files (%d skipped) in %s: %d issues found\n",
		result.FilesProcessed, result.FilesSkipped, result.Duration, len(result.Issues))
	return nil
}

func writeIssues(issues []domain.Issue, outputFile string) error {
	if issues == nil {
		issues = []domain.Issue{}
	}
	data, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	if outputFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return &perrors.InputError{Op: "analyze", Err: fmt.Errorf("write %s: %w", outputFile, err)}
	}
	return nil
}

func readIssues(issuesFile string) ([]domain.Issue, error) {
	data, err := os.ReadFile(issuesFile)
	if err != nil {
		return nil, &perrors.InputError{Op: "read issues file", Err: err}
	}
	var issues []domain.Issue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, &perrors.InputError{Op: "parse issues file", Err: err}
	}
	return issues, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
