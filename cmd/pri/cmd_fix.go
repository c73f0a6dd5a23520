package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/app"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/approval"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/fixgen"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/perrors"
)

var (
	fixIssuesFile       string
	fixDynamicApproval  bool
	fixConservativeLevel int
)

var fixCmd = &cobra.Command{
	Use:   "fix <project_path>",
	Short: "Propose, score, approve, and apply fixes for a previously recorded issue list",
	Args:  cobra.ExactArgs(1),
	RunE:  runFix,
}

func init() {
	fixCmd.Flags().StringVar(&fixIssuesFile, "issues-file", "", "JSON issue list produced by 'pri analyze' (required)")
	fixCmd.Flags().BoolVar(&fixDynamicApproval, "dynamic-approval", false, "raise the auto-approve threshold to max(configured, 0.9)")
	fixCmd.Flags().IntVar(&fixConservativeLevel, "conservative-level", -1, "additional approval-threshold steps, each adding 0.02 (capped at 1.0); -1 uses the configured safety.conservative_level")
	_ = fixCmd.MarkFlagRequired("issues-file")
}

func runFix(cmd *cobra.Command, args []string) error {
	applyPersistentOverrides()
	projectPath := args[0]
	if fixIssuesFile == "" {
		return &perrors.InputError{Op: "fix", Err: fmt.Errorf("--issues-file is required")}
	}

	issues, err := readIssues(fixIssuesFile)
	if err != nil {
		return err
	}

	a, err := app.New(workspace, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	level := fixConservativeLevel
	if level < 0 {
		level = a.Config.Safety.ConservativeLevel
	}
	threshold := a.Config.Safety.AutoApproveThreshold + 0.02*float64(level)
	if threshold > 1.0 {
		threshold = 1.0
	}
	gate := approval.New(approval.Config{
		Mode:            approval.ModeInteractive,
		AutoThreshold:   threshold,
		DynamicApproval: fixDynamicApproval,
	}, a.Scorer, os.Stdin, os.Stdout)

	fileContents := map[string]string{}
	var proposals []domain.FixProposal
	for _, issue := range issues {
		content, err := readFileContentFor(projectPath, issue.FilePath, fileContents)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", issue.FilePath, err)
			continue
		}
		proposal, ok := fixgen.Generate(issue, content)
		if !ok {
			continue
		}
		proposals = append(proposals, proposal)
	}

	if len(proposals) == 0 {
		fmt.Println("no auto-fixable issues in the issue list")
		return nil
	}

	approved, rejected, _ := gate.Run(proposals, fileContents)
	fmt.Printf("%d approved, %d rejected at the approval gate\n", len(approved), len(rejected))

	ctx := context.Background()
	applied, failed := 0, 0
	for _, p := range approved {
		result := a.Applier.Apply(ctx, projectPath, p)
		if result.Applied {
			applied++
		} else {
			failed++
			fmt.Fprintf(os.Stderr, "failed to apply fix for %s: %s\n", p.FilePath, result.Reason)
		}
	}

	fmt.Printf("%d fixes applied, %d failed after approval\n", applied, failed)
	return nil
}

func readFileContentFor(projectPath, relPath string, cache map[string]string) (string, error) {
	if content, ok := cache[relPath]; ok {
		return content, nil
	}
	data, err := os.ReadFile(filepath.Join(projectPath, relPath))
	if err != nil {
		return "", err
	}
	cache[relPath] = string(data)
	return cache[relPath], nil
}
