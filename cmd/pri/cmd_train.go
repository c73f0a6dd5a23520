package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/app"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/perrors"
)

// userFeedbackNamespace matches internal/prune's protected-namespace list,
// so recorded feedback survives age/quality pruning at the standard floor.
const userFeedbackNamespace = "user_feedback"

var (
	trainIssuesFile   string
	trainInteractive  bool
	trainBatchFile    string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Record human feedback on a previously recorded issue list",
	RunE:  runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainIssuesFile, "issues-file", "", "JSON issue list produced by 'pri analyze' (required)")
	trainCmd.Flags().BoolVar(&trainInteractive, "interactive", false, "prompt on stdin for each issue's feedback")
	trainCmd.Flags().StringVar(&trainBatchFile, "batch-file", "", "JSON map of issue index to feedback label, applied without prompting")
	_ = trainCmd.MarkFlagRequired("issues-file")
}

// batchFeedback is the shape read from --batch-file: issue index (as a
// string key, since JSON object keys are always strings) to a feedback
// label such as "useful", "false_positive", or "wrong_fix".
type batchFeedback map[string]string

func runTrain(cmd *cobra.Command, args []string) error {
	applyPersistentOverrides()
	if trainIssuesFile == "" {
		return &perrors.InputError{Op: "train", Err: fmt.Errorf("--issues-file is required")}
	}
	if trainInteractive == (trainBatchFile != "") {
		return &perrors.InputError{Op: "train", Err: fmt.Errorf("exactly one of --interactive or --batch-file must be set")}
	}

	issues, err := readIssues(trainIssuesFile)
	if err != nil {
		return err
	}

	a, err := app.New(workspace, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	recorded := 0

	if trainBatchFile != "" {
		feedback, err := readBatchFeedback(trainBatchFile)
		if err != nil {
			return err
		}
		for idx, issue := range issues {
			label, ok := feedback[strconv.Itoa(idx)]
			if !ok {
				continue
			}
			if err := storeFeedback(ctx, a, idx, issue.FilePath, issue.IssueType, label); err != nil {
				fmt.Fprintf(os.Stderr, "failed to record feedback for issue %d: %v\n", idx, err)
				continue
			}
			recorded++
		}
		fmt.Printf("recorded %d of %d feedback entries from %s\n", recorded, len(issues), trainBatchFile)
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for idx, issue := range issues {
		fmt.Printf("\n[%d/%d] %s:%s %s\n%s\n", idx+1, len(issues), issue.FilePath, lineLabel(issue.Line), issue.IssueType, issue.Description)
		fmt.Print("feedback (useful / false-positive / wrong-fix / skip)? ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return &perrors.InputError{Op: "train", Err: fmt.Errorf("read feedback: %w", err)}
		}
		label := normalizeFeedbackLabel(strings.TrimSpace(line))
		if label == "" {
			continue
		}
		if err := storeFeedback(ctx, a, idx, issue.FilePath, issue.IssueType, label); err != nil {
			fmt.Fprintf(os.Stderr, "failed to record feedback for issue %d: %v\n", idx, err)
			continue
		}
		recorded++
	}

	fmt.Printf("recorded %d of %d feedback entries\n", recorded, len(issues))
	return nil
}

func normalizeFeedbackLabel(answer string) string {
	switch strings.ToLower(answer) {
	case "useful", "u":
		return "useful"
	case "false-positive", "false_positive", "f":
		return "false_positive"
	case "wrong-fix", "wrong_fix", "w":
		return "wrong_fix"
	default:
		return ""
	}
}

func storeFeedback(ctx context.Context, a *app.App, issueIndex int, filePath, issueType, label string) error {
	_, err := a.Store.Store(ctx, userFeedbackNamespace, fmt.Sprintf("%s: %s (%s)", label, filePath, issueType), map[string]any{
		"issue_index": issueIndex,
		"file_path":   filePath,
		"issue_type":  issueType,
		"label":       label,
	})
	return err
}

func readBatchFeedback(path string) (batchFeedback, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &perrors.InputError{Op: "read batch feedback file", Err: err}
	}
	var fb batchFeedback
	if err := json.Unmarshal(data, &fb); err != nil {
		return nil, &perrors.InputError{Op: "parse batch feedback file", Err: err}
	}
	return fb, nil
}

func lineLabel(line *int) string {
	if line == nil {
		return "?"
	}
	return strconv.Itoa(*line)
}
