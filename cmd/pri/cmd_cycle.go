package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/app"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/perrors"
)

// manualFixNamespace records issues a scan_comparison pass found resolved,
// and, from a manual_fixes pass, current issues whose file has no
// internal/apply .bak sibling, i.e. files touched by hand rather than by
// `pri fix`.
const manualFixNamespace = "manual_fix_history"

var (
	cycleIssuesFile         string
	cyclePreviousIssuesFile string
	cycleProjectPath        string
	cycleWatch              bool
)

var cycleCmd = &cobra.Command{
	Use:   "cycle <manual_fixes|scan_comparison|patterns|cycle_metrics>",
	Short: "Report on the human/automated improvement cycle tracked across analyze runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runCycle,
}

func init() {
	cycleCmd.Flags().StringVar(&cycleIssuesFile, "issues-file", "", "current issue list, required by manual_fixes and scan_comparison")
	cycleCmd.Flags().StringVar(&cyclePreviousIssuesFile, "previous-issues-file", "", "prior issue list, required by scan_comparison")
	cycleCmd.Flags().StringVar(&cycleProjectPath, "project-path", "", "project root, required by manual_fixes and scan_comparison")
	cycleCmd.Flags().BoolVar(&cycleWatch, "watch", false, "after the initial report, re-run it on every change under project-path")
}

func runCycle(cmd *cobra.Command, args []string) error {
	applyPersistentOverrides()
	report := args[0]

	a, err := app.New(workspace, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	run := func() error { return runCycleReport(a, report) }
	if err := run(); err != nil {
		return err
	}
	if !cycleWatch {
		return nil
	}
	return watchAndRerun(cycleProjectPath, run)
}

func runCycleReport(a *app.App, report string) error {
	ctx := context.Background()
	switch report {
	case "manual_fixes":
		return reportManualFixes(ctx, a)
	case "scan_comparison":
		return reportScanComparison(ctx, a)
	case "patterns":
		return reportPatterns(ctx, a)
	case "cycle_metrics":
		return reportCycleMetrics(ctx, a)
	default:
		return &perrors.InputError{Op: "cycle", Err: fmt.Errorf("unknown report %q (want manual_fixes, scan_comparison, patterns, or cycle_metrics)", report)}
	}
}

// issueKey identifies an issue across two scans; matched by location and
// type rather than by description, since suggestion text can be reworded
// between scans without the underlying issue changing.
type issueKey struct {
	FilePath  string
	Line      int
	IssueType string
}

func keyOf(i domain.Issue) issueKey {
	line := 0
	if i.Line != nil {
		line = *i.Line
	}
	return issueKey{FilePath: i.FilePath, Line: line, IssueType: i.IssueType}
}

// wasManuallyFixed reports whether path has no ".bak" sibling, the
// fingerprint internal/apply leaves beside any file it has written. A
// missing backup means the file's current content was never touched by
// `pri fix`, so a since-resolved issue in it must have been fixed by hand.
func wasManuallyFixed(projectPath, relPath string) bool {
	full := filepath.Join(projectPath, relPath)
	_, err := os.Stat(full + ".bak")
	return os.IsNotExist(err)
}

func reportManualFixes(ctx context.Context, a *app.App) error {
	if cycleIssuesFile == "" || cycleProjectPath == "" {
		return &perrors.InputError{Op: "cycle manual_fixes", Err: fmt.Errorf("--issues-file and --project-path are required")}
	}
	current, err := readIssues(cycleIssuesFile)
	if err != nil {
		return err
	}

	var manual []domain.Issue
	for _, issue := range current {
		if wasManuallyFixed(cycleProjectPath, issue.FilePath) {
			manual = append(manual, issue)
		}
	}

	fmt.Printf("manual fixes detected: %d\n", len(manual))
	for _, issue := range manual {
		fmt.Printf("  %s in %s\n", issue.IssueType, issue.FilePath)
		_, _ = a.Store.Store(ctx, manualFixNamespace, fmt.Sprintf("%s: %s", issue.IssueType, issue.FilePath), map[string]any{
			"file_path":  issue.FilePath,
			"issue_type": issue.IssueType,
			"context":    string(issue.Context),
		})
	}
	return nil
}

func reportScanComparison(ctx context.Context, a *app.App) error {
	if cycleIssuesFile == "" || cyclePreviousIssuesFile == "" || cycleProjectPath == "" {
		return &perrors.InputError{Op: "cycle scan_comparison", Err: fmt.Errorf("--issues-file, --previous-issues-file, and --project-path are required")}
	}
	previous, err := readIssues(cyclePreviousIssuesFile)
	if err != nil {
		return err
	}
	current, err := readIssues(cycleIssuesFile)
	if err != nil {
		return err
	}

	currentKeys := make(map[issueKey]bool, len(current))
	for _, issue := range current {
		currentKeys[keyOf(issue)] = true
	}

	var resolved []domain.Issue
	for _, issue := range previous {
		if !currentKeys[keyOf(issue)] {
			resolved = append(resolved, issue)
		}
	}

	manual := 0
	breakdown := map[string]int{}
	for _, issue := range resolved {
		if wasManuallyFixed(cycleProjectPath, issue.FilePath) {
			manual++
			breakdown[issue.IssueType]++
			_, _ = a.Store.Store(ctx, manualFixNamespace, fmt.Sprintf("%s: %s", issue.IssueType, issue.FilePath), map[string]any{
				"file_path":  issue.FilePath,
				"issue_type": issue.IssueType,
				"context":    string(issue.Context),
			})
		}
	}
	automated := len(resolved) - manual

	fmt.Printf("previous issues: %d\n", len(previous))
	fmt.Printf("current issues:  %d\n", len(current))
	fmt.Printf("total resolved:  %d\n", len(resolved))
	fmt.Printf("manual fixes:    %d\n", manual)
	fmt.Printf("automated fixes: %d\n", automated)
	if len(resolved) > 0 {
		fmt.Printf("manual fix rate:    %.1f%%\n", 100*float64(manual)/float64(len(resolved)))
		fmt.Printf("automated fix rate: %.1f%%\n", 100*float64(automated)/float64(len(resolved)))
	}
	if len(breakdown) > 0 {
		fmt.Println("manual fix types:")
		for _, issueType := range sortedKeys(breakdown) {
			fmt.Printf("  %s: %d\n", issueType, breakdown[issueType])
		}
	}
	return nil
}

func reportPatterns(ctx context.Context, a *app.App) error {
	records, err := a.Store.Search(ctx, manualFixNamespace, "", 1000)
	if err != nil {
		return fmt.Errorf("cycle patterns: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no manual fixes recorded yet; run 'pri cycle manual_fixes' or 'pri cycle scan_comparison' first")
		return nil
	}

	byType := map[string]int{}
	byContext := map[string]int{}
	for _, rec := range records {
		if t, ok := rec.Metadata["issue_type"].(string); ok {
			byType[t]++
		}
		if c, ok := rec.Metadata["context"].(string); ok && c != "" {
			byContext[c]++
		}
	}

	fmt.Printf("total manual fixes: %d\n", len(records))
	fmt.Println("issue types manually fixed:")
	for _, t := range sortedKeys(byType) {
		fmt.Printf("  %s: %d\n", t, byType[t])
	}
	if len(byContext) > 0 {
		fmt.Println("file contexts:")
		for _, c := range sortedKeys(byContext) {
			fmt.Printf("  %s: %d\n", c, byContext[c])
		}
	}

	fmt.Println("automation opportunities (3+ manual fixes of the same type):")
	for _, t := range sortedKeys(byType) {
		if byType[t] >= 3 {
			fmt.Printf("  %s (%d occurrences): recurring manual fix, consider a fixgen generator\n", t, byType[t])
		}
	}
	return nil
}

func reportCycleMetrics(ctx context.Context, a *app.App) error {
	records, err := a.Store.Search(ctx, "analysis_engine", "", 1000)
	if err != nil {
		return fmt.Errorf("cycle_metrics: %w", err)
	}

	var cycles int
	var totalDurationMS, totalIssues float64
	for _, rec := range records {
		if _, ok := rec.Metadata["iteration"]; !ok {
			continue
		}
		cycles++
		if ms, ok := rec.Metadata["duration_ms"].(float64); ok {
			totalDurationMS += ms
		}
		if n, ok := rec.Metadata["issues_found"].(float64); ok {
			totalIssues += n
		}
	}

	if cycles == 0 {
		fmt.Println("no analyze iterations recorded yet")
		return nil
	}

	avgDuration := time.Duration(totalDurationMS/float64(cycles)) * time.Millisecond
	fmt.Printf("total cycles:        %d\n", cycles)
	fmt.Printf("average cycle time:  %s\n", avgDuration)
	fmt.Printf("average issues/cycle: %.1f\n", totalIssues/float64(cycles))
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// watchAndRerun runs rerun every time a file changes under root, debouncing
// bursts of events the way internal/core/mangle_watcher.go does for .mg
// files, generalized to every file rather than one suffix.
func watchAndRerun(root string, rerun func() error) error {
	if root == "" {
		return &perrors.InputError{Op: "cycle --watch", Err: fmt.Errorf("--project-path is required with --watch")}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cycle --watch: %w", err)
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, root); err != nil {
		return fmt.Errorf("cycle --watch: %w", err)
	}

	fmt.Printf("watching %s for changes (ctrl-c to stop)\n", root)
	debounce := time.NewTimer(24 * time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == 0 && event.Op&fsnotify.Create == 0 {
				continue
			}
			pending = true
			debounce.Reset(500 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			fmt.Println("\nchange detected, re-running report")
			if err := rerun(); err != nil {
				fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
			}
		}
	}
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if name != "." && (name == ".git" || name == "node_modules" || name == "vendor") {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
