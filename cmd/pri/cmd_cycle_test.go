package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/app"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

func TestKeyOf_IgnoresNilLineAsZero(t *testing.T) {
	issue := domain.Issue{FilePath: "a.py", IssueType: "debugging"}
	if got := keyOf(issue); got.Line != 0 {
		t.Fatalf("expected zero line for a nil Line pointer, got %d", got.Line)
	}
}

func TestWasManuallyFixed_TrueWithoutBackupSibling(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !wasManuallyFixed(dir, "a.py") {
		t.Fatal("expected manual fix when no .bak sibling exists")
	}
}

func TestWasManuallyFixed_FalseWithBackupSibling(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.py.bak"), []byte("x = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if wasManuallyFixed(dir, "a.py") {
		t.Fatal("expected automated fix when a .bak sibling exists")
	}
}

func TestSortedKeys_ReturnsAlphabeticalOrder(t *testing.T) {
	got := sortedKeys(map[string]int{"zebra": 1, "alpha": 2, "mid": 3})
	want := []string{"alpha", "mid", "zebra"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("sortedKeys()[%d] = %s, want %s", i, got[i], k)
		}
	}
}

func TestReportScanComparison_CountsResolvedAndSplitsManualFromAutomated(t *testing.T) {
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "project")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// a.py was resolved with no .bak: manual. b.py has a .bak: automated.
	if err := os.WriteFile(filepath.Join(projectDir, "a.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "b.py"), []byte("y = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "b.py.bak"), []byte("y = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	line := 1
	previous := []domain.Issue{
		{FilePath: "a.py", Line: &line, IssueType: "debugging"},
		{FilePath: "b.py", Line: &line, IssueType: "maintenance"},
		{FilePath: "c.py", Line: &line, IssueType: "security"},
	}
	current := []domain.Issue{
		{FilePath: "c.py", Line: &line, IssueType: "security"},
	}

	prevPath := filepath.Join(dir, "previous.json")
	currPath := filepath.Join(dir, "current.json")
	writeJSON(t, prevPath, previous)
	writeJSON(t, currPath, current)

	workspace = filepath.Join(dir, "workspace")
	cycleIssuesFile = currPath
	cyclePreviousIssuesFile = prevPath
	cycleProjectPath = projectDir
	defer func() {
		workspace = ""
		cycleIssuesFile = ""
		cyclePreviousIssuesFile = ""
		cycleProjectPath = ""
	}()

	a, err := app.New(workspace, nil, nil)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	defer a.Close()

	output := captureOutput(t, func() {
		if err := reportScanComparison(context.Background(), a); err != nil {
			t.Fatalf("reportScanComparison returned error: %v", err)
		}
	})

	if !strings.Contains(output, "total resolved:  2") {
		t.Fatalf("expected 2 resolved issues, got: %s", output)
	}
	if !strings.Contains(output, "manual fixes:    1") {
		t.Fatalf("expected 1 manual fix, got: %s", output)
	}
	if !strings.Contains(output, "automated fixes: 1") {
		t.Fatalf("expected 1 automated fix, got: %s", output)
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
