package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

func TestNormalizeFeedbackLabel(t *testing.T) {
	cases := map[string]string{
		"useful":         "useful",
		"u":              "useful",
		"false-positive": "false_positive",
		"f":              "false_positive",
		"wrong-fix":      "wrong_fix",
		"w":              "wrong_fix",
		"nonsense":       "",
		"":               "",
	}
	for in, want := range cases {
		if got := normalizeFeedbackLabel(in); got != want {
			t.Errorf("normalizeFeedbackLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunTrain_BatchFileRecordsFeedback(t *testing.T) {
	dir := t.TempDir()
	workspace = dir
	defer func() { workspace = "" }()

	line := 10
	issues := []domain.Issue{
		{FilePath: "a.py", Line: &line, IssueType: "debugging", Severity: domain.SeverityLow},
		{FilePath: "b.py", Line: &line, IssueType: "maintenance", Severity: domain.SeverityMedium},
	}
	issuesPath := filepath.Join(dir, "issues.json")
	data, err := json.Marshal(issues)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(issuesPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	batchPath := filepath.Join(dir, "feedback.json")
	if err := os.WriteFile(batchPath, []byte(`{"0": "useful"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	trainIssuesFile = issuesPath
	trainBatchFile = batchPath
	trainInteractive = false
	defer func() { trainIssuesFile = ""; trainBatchFile = ""; trainInteractive = false }()

	output := captureOutput(t, func() {
		if err := runTrain(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runTrain returned error: %v", err)
		}
	})

	if !strings.Contains(output, "recorded 1 of 2 feedback entries") {
		t.Fatalf("expected exactly one recorded entry, got: %s", output)
	}
}

func TestRunTrain_RejectsBothModesUnset(t *testing.T) {
	workspace = t.TempDir()
	defer func() { workspace = "" }()

	trainIssuesFile = "issues.json"
	trainInteractive = false
	trainBatchFile = ""
	defer func() { trainIssuesFile = "" }()

	err := runTrain(&cobra.Command{}, nil)
	if err == nil {
		t.Fatal("expected an error when neither --interactive nor --batch-file is set")
	}
}
