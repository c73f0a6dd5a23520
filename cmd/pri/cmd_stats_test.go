package main

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRunStats_ReportsEmptyStoreHealth(t *testing.T) {
	workspace = t.TempDir()
	statsDetailed = false
	defer func() { workspace = "" }()

	output := captureOutput(t, func() {
		if err := runStats(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runStats returned error: %v", err)
		}
	})

	if !strings.Contains(output, "store: ok") {
		t.Fatalf("expected healthy store report, got: %s", output)
	}
	if !strings.Contains(output, "memories: 0") {
		t.Fatalf("expected zero memories on a fresh workspace, got: %s", output)
	}
}

func TestRunStats_DetailedListsNamespaces(t *testing.T) {
	workspace = t.TempDir()
	statsDetailed = true
	defer func() { workspace = ""; statsDetailed = false }()

	output := captureOutput(t, func() {
		if err := runStats(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runStats returned error: %v", err)
		}
	})

	if !strings.Contains(output, "namespaces: 0") {
		t.Fatalf("expected no namespaces on a fresh workspace, got: %s", output)
	}
}
