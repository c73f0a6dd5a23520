package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAuditLogger_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := OpenAuditLog(dir, "emergency_application_blocks.log")
	if err != nil {
		t.Fatalf("OpenAuditLog failed: %v", err)
	}
	defer logger.Close()

	if err := logger.Log(AuditEvent{Action: "block", FilePath: "a.py", Reason: "dangerous pattern"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := logger.Log(AuditEvent{Action: "block", FilePath: "b.py", Reason: "sandbox unsafe"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "emergency_application_blocks.log"))
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if event.FilePath != "a.py" || event.Reason != "dangerous pattern" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestTimer_Stop(t *testing.T) {
	timer := StartTimer(CategoryStore, "test-op")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Errorf("expected non-negative elapsed duration, got %v", elapsed)
	}
}
