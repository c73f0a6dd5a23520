package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Engine.BatchSize != 50 {
		t.Errorf("expected default batch size 50, got %d", cfg.Engine.BatchSize)
	}
	if cfg.Engine.MaxFileBytes != 1<<20 {
		t.Errorf("expected default max file bytes 1 MiB, got %d", cfg.Engine.MaxFileBytes)
	}
	if cfg.Safety.AutoApproveThreshold != 0.9 {
		t.Errorf("expected default auto-approve threshold 0.9, got %v", cfg.Safety.AutoApproveThreshold)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.BatchSize != 50 {
		t.Errorf("expected default batch size, got %d", cfg.Engine.BatchSize)
	}
}

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".pri"), 0o755); err != nil {
		t.Fatalf("failed to create .pri dir: %v", err)
	}
	content := "engine:\n  batch_size: 25\nsafety:\n  auto_approve_threshold: 0.95\n"
	if err := os.WriteFile(filepath.Join(dir, ".pri", "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.BatchSize != 25 {
		t.Errorf("expected batch size 25, got %d", cfg.Engine.BatchSize)
	}
	if cfg.Safety.AutoApproveThreshold != 0.95 {
		t.Errorf("expected auto-approve threshold 0.95, got %v", cfg.Safety.AutoApproveThreshold)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRI_MEMORY_DB", "/tmp/custom.db")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Memory.DBPath != "/tmp/custom.db" {
		t.Errorf("expected env override to take effect, got %s", cfg.Memory.DBPath)
	}
}
