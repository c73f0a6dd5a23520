// Package config loads and defaults the project configuration consumed by
// the CLI and every pipeline component: memory store, embedding engine,
// sandbox, safety scoring, and logging.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pri configuration, loaded from .pri/config.yaml with
// environment-variable overrides applied on top.
type Config struct {
	Memory    MemoryConfig    `yaml:"memory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Safety    SafetyConfig    `yaml:"safety"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
}

// MemoryConfig configures the persistent memory store (C1) and pruner (C2).
type MemoryConfig struct {
	DBPath               string  `yaml:"db_path"`
	RequireVectorIndex    bool    `yaml:"require_vector_index"`
	SearchThreshold       float64 `yaml:"search_threshold"`
	DefaultLimit          int     `yaml:"default_limit"`
	QualityThreshold      float64 `yaml:"quality_threshold"`
	ProtectedQualityFloor float64 `yaml:"protected_quality_threshold"`
	ConsolidationThreshold int    `yaml:"consolidation_threshold"`
	MaxAge                time.Duration `yaml:"max_age"`
}

// EmbeddingConfig configures the optional embedding engine.
type EmbeddingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider"` // "ollama" | "genai"
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
}

// SandboxConfig configures the isolated build/test/runtime validator (C10).
type SandboxConfig struct {
	TotalBudget         time.Duration `yaml:"total_budget"`
	PerPhaseTimeout     time.Duration `yaml:"per_phase_timeout"`
	RunTests            bool          `yaml:"run_tests"`
	StrictSubstringMode bool          `yaml:"strict_substring_mode"`
	SafeCommands        []string      `yaml:"safe_commands"`
}

// SafetyConfig configures safety scoring (C7) and interactive approval (C8).
type SafetyConfig struct {
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`
	DynamicApproval      bool    `yaml:"dynamic_approval"`
	ConservativeLevel    int     `yaml:"conservative_level"`
}

// LoggingConfig configures the ambient logging stack.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// EngineConfig configures the recursive analysis engine (C5).
type EngineConfig struct {
	BatchSize      int `yaml:"batch_size"`
	MaxFileBytes   int `yaml:"max_file_bytes"`
	BatchWorkers   int `yaml:"batch_workers"`
}

// DefaultConfig returns the built-in defaults, matching SPEC_FULL.md's
// stated defaults (batch_size=50, 1 MiB file ceiling, 0.9 auto-approve
// threshold, 30s sandbox budget, 10s per-phase timeout).
func DefaultConfig() *Config {
	return &Config{
		Memory: MemoryConfig{
			DBPath:                 ".pri/memory.db",
			SearchThreshold:        0.5,
			DefaultLimit:           10,
			QualityThreshold:       0.5,
			ProtectedQualityFloor:  0.35,
			ConsolidationThreshold: 5,
			MaxAge:                 90 * 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Enabled:        true,
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Sandbox: SandboxConfig{
			TotalBudget:     30 * time.Second,
			PerPhaseTimeout: 10 * time.Second,
			RunTests:        false,
			SafeCommands:    []string{"python", "pytest", "pip", "coverage", "cargo", "npm", "go"},
		},
		Safety: SafetyConfig{
			AutoApproveThreshold: 0.9,
			ConservativeLevel:    1,
		},
		Logging: LoggingConfig{Level: "info"},
		Engine: EngineConfig{
			BatchSize:    50,
			MaxFileBytes: 1 << 20,
			BatchWorkers: 1,
		},
	}
}

// Load reads .pri/config.yaml under workspaceRoot, merges it over the
// defaults, and applies environment-variable overrides. A missing config
// file is not an error — defaults apply.
func Load(workspaceRoot string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(workspaceRoot, ".pri", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRI_MEMORY_DB"); v != "" {
		cfg.Memory.DBPath = v
	}
	if v := os.Getenv("PRI_EMBEDDING_ENABLED"); v != "" {
		cfg.Embedding.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("PRI_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("PRI_GENAI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
	}
}
