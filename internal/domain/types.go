// Package domain holds the core data types shared across the analysis and
// fix pipeline: Issue, FixProposal, MemoryRecord, and PatternEffectiveness.
package domain

import "time"

// Severity is the ordered severity scale used by issues and proposals.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityCosmetic Severity = "cosmetic"
	SeverityInfo     Severity = "info"
)

// Context tags the kind of file or code region an issue/proposal lives in.
type Context string

const (
	ContextProduction Context = "production"
	ContextTest       Context = "test"
	ContextConfig     Context = "config"
	ContextUnknown    Context = "unknown"
)

// Issue is a detected problem. Created by analyzers, consumed by the
// proposal generator, and never mutated after creation.
type Issue struct {
	FilePath           string   `json:"file_path"`
	Line               *int     `json:"line"` // 1-based, optional
	IssueType          string   `json:"type"`
	Severity           Severity `json:"severity"`
	Description        string   `json:"description"`
	Suggestion         string   `json:"suggestion,omitempty"`
	Context            Context  `json:"context,omitempty"`
	EducationalContent string   `json:"educational_content,omitempty"`
	LearnedFromMemory  bool     `json:"learned_from_memory"`
}

// FixProposal is a candidate edit produced from an Issue. OriginalCode must
// textually appear on LineNumber of the current file at apply time;
// otherwise the applier fails the proposal.
type FixProposal struct {
	FilePath               string
	IssueType              string
	Severity               Severity
	Description            string
	OriginalCode           string
	ProposedFix            string
	LineNumber             int
	EducationalExplanation string
	// SafetyScore is an optional pre-existing score on the 0-100 scale,
	// distinct from the 0.0-1.0 score internal/safety computes. Nil means
	// "no pre-existing score" (the cap rule in safety scoring does not
	// apply).
	SafetyScore    *int
	Context        Context
	AutoApprovable bool
}

// MemoryRecord is a persisted unit of learning. Mutated only by the pruner
// (consolidation/removal); never mutated by readers.
type MemoryRecord struct {
	ID        int64
	Namespace string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
	VectorID  *int64
}

// PatternEffectiveness is a derived, transient summary computed per pruning
// run for one pattern type within a namespace.
type PatternEffectiveness struct {
	PatternType        string
	Count              int
	AvgConfidence       float64
	FalsePositiveRate   float64
	UserValidationRate  float64
	RecentActivityRate  float64
	EffectivenessScore  float64
	IsOverRepresented    bool
}

// FileModification is one unit of an external integration-map plan; it
// flows through C9-C11 the same way a single FixProposal does.
type FileModification struct {
	FilePath     string
	OriginalCode string
	ProposedFix  string
	LineNumber   int
}

// IntegrationStep groups a set of FileModifications that must be applied (or
// rolled back) together.
type IntegrationStep struct {
	Name          string
	Modifications []FileModification
}

// HealthStatus reports the memory store's health.
type HealthStatus struct {
	State       string // "ok" | "degraded" | "down"
	MemoryCount int64
	VectorCount int64
}

// PruningResult summarizes the outcome of a single pruning run.
type PruningResult struct {
	Before               int
	After                 int
	Removed               int
	Consolidated          int
	SpaceSavedMB          float64
	TimeS                 float64
	PerNamespaceBreakdown map[string]NamespacePruneStats
}

// NamespacePruneStats is the per-namespace contribution to a PruningResult.
type NamespacePruneStats struct {
	Before       int
	After        int
	Removed      int
	Consolidated int
}

// SandboxResult is the outcome of the three-phase sandbox validation.
type SandboxResult struct {
	BuildPassed        bool
	TestsPassed        bool
	RuntimeSafe        bool
	Issues             []string
	SecurityViolations []string
	ExecutionTime       time.Duration
}
