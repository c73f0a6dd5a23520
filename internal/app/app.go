// Package app is the composition root: it wires config, logging, the
// memory store, the analyzer registry, and the full analyze/fix/prune
// pipeline into one value the CLI commands share, as an explicit struct
// rather than package-level globals, since the CLI's commands need to
// share the same wired pipeline across separate cobra command files.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer/binary"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer/cfamily"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer/pyfamily"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/apply"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/approval"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/config"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/embedding"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/emergency"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/engine"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/prune"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/safety"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/sandbox"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/store"
)

// App holds every wired component a CLI command might need. App has no
// embedder field: when the config enables one, it is attached to Store.
type App struct {
	Workspace string
	Config    *config.Config

	Store    *store.LocalStore
	Registry *analyzer.Registry
	Pruner   *prune.Pruner
	Engine   *engine.Engine
	Scorer   *safety.Scorer
	Approval *approval.Gate
	Applier  *apply.Applier

	emergencyAudit *logging.AuditLogger
	sandboxAudit   *logging.AuditLogger
}

// New resolves workspace, loads config, initializes file logging, opens
// the memory store, registers every language analyzer, and wires C2-C11
// into ready-to-use values. Close must be called when the App is no longer
// needed.
func New(workspace string, approvalIn io.Reader, approvalOut io.Writer) (*App, error) {
	ws, err := resolveWorkspace(workspace)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(ws)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logging.Initialize(ws); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
	}
	logging.SetDebugMode(cfg.Logging.DebugMode)

	dbPath := cfg.Memory.DBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(ws, dbPath)
	}
	st, err := store.NewLocalStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	if cfg.Embedding.Enabled {
		embedder, err := newEmbedder(cfg.Embedding)
		if err != nil {
			logging.StoreWarn("embedding engine unavailable, continuing without it: %v", err)
		} else {
			st.SetEmbeddingEngine(embedder)
		}
	}

	registry := analyzer.NewRegistry()
	registry.Register(pyfamily.New())
	registry.Register(cfamily.New())
	registry.Register(binary.New())

	pruner := prune.New(st.GetDB(), prune.Config{
		MaxAge:                 cfg.Memory.MaxAge,
		QualityThreshold:       cfg.Memory.QualityThreshold,
		ProtectedQualityFloor:  cfg.Memory.ProtectedQualityFloor,
		ConsolidationThreshold: cfg.Memory.ConsolidationThreshold,
	})

	eng := engine.New(engine.Config{
		BatchSize:      cfg.Engine.BatchSize,
		MaxFileBytes:   int64(cfg.Engine.MaxFileBytes),
		MaxConcurrency: cfg.Engine.BatchWorkers,
		Exclude:        engine.DefaultConfig().Exclude,
		Namespace:      "analysis_engine",
	}, registry, st, nil)

	scorer, err := safety.NewScorer()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load safety scorer: %w", err)
	}

	gate := approval.New(approval.Config{
		Mode:            approval.ModeInteractive,
		AutoThreshold:   cfg.Safety.AutoApproveThreshold,
		DynamicApproval: cfg.Safety.DynamicApproval,
	}, scorer, approvalIn, approvalOut)

	emergencyAudit, err := logging.OpenAuditLog(ws, "emergency_application_blocks.log")
	if err != nil {
		return nil, fmt.Errorf("open emergency audit log: %w", err)
	}
	sandboxAudit, err := logging.OpenAuditLog(ws, "sandbox_application_blocks.log")
	if err != nil {
		return nil, fmt.Errorf("open sandbox audit log: %w", err)
	}

	emergencyValidator := emergency.New(emergencyAudit)
	sandboxValidator := sandbox.New(sandbox.Config{
		TotalBudget:         cfg.Sandbox.TotalBudget,
		PerPhaseTimeout:     cfg.Sandbox.PerPhaseTimeout,
		RunTests:            cfg.Sandbox.RunTests,
		StrictSubstringMode: cfg.Sandbox.StrictSubstringMode,
		SafeCommands:        cfg.Sandbox.SafeCommands,
	})
	applier := apply.New(emergencyValidator, &auditingSandbox{validator: sandboxValidator, audit: sandboxAudit})

	return &App{
		Workspace:      ws,
		Config:         cfg,
		Store:          st,
		Registry:       registry,
		Pruner:         pruner,
		Engine:         eng,
		Scorer:         scorer,
		Approval:       gate,
		Applier:        applier,
		emergencyAudit: emergencyAudit,
		sandboxAudit:   sandboxAudit,
	}, nil
}

// Close releases every resource New opened.
func (a *App) Close() error {
	var firstErr error
	if err := a.Scorer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.emergencyAudit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.sandboxAudit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	logging.CloseAll()
	return firstErr
}

func resolveWorkspace(workspace string) (string, error) {
	if workspace == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("resolve workspace %s: %w", workspace, err)
	}
	return abs, nil
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.EmbeddingEngine, error) {
	inner, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Provider,
		OllamaEndpoint: cfg.OllamaEndpoint,
		OllamaModel:    cfg.OllamaModel,
		GenAIAPIKey:    cfg.GenAIAPIKey,
		GenAIModel:     cfg.GenAIModel,
	})
	if err != nil {
		return nil, err
	}
	return newResilientEmbedder(inner), nil
}
