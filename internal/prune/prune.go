// Package prune implements the pattern pruner (C2): age-based,
// quality-based, redundancy-based, and hybrid strategies for reclaiming
// space in the memory store, grounded on the teacher's
// MaintenanceCleanup/MaintenanceConfig archival sweep in
// internal/store/local_cold.go, generalized from a single age-only pass to
// the four strategies below.
package prune

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/perrors"
)

// Strategy selects which pruning policy a Prune call applies.
type Strategy string

const (
	StrategyAgeBased        Strategy = "age_based"
	StrategyQualityBased    Strategy = "quality_based"
	StrategyRedundancyBased Strategy = "redundancy_based"
	StrategyHybrid          Strategy = "hybrid"
)

// protectedNamespaces get a 2x age multiplier and a lower quality floor:
// they hold human-confirmed signal, not machine-inferred patterns.
var protectedNamespaces = map[string]bool{
	"user_feedback":           true,
	"false_positive_patterns": true,
	"validation_results":      true,
}

// Config tunes the pruning thresholds; DefaultConfig matches SPEC_FULL.md
// §4.2's stated defaults.
type Config struct {
	MaxAge                 time.Duration
	QualityThreshold       float64
	ProtectedQualityFloor  float64
	ConsolidationThreshold int
}

// DefaultConfig returns the spec's stated default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxAge:                 90 * 24 * time.Hour,
		QualityThreshold:       0.5,
		ProtectedQualityFloor:  0.35,
		ConsolidationThreshold: 5,
	}
}

// DB is the subset of *sql.DB the pruner needs; satisfied by
// internal/store.LocalStore.GetDB().
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Pruner runs pruning passes against the memory store's underlying
// database.
type Pruner struct {
	db  DB
	cfg Config
}

// New returns a Pruner reading cfg's thresholds.
func New(db DB, cfg Config) *Pruner {
	return &Pruner{db: db, cfg: cfg}
}

// Prune runs strategy against namespace. Every planned deletion or
// consolidation for the namespace commits (or rolls back) in a single SQL
// transaction, so a failure partway through never leaves the namespace in a
// half-pruned state.
func (p *Pruner) Prune(ctx context.Context, namespace string, strategy Strategy) (domain.PruningResult, error) {
	timer := logging.StartTimer(logging.CategoryPrune, "Prune")
	defer timer.Stop()

	_, before, pl, err := p.buildPlan(ctx, namespace, strategy)
	if err != nil {
		return domain.PruningResult{}, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PruningResult{}, perrors.StorageError{Op: "prune", Err: err}
	}
	if err := applyPlan(ctx, tx, pl); err != nil {
		tx.Rollback()
		return domain.PruningResult{}, perrors.StorageError{Op: "prune", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.PruningResult{}, perrors.StorageError{Op: "prune", Err: err}
	}

	result := planResult(namespace, before, pl)
	logging.Prune("namespace=%s strategy=%s before=%d after=%d removed=%d consolidated=%d",
		namespace, strategy, before, result.After, result.Removed, result.Consolidated)
	return result, nil
}

// Plan computes what Prune would do against namespace without committing
// any change, for the CLI's `--dry-run` flag.
func (p *Pruner) Plan(ctx context.Context, namespace string, strategy Strategy) (domain.PruningResult, error) {
	_, before, pl, err := p.buildPlan(ctx, namespace, strategy)
	if err != nil {
		return domain.PruningResult{}, err
	}
	return planResult(namespace, before, pl), nil
}

func (p *Pruner) buildPlan(ctx context.Context, namespace string, strategy Strategy) ([]domain.MemoryRecord, int, plan, error) {
	records, err := p.loadRecords(ctx, namespace)
	if err != nil {
		return nil, 0, plan{}, err
	}
	before := len(records)

	var pl plan
	switch strategy {
	case StrategyAgeBased:
		pl = p.planAgeBased(namespace, records)
	case StrategyQualityBased:
		pl = p.planQualityBased(namespace, records)
	case StrategyRedundancyBased:
		pl = p.planRedundancyBased(namespace, records)
	case StrategyHybrid:
		pl = mergePlans(
			p.planAgeBased(namespace, records),
			p.planQualityBased(namespace, records),
			p.planRedundancyBased(namespace, records),
		)
	default:
		return nil, 0, plan{}, perrors.StorageError{Op: "prune", Err: fmt.Errorf("unknown strategy %q", strategy)}
	}
	return records, before, pl, nil
}

func planResult(namespace string, before int, pl plan) domain.PruningResult {
	removed := len(pl.remove)
	consolidated := len(pl.consolidate)
	after := before - removed - consolidatedMemberCount(pl) + consolidated

	return domain.PruningResult{
		Before:       before,
		After:        after,
		Removed:      removed,
		Consolidated: consolidated,
		PerNamespaceBreakdown: map[string]domain.NamespacePruneStats{
			namespace: {
				Before:       before,
				After:        after,
				Removed:      removed,
				Consolidated: consolidated,
			},
		},
	}
}

func (p *Pruner) loadRecords(ctx context.Context, namespace string) ([]domain.MemoryRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT id, namespace, content, metadata, timestamp, vector_id FROM memories WHERE namespace = ?",
		namespace,
	)
	if err != nil {
		return nil, perrors.StorageError{Op: "prune_load", Err: err}
	}
	defer rows.Close()
	return scanRecords(rows)
}

func isProtected(namespace string) bool {
	return protectedNamespaces[namespace]
}
