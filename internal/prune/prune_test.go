package prune

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *store.LocalStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memories.db")
	s, err := store.NewLocalStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPrune_AgeBasedRemovesViaTransaction(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	id, err := s.Store(ctx, "patterns", "stale pattern", map[string]any{})
	require.NoError(t, err)
	_, err = s.GetDB().ExecContext(ctx, "UPDATE memories SET timestamp = 0 WHERE id = ?", id)
	require.NoError(t, err)

	p := New(s.GetDB(), DefaultConfig())
	result, err := p.Prune(ctx, "patterns", StrategyAgeBased)
	require.NoError(t, err)
	require.Equal(t, 1, result.Removed)

	count, err := s.Count(ctx, "patterns")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestPrune_UnknownStrategyErrors(t *testing.T) {
	s := newTestDB(t)
	p := New(s.GetDB(), DefaultConfig())
	_, err := p.Prune(context.Background(), "patterns", Strategy("bogus"))
	require.Error(t, err)
}

func TestPrune_HybridMergesAllStrategies(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	id, err := s.Store(ctx, "patterns", "low quality pattern", map[string]any{"confidence": 0.1})
	require.NoError(t, err)
	_, err = s.GetDB().ExecContext(ctx, "UPDATE memories SET timestamp = 0 WHERE id = ?", id)
	require.NoError(t, err)

	p := New(s.GetDB(), DefaultConfig())
	result, err := p.Prune(ctx, "patterns", StrategyHybrid)
	require.NoError(t, err)
	require.Equal(t, 1, result.Removed)
}

func TestPlan_ComputesResultWithoutDeletingAnything(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	id, err := s.Store(ctx, "patterns", "stale pattern", map[string]any{})
	require.NoError(t, err)
	_, err = s.GetDB().ExecContext(ctx, "UPDATE memories SET timestamp = 0 WHERE id = ?", id)
	require.NoError(t, err)

	p := New(s.GetDB(), DefaultConfig())
	result, err := p.Plan(ctx, "patterns", StrategyAgeBased)
	require.NoError(t, err)
	require.Equal(t, 1, result.Removed)

	count, err := s.Count(ctx, "patterns")
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "Plan must not delete anything")
}
