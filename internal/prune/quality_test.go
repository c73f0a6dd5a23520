package prune

import (
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestQualityScore_BonusesAndPenalties(t *testing.T) {
	rec := domain.MemoryRecord{Metadata: map[string]any{
		"confidence":               0.4,
		"user_validated":           true,
		"cross_project_validation": true,
	}}
	// 0.4 + 0.3 + 0.2 = 0.9
	assert.InDelta(t, 0.9, qualityScore(rec), 1e-9)
}

func TestQualityScore_ZeroUsageCountPenalized(t *testing.T) {
	rec := domain.MemoryRecord{Metadata: map[string]any{
		"confidence":  0.5,
		"usage_count": 0,
	}}
	assert.InDelta(t, 0.2, qualityScore(rec), 1e-9)
}

func TestQualityScore_ClampedToUnitRange(t *testing.T) {
	rec := domain.MemoryRecord{Metadata: map[string]any{
		"confidence":               0.9,
		"user_validated":           true,
		"cross_project_validation": true,
	}}
	assert.Equal(t, 1.0, qualityScore(rec))
}

func TestPlanQualityBased_ProtectedNamespaceUsesLowerFloor(t *testing.T) {
	p := New(nil, DefaultConfig())
	records := []domain.MemoryRecord{
		{ID: 1, Metadata: map[string]any{"confidence": 0.4}},
	}
	// 0.4 is below the default 0.5 threshold but above the 0.35 protected floor.
	assert.NotEmpty(t, p.planQualityBased("patterns", records).remove)
	assert.Empty(t, p.planQualityBased("user_feedback", records).remove)
}
