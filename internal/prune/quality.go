package prune

import (
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// qualityScore is the base confidence plus type-specific bonuses/penalties,
// clamped to [0,1], per SPEC_FULL.md §4.2.
func qualityScore(rec domain.MemoryRecord) float64 {
	score := metaFloat(rec.Metadata, "confidence", 0.5)

	if metaBool(rec.Metadata, "user_validated") {
		score += 0.3
	}
	if metaBool(rec.Metadata, "cross_project_validation") {
		score += 0.2
	}
	if metaFloat(rec.Metadata, "usage_count", -1) == 0 {
		score -= 0.3
	}

	return clamp(score, 0.0, 1.0)
}

// planQualityBased removes records scoring below the configured threshold,
// using the lower protected-namespace floor where applicable.
func (p *Pruner) planQualityBased(namespace string, records []domain.MemoryRecord) plan {
	var out plan

	threshold := p.cfg.QualityThreshold
	if isProtected(namespace) {
		threshold = p.cfg.ProtectedQualityFloor
	}

	for _, rec := range records {
		if qualityScore(rec) < threshold {
			out.remove = append(out.remove, rec.ID)
		}
	}

	return out
}
