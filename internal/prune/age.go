package prune

import (
	"time"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// planAgeBased ages a record out once now-created_at exceeds max_age,
// extended for high-confidence records and doubled for protected
// namespaces, per SPEC_FULL.md §4.2.
func (p *Pruner) planAgeBased(namespace string, records []domain.MemoryRecord) plan {
	var out plan
	protected := isProtected(namespace)
	now := time.Now()

	for _, rec := range records {
		maxAge := p.cfg.MaxAge

		confidence := metaFloat(rec.Metadata, "confidence", 0)
		switch {
		case confidence > 0.8:
			maxAge += 180 * 24 * time.Hour
		case confidence > 0.6:
			maxAge += 90 * 24 * time.Hour
		}

		if protected {
			maxAge *= 2
		}

		if now.Sub(rec.CreatedAt) > maxAge {
			out.remove = append(out.remove, rec.ID)
		}
	}

	return out
}
