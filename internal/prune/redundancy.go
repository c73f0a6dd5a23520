package prune

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// similarityThreshold is the enhanced-similarity cutoff above which two
// records are considered part of the same cluster.
const similarityThreshold = 0.5

// confidenceGap is how far a sub-threshold cluster's members must spread in
// quality before the lowest-quality ones are removed rather than left
// alone; below this gap the cluster is treated as uniformly valuable and
// untouched. Not spelled out numerically in the source material; chosen to
// match the other thresholds' granularity (quality_threshold's 0.5/0.35
// split).
const confidenceGap = 0.15

// patternStats summarizes one pattern_type's footprint within a namespace,
// used to decide over-representation and aggressive pruning.
type patternStats struct {
	patternType  string
	count        int
	effectiveness float64 // mean of per-record "effectiveness" metadata
}

func (p *Pruner) planRedundancyBased(namespace string, records []domain.MemoryRecord) plan {
	var out plan
	if len(records) == 0 {
		return out
	}

	stats := collectPatternStats(records)
	overRepresented := make(map[string]bool)
	for t, s := range stats {
		fraction := float64(s.count) / float64(len(records))
		if fraction > 0.2 && s.count >= 10 && s.effectiveness >= 0.7 {
			overRepresented[t] = true
		}
	}

	clusters := clusterBySimilarity(records, overRepresented)

	for _, cluster := range clusters {
		switch {
		case len(cluster) >= p.cfg.ConsolidationThreshold:
			out.consolidate = append(out.consolidate, buildConsolidation(namespace, cluster))
		case len(cluster) >= 2:
			out.remove = append(out.remove, planSubThresholdRemoval(cluster)...)
		}
	}

	for t := range overRepresented {
		out.remove = append(out.remove, aggressivePrune(recordsOfType(records, t), stats[t])...)
	}

	return out
}

func collectPatternStats(records []domain.MemoryRecord) map[string]patternStats {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range records {
		t := metaString(rec.Metadata, "pattern_type")
		if t == "" {
			continue
		}
		counts[t]++
		sums[t] += metaFloat(rec.Metadata, "effectiveness", 0.5)
	}
	out := make(map[string]patternStats, len(counts))
	for t, c := range counts {
		out[t] = patternStats{patternType: t, count: c, effectiveness: sums[t] / float64(c)}
	}
	return out
}

func recordsOfType(records []domain.MemoryRecord, patternType string) []domain.MemoryRecord {
	var out []domain.MemoryRecord
	for _, rec := range records {
		if metaString(rec.Metadata, "pattern_type") == patternType {
			out = append(out, rec)
		}
	}
	return out
}

// clusterBySimilarity greedily groups records whose enhanced similarity
// exceeds similarityThreshold. Not a full hierarchical clustering; a single
// pass is enough for the consolidation/removal decisions that follow.
func clusterBySimilarity(records []domain.MemoryRecord, overRepresented map[string]bool) [][]domain.MemoryRecord {
	assigned := make([]bool, len(records))
	var clusters [][]domain.MemoryRecord

	for i := range records {
		if assigned[i] {
			continue
		}
		cluster := []domain.MemoryRecord{records[i]}
		assigned[i] = true
		for j := i + 1; j < len(records); j++ {
			if assigned[j] {
				continue
			}
			if enhancedSimilarity(records[i], records[j], overRepresented) >= similarityThreshold {
				cluster = append(cluster, records[j])
				assigned[j] = true
			}
		}
		clusters = append(clusters, cluster)
	}

	return clusters
}

func enhancedSimilarity(a, b domain.MemoryRecord, overRepresented map[string]bool) float64 {
	sim := textSimilarity(a.Content, b.Content)

	typeA := metaString(a.Metadata, "pattern_type")
	typeB := metaString(b.Metadata, "pattern_type")
	if typeA != typeB {
		sim *= 0.7
	} else if typeA != "" && overRepresented[typeA] {
		sim *= 1.2
	}

	return sim
}

// textSimilarity is a Jaccard index over lowercased word sets, matching the
// teacher's preference for cheap substring/token heuristics over an
// embedding call in hot pruning paths (embedding similarity is reserved for
// search, see internal/store/vector.go).
func textSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func buildConsolidation(namespace string, cluster []domain.MemoryRecord) consolidation {
	ids := make([]int64, len(cluster))
	for i, rec := range cluster {
		ids[i] = rec.ID
	}
	sample := cluster[0].Content
	if len(sample) > 120 {
		sample = sample[:120] + "..."
	}
	return consolidation{
		memberIDs: ids,
		namespace: namespace,
		summary:   fmt.Sprintf("Consolidated pattern from %d similar memories: %s", len(cluster), sample),
		metadata:  map[string]any{"consolidated_count": len(cluster)},
	}
}

// planSubThresholdRemoval removes a cluster's lowest-quality members only
// when quality spreads widely enough (confidenceGap) to justify picking a
// loser; a tight cluster of similarly-valuable records is left alone.
func planSubThresholdRemoval(cluster []domain.MemoryRecord) []int64 {
	scored := make([]struct {
		id      int64
		quality float64
	}, len(cluster))
	for i, rec := range cluster {
		scored[i].id = rec.ID
		scored[i].quality = qualityScore(rec)
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].quality < scored[j].quality })

	spread := scored[len(scored)-1].quality - scored[0].quality
	if spread < confidenceGap {
		return nil
	}

	var remove []int64
	for _, s := range scored {
		if s.quality < scored[len(scored)-1].quality-confidenceGap {
			remove = append(remove, s.id)
		}
	}
	return remove
}

// aggressivePrune keeps only the top-k highest-quality records of an
// over-represented pattern type, returning the rest for removal. k is
// max(3, N/8) for very effective, highly duplicated patterns (effectiveness
// >= 0.9 and the type already dominates the namespace) and scales more
// gently (max(3, N/4)) otherwise.
func aggressivePrune(recs []domain.MemoryRecord, stats patternStats) []int64 {
	n := len(recs)
	if n == 0 {
		return nil
	}

	k := n / 4
	if stats.effectiveness >= 0.9 && stats.count >= 10 {
		k = n / 8
	}
	if k < 3 {
		k = 3
	}
	if k >= n {
		return nil
	}

	sort.Slice(recs, func(i, j int) bool { return qualityScore(recs[i]) > qualityScore(recs[j]) })

	var remove []int64
	for _, rec := range recs[k:] {
		remove = append(remove, rec.ID)
	}
	return remove
}
