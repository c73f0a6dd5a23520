package prune

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// consolidation groups a cluster of record ids into one synthetic summary
// record.
type consolidation struct {
	memberIDs []int64
	namespace string
	summary   string
	metadata  map[string]any
}

// plan is the set of mutations one Prune call will apply, computed
// entirely in memory before the transaction opens.
type plan struct {
	remove      []int64
	consolidate []consolidation
}

func mergePlans(plans ...plan) plan {
	merged := plan{}
	seenRemove := make(map[int64]bool)
	seenConsolidated := make(map[int64]bool)
	for _, p := range plans {
		for _, id := range p.remove {
			if !seenRemove[id] && !seenConsolidated[id] {
				seenRemove[id] = true
				merged.remove = append(merged.remove, id)
			}
		}
		for _, c := range p.consolidate {
			allNew := true
			for _, id := range c.memberIDs {
				if seenConsolidated[id] {
					allNew = false
					break
				}
			}
			if !allNew {
				continue
			}
			for _, id := range c.memberIDs {
				seenConsolidated[id] = true
			}
			merged.consolidate = append(merged.consolidate, c)
		}
	}
	return merged
}

func consolidatedMemberCount(p plan) int {
	n := 0
	for _, c := range p.consolidate {
		n += len(c.memberIDs)
	}
	return n
}

func applyPlan(ctx context.Context, tx *sql.Tx, p plan) error {
	for _, id := range p.remove {
		if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete memory %d: %w", id, err)
		}
	}

	for _, c := range p.consolidate {
		metaCopy := map[string]any{}
		for k, v := range c.metadata {
			metaCopy[k] = v
		}
		metaCopy["consolidated_from"] = c.memberIDs
		metaJSON, err := json.Marshal(metaCopy)
		if err != nil {
			return fmt.Errorf("marshal consolidation metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO memories (namespace, content, metadata, timestamp) VALUES (?, ?, ?, strftime('%s','now'))",
			c.namespace, c.summary, string(metaJSON),
		); err != nil {
			return fmt.Errorf("insert consolidated record: %w", err)
		}
		for _, id := range c.memberIDs {
			if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id); err != nil {
				return fmt.Errorf("delete consolidated member %d: %w", id, err)
			}
		}
	}

	return nil
}

func scanRecords(rows *sql.Rows) ([]domain.MemoryRecord, error) {
	var out []domain.MemoryRecord
	for rows.Next() {
		var rec domain.MemoryRecord
		var metaJSON string
		var ts float64
		var vecID *int64
		if err := rows.Scan(&rec.ID, &rec.Namespace, &rec.Content, &metaJSON, &ts, &vecID); err != nil {
			return nil, err
		}
		rec.Metadata = make(map[string]any)
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &rec.Metadata)
		}
		rec.CreatedAt = time.Unix(int64(ts), 0).UTC()
		rec.VectorID = vecID
		out = append(out, rec)
	}
	return out, rows.Err()
}
