package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/embedding"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/perrors"
)

// TaskTypeAwareEngine extends embedding.EmbeddingEngine with task-type-aware
// embedding, used to bias the GenAI backend toward retrieval vs. similarity.
type TaskTypeAwareEngine interface {
	embedding.EmbeddingEngine
	EmbedWithTask(ctx context.Context, text string, taskType string) ([]float32, error)
}

// Search finds memory records in namespace relevant to query. When an
// embedding engine is attached, it embeds the query and ranks candidates by
// cosine similarity (via the sqlite-vec ANN index when available, brute
// force otherwise). Without an embedding engine it falls back to a
// wildcard-sanitized substring match over content.
func (s *LocalStore) Search(ctx context.Context, namespace, query string, limit int) ([]domain.MemoryRecord, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Search")
	defer timer.Stop()

	if limit <= 0 {
		limit = 10
	}

	if s.embeddingEngine == nil {
		return s.searchKeyword(namespace, query, limit)
	}

	var queryVec []float32
	var err error
	taskType := embedding.GetOptimalTaskType(query, nil, true)
	if taskAware, ok := s.embeddingEngine.(TaskTypeAwareEngine); ok && taskType != "" {
		queryVec, err = taskAware.EmbedWithTask(ctx, query, taskType)
	} else {
		queryVec, err = s.embeddingEngine.Embed(ctx, query)
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("query embedding failed, falling back to keyword search: %v", err)
		return s.searchKeyword(namespace, query, limit)
	}

	s.mu.RLock()
	vecExt := s.vectorExt
	s.mu.RUnlock()

	if vecExt {
		records, err := s.searchVec(namespace, queryVec, limit)
		if err == nil {
			return records, nil
		}
		logging.Get(logging.CategoryStore).Warn("sqlite-vec search failed, falling back to brute force: %v", err)
	}
	return s.searchBruteForce(namespace, queryVec, limit)
}

// searchKeyword is the substring fallback. SQLite LIKE treats % and _ as
// wildcards; both are escaped so a query containing them matches literally
// rather than expanding into an unintended pattern.
func (s *LocalStore) searchKeyword(namespace, query string, limit int) ([]domain.MemoryRecord, error) {
	sanitized := sanitizeLikePattern(query)
	s.mu.RLock()
	rows, err := s.db.Query(
		"SELECT id, namespace, content, metadata, timestamp, vector_id FROM memories WHERE namespace = ? AND content LIKE ? ESCAPE '\\' ORDER BY timestamp DESC LIMIT ?",
		namespace, "%"+sanitized+"%", limit,
	)
	s.mu.RUnlock()
	if err != nil {
		return nil, perrors.StorageError{Op: "search_keyword", Err: err}
	}
	defer rows.Close()
	return scanMemoryRows(rows)
}

func sanitizeLikePattern(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

func (s *LocalStore) searchVec(namespace string, queryVec []float32, limit int) ([]domain.MemoryRecord, error) {
	queryBlob := encodeFloat32Slice(queryVec)
	s.mu.RLock()
	rows, err := s.db.Query(
		"SELECT rowid, namespace, content, metadata, vec_distance_cosine(embedding, ?) AS dist FROM vec_index WHERE namespace = ? ORDER BY dist ASC LIMIT ?",
		queryBlob, namespace, limit,
	)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MemoryRecord
	for rows.Next() {
		var id int64
		var ns, content, metaJSON string
		var dist float64
		if err := rows.Scan(&id, &ns, &content, &metaJSON, &dist); err != nil {
			continue
		}
		out = append(out, domain.MemoryRecord{
			ID:        id,
			Namespace: ns,
			Content:   content,
			Metadata:  decodeMetadata(metaJSON),
		})
	}
	return out, nil
}

func (s *LocalStore) searchBruteForce(namespace string, queryVec []float32, limit int) ([]domain.MemoryRecord, error) {
	s.mu.RLock()
	rows, err := s.db.Query(
		"SELECT id, namespace, content, metadata, embedding, timestamp, vector_id FROM memories WHERE namespace = ? AND embedding IS NOT NULL AND embedding != ''",
		namespace,
	)
	s.mu.RUnlock()
	if err != nil {
		return nil, perrors.StorageError{Op: "search_brute_force", Err: err}
	}
	defer rows.Close()

	type scored struct {
		rec   domain.MemoryRecord
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var id int64
		var ns, content, metaJSON, embJSON string
		var ts float64
		var vecID *int64
		if err := rows.Scan(&id, &ns, &content, &metaJSON, &embJSON, &ts, &vecID); err != nil {
			continue
		}
		vec, err := parseEmbeddingJSON([]byte(embJSON), nil)
		if err != nil || len(vec) != len(queryVec) {
			continue
		}
		candidates = append(candidates, scored{
			rec: domain.MemoryRecord{
				ID:        id,
				Namespace: ns,
				Content:   content,
				Metadata:  decodeMetadata(metaJSON),
				CreatedAt: time.Unix(int64(ts), 0),
				VectorID:  vecID,
			},
			score: cosineSimilarity32(queryVec, vec),
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]domain.MemoryRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out, nil
}

func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func decodeMetadata(metaJSON string) map[string]any {
	meta := make(map[string]any)
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &meta)
	}
	return meta
}

func scanMemoryRows(rows interface {
	Next() bool
	Scan(dest ...any) error
}) ([]domain.MemoryRecord, error) {
	var out []domain.MemoryRecord
	for rows.Next() {
		var id int64
		var ns, content, metaJSON string
		var ts float64
		var vecID *int64
		if err := rows.Scan(&id, &ns, &content, &metaJSON, &ts, &vecID); err != nil {
			continue
		}
		out = append(out, domain.MemoryRecord{
			ID:        id,
			Namespace: ns,
			Content:   content,
			Metadata:  decodeMetadata(metaJSON),
			CreatedAt: time.Unix(int64(ts), 0),
			VectorID:  vecID,
		})
	}
	return out, nil
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// initVecIndex creates the sqlite-vec virtual table for dim-dimensional
// embeddings. Success flips vectorExt on even if it was previously false,
// so attaching an embedding engine after NewLocalStore still enables ANN
// search.
func (s *LocalStore) initVecIndex(dim int) {
	if dim <= 0 || s.db == nil {
		return
	}
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[%d], namespace TEXT, content TEXT, metadata TEXT)", dim)
	if _, err := s.db.Exec(stmt); err == nil {
		s.vectorExt = true
		logging.Store("sqlite-vec index initialized (dimensions=%d)", dim)
	} else {
		logging.Get(logging.CategoryStore).Warn("failed to create sqlite-vec index: %v", err)
	}
}

// backfillVecIndex migrates previously keyword-only records' JSON-encoded
// embeddings into the vec0 index, batching inserts in transactions.
func (s *LocalStore) backfillVecIndex(dim int) {
	if !s.vectorExt || s.db == nil || dim <= 0 {
		return
	}

	rows, err := s.db.Query("SELECT id, namespace, content, metadata, embedding FROM memories WHERE embedding IS NOT NULL AND embedding != ''")
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("backfill query failed: %v", err)
		return
	}

	type row struct {
		id             int64
		namespace      string
		content        string
		metadata       string
		embeddingBytes []byte
	}
	var toInsert []row
	for rows.Next() {
		var id int64
		var ns, content, meta, embJSON string
		if err := rows.Scan(&id, &ns, &content, &meta, &embJSON); err != nil {
			continue
		}
		vec, err := parseEmbeddingJSON([]byte(embJSON), nil)
		if err != nil || len(vec) != dim {
			continue
		}
		toInsert = append(toInsert, row{id, ns, content, meta, encodeFloat32Slice(vec)})
	}
	rows.Close()

	if len(toInsert) == 0 {
		return
	}

	const batchSize = 100
	backfilled := 0
	for i := 0; i < len(toInsert); i += batchSize {
		end := i + batchSize
		if end > len(toInsert) {
			end = len(toInsert)
		}
		batch := toInsert[i:end]

		tx, err := s.db.Begin()
		if err != nil {
			continue
		}
		stmt, err := tx.Prepare("INSERT OR REPLACE INTO vec_index (rowid, embedding, namespace, content, metadata) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			tx.Rollback()
			continue
		}
		for _, r := range batch {
			if _, err := stmt.Exec(r.id, r.embeddingBytes, r.namespace, r.content, r.metadata); err == nil {
				backfilled++
			}
		}
		stmt.Close()
		tx.Commit()
	}
	logging.Store("vec_index backfill complete: migrated=%d", backfilled)
}
