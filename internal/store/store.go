// Package store implements the hybrid keyword/vector memory store (the
// persistence layer behind internal/domain.MemoryRecord): namespace-scoped
// storage, cosine-similarity vector recall with a sanitized substring
// fallback, SQLite WAL persistence, and an optional sqlite-vec ANN index.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/embedding"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/perrors"
	_ "github.com/mattn/go-sqlite3"
)

// defaultRequireVec mirrors the teacher's build-time toggle: when true,
// NewLocalStore fails fast if the sqlite-vec extension cannot be detected.
// PRI defaults to false because a fresh workspace has no vec0-capable
// driver registered until the sqlite_vec build tag is present.
var defaultRequireVec = false

// LocalStore is the memory store: a single SQLite database holding the
// memories table (namespace-partitioned facts/patterns) and, when an
// embedding engine is attached, a parallel vector index for semantic
// recall.
type LocalStore struct {
	db              *sql.DB
	mu              sync.RWMutex
	dbPath          string
	embeddingEngine embedding.EmbeddingEngine
	vectorExt       bool
	requireVec      bool
}

// NewLocalStore opens (creating if necessary) the SQLite database at path
// and ensures the memories schema exists.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("initializing memory store at %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perrors.StorageError{Op: "mkdir", Err: err}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, perrors.StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set synchronous=NORMAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, perrors.StorageError{Op: "initialize", Err: err}
	}

	s.detectVecExtension()
	s.requireVec = defaultRequireVec
	if s.requireVec && !s.vectorExt {
		db.Close()
		return nil, perrors.StorageError{Op: "detect_vec", Err: fmt.Errorf("sqlite-vec extension not available")}
	}
	if s.vectorExt {
		logging.Store("sqlite-vec extension detected, ANN search enabled")
	} else {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec extension not available, falling back to brute-force/keyword search")
	}

	return s, nil
}

func (s *LocalStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		namespace TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding TEXT,
		timestamp REAL NOT NULL,
		vector_id INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_memories_namespace_ts ON memories(namespace, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories(namespace);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create memories table: %w", err)
	}
	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *LocalStore) detectVecExtension() {
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// Close closes the underlying database connection.
func (s *LocalStore) Close() error {
	logging.Store("closing memory store")
	return s.db.Close()
}

// SetEmbeddingEngine attaches an embedding engine for semantic Search and
// lazily initializes (and backfills) the vector index for its dimension.
func (s *LocalStore) SetEmbeddingEngine(engine embedding.EmbeddingEngine) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.embeddingEngine = engine
	if engine != nil {
		dim := engine.Dimensions()
		s.initVecIndex(dim)
		go func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.backfillVecIndex(dim)
		}()
	}
	s.mu.Unlock()
}

// Store persists one memory record under namespace and returns its id. If
// an embedding engine is attached, an embedding is generated and indexed;
// otherwise the record is stored keyword-searchable only.
func (s *LocalStore) Store(ctx context.Context, namespace, content string, metadata map[string]any) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store")
	defer timer.Stop()

	if namespace == "" {
		return 0, perrors.StorageError{Op: "store", Err: fmt.Errorf("namespace must not be empty")}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, perrors.StorageError{Op: "store", Err: fmt.Errorf("marshal metadata: %w", err)}
	}

	var embeddingJSON []byte
	var vec []float32
	if s.embeddingEngine != nil {
		taskType := embedding.GetOptimalTaskType(content, metadata, false)
		if taskAware, ok := s.embeddingEngine.(TaskTypeAwareEngine); ok && taskType != "" {
			vec, err = taskAware.EmbedWithTask(ctx, content, taskType)
		} else {
			vec, err = s.embeddingEngine.Embed(ctx, content)
		}
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("embedding generation failed, storing keyword-only: %v", err)
		} else {
			embeddingJSON, _ = json.Marshal(vec)
		}
	}

	now := time.Now()
	s.mu.Lock()
	res, err := s.db.Exec(
		"INSERT INTO memories (namespace, content, metadata, embedding, timestamp) VALUES (?, ?, ?, ?, ?)",
		namespace, content, string(metaJSON), string(embeddingJSON), float64(now.UnixNano())/1e9,
	)
	s.mu.Unlock()
	if err != nil {
		return 0, perrors.StorageError{Op: "store", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, perrors.StorageError{Op: "store", Err: err}
	}

	if len(vec) > 0 && s.vectorExt {
		s.mu.Lock()
		_, verr := s.db.Exec(
			"INSERT OR REPLACE INTO vec_index (rowid, embedding, namespace, content, metadata) VALUES (?, ?, ?, ?, ?)",
			id, encodeFloat32Slice(vec), namespace, content, string(metaJSON),
		)
		s.mu.Unlock()
		if verr != nil {
			logging.Get(logging.CategoryStore).Warn("vec_index insert failed for memory %d: %v", id, verr)
		} else {
			s.mu.Lock()
			_, _ = s.db.Exec("UPDATE memories SET vector_id = ? WHERE id = ?", id, id)
			s.mu.Unlock()
		}
	}

	return id, nil
}

// Delete removes the memory record with the given id (and its vector_index
// row, if any).
func (s *LocalStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM memories WHERE id = ?", id); err != nil {
		return perrors.StorageError{Op: "delete", Err: err}
	}
	if s.vectorExt {
		_, _ = s.db.Exec("DELETE FROM vec_index WHERE rowid = ?", id)
	}
	return nil
}

// Clear deletes every memory record in namespace.
func (s *LocalStore) Clear(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return perrors.StorageError{Op: "clear", Err: err}
	}
	if s.vectorExt {
		if _, err := tx.Exec("DELETE FROM vec_index WHERE rowid IN (SELECT id FROM memories WHERE namespace = ?)", namespace); err != nil {
			tx.Rollback()
			return perrors.StorageError{Op: "clear", Err: err}
		}
	}
	if _, err := tx.Exec("DELETE FROM memories WHERE namespace = ?", namespace); err != nil {
		tx.Rollback()
		return perrors.StorageError{Op: "clear", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return perrors.StorageError{Op: "clear", Err: err}
	}
	return nil
}

// Count returns the number of memory records in namespace.
func (s *LocalStore) Count(ctx context.Context, namespace string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM memories WHERE namespace = ?", namespace).Scan(&n)
	if err != nil {
		return 0, perrors.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// ListNamespaces returns every distinct namespace currently stored.
func (s *LocalStore) ListNamespaces(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT DISTINCT namespace FROM memories ORDER BY namespace")
	if err != nil {
		return nil, perrors.StorageError{Op: "list_namespaces", Err: err}
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			continue
		}
		out = append(out, ns)
	}
	return out, nil
}

// Health reports the store's overall state and record counts.
func (s *LocalStore) Health(ctx context.Context) (domain.HealthStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := domain.HealthStatus{State: "ok"}
	if err := s.db.PingContext(ctx); err != nil {
		status.State = "down"
		return status, perrors.StorageError{Op: "health", Err: err}
	}

	var memCount int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&memCount); err != nil {
		status.State = "degraded"
		return status, perrors.StorageError{Op: "health", Err: err}
	}
	status.MemoryCount = memCount

	if s.vectorExt {
		var vecCount int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM vec_index").Scan(&vecCount); err == nil {
			status.VectorCount = vecCount
		}
	}

	return status, nil
}

// GetDB exposes the underlying connection for components (prune, stats)
// that need direct SQL access within the same database.
func (s *LocalStore) GetDB() *sql.DB { return s.db }
