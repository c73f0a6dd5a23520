// Package engine implements the recursive analysis engine (C5): batched
// file traversal, multi-encoding decode, per-file analyzer dispatch, and
// iteration tracking (the counter lives on the Engine value and starts from
// zero in each process; stored iteration records are written but not read
// back), grounded on the teacher's errgroup-bounded
// concurrent-gathering shape in internal/campaign/intelligence_gatherer.go
// and the exclude-set/worker-count idiom in internal/world/scanner_config.go.
package engine

import (
	"context"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// Config tunes the engine's traversal and concurrency.
type Config struct {
	BatchSize      int
	MaxFileBytes   int64
	MaxConcurrency int
	Exclude        []string
	Namespace      string
	// MaxDepth limits traversal to this many directories below root; 0
	// means unlimited, matching the CLI's `--max-depth` default.
	MaxDepth int
}

// DefaultConfig matches SPEC_FULL.md §4.4/§5's stated defaults: a bounded
// worker pool defaulting to 1, i.e. sequential within a batch unless the
// caller raises MaxConcurrency.
func DefaultConfig() Config {
	return Config{
		BatchSize:      50,
		MaxFileBytes:   1 << 20, // 1 MiB
		MaxConcurrency: 1,
		Exclude: []string{
			"venv", ".venv", "__pycache__", ".git", "node_modules",
			"vendor", "dist", "build", ".next", "target", "bin", "obj",
			".terraform", ".cache",
		},
		Namespace: "analysis_engine",
	}
}

// CrossDomainDetector runs across the entire accumulated file set after all
// batches complete; a nil detector means step 5 is skipped.
type CrossDomainDetector interface {
	Detect(ctx context.Context, files []FileRecord) ([]domain.Issue, error)
}

// FileRecord is one analyzed file's outcome, kept across the run so the
// optional cross-domain pass (step 5) can see the whole project.
type FileRecord struct {
	Path   string
	Issues []domain.Issue
}

// Result summarizes a full Run.
type Result struct {
	FilesProcessed int
	FilesSkipped   int
	Issues         []domain.Issue
	Iteration      int
	Duration       time.Duration
}

// Engine drives one analysis pass over a project tree.
type Engine struct {
	cfg      Config
	registry *analyzer.Registry
	memory   analyzer.Memory
	detector CrossDomainDetector
	iteration int
}

// New returns an Engine reading files through registry and recording
// learned patterns via memory. detector may be nil.
func New(cfg Config, registry *analyzer.Registry, memory analyzer.Memory, detector CrossDomainDetector) *Engine {
	return &Engine{cfg: cfg, registry: registry, memory: memory, detector: detector}
}

// Config returns the engine's traversal/concurrency configuration, for
// callers (the CLI's analyze command) that need to override a field and
// construct a fresh Engine with it.
func (e *Engine) Config() Config { return e.cfg }

// Run executes one full analysis iteration over root, per SPEC_FULL.md
// §4.4's 6-step algorithm.
func (e *Engine) Run(ctx context.Context, root string) (Result, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryAnalyze, "Run")
	defer timer.Stop()

	files, skipped, err := enumerateFiles(root, e.cfg)
	if err != nil {
		return Result{}, err
	}

	batches := batchFiles(files, e.cfg.BatchSize)
	var allRecords []FileRecord
	var allIssues []domain.Issue
	processed := 0

	for batchIdx, batch := range batches {
		records, err := e.runBatch(ctx, batch)
		if err != nil {
			return Result{}, err
		}
		allRecords = append(allRecords, records...)
		for _, r := range records {
			allIssues = append(allIssues, r.Issues...)
			processed++
		}
		e.recordBatchSummary(ctx, batchIdx, records)
	}

	if e.detector != nil {
		extra, err := e.detector.Detect(ctx, allRecords)
		if err != nil {
			logging.AnalyzeWarn("cross-domain detector failed: %v", err)
		} else {
			allIssues = append(allIssues, extra...)
		}
	}

	e.iteration++
	result := Result{
		FilesProcessed: processed,
		FilesSkipped:   skipped,
		Issues:         allIssues,
		Iteration:      e.iteration,
		Duration:       time.Since(start),
	}
	e.recordIteration(ctx, result)

	return result, nil
}

// runBatch decodes and analyzes every file in batch concurrently, bounded
// by Config.MaxConcurrency.
func (e *Engine) runBatch(ctx context.Context, batch []string) ([]FileRecord, error) {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.MaxConcurrency)

	records := make([]FileRecord, len(batch))
	for i, path := range batch {
		i, path := i, path
		eg.Go(func() error {
			rec, err := e.analyzeOne(egCtx, path)
			if err != nil {
				logging.AnalyzeWarn("analyze %s: %v", path, err)
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := records[:0]
	for _, r := range records {
		if r.Path != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Engine) analyzeOne(ctx context.Context, path string) (FileRecord, error) {
	content, ok := readAndDecode(path, e.cfg.MaxFileBytes)
	if !ok {
		return FileRecord{}, nil
	}

	a := e.registry.For(filepath.Ext(path))
	if a == nil {
		return FileRecord{}, nil
	}

	issues, err := a.AnalyzeFile(ctx, path, content, e.memory, e.memory)
	if err != nil {
		return FileRecord{}, err
	}
	return FileRecord{Path: path, Issues: issues}, nil
}

func (e *Engine) recordBatchSummary(ctx context.Context, batchIdx int, records []FileRecord) {
	if e.memory == nil {
		return
	}
	issueCount := 0
	var sample []string
	for _, r := range records {
		issueCount += len(r.Issues)
		for _, iss := range r.Issues {
			if len(sample) < 5 {
				sample = append(sample, iss.IssueType)
			}
		}
	}
	_, _ = e.memory.Store(ctx, e.cfg.Namespace, "batch summary", map[string]any{
		"batch":         batchIdx,
		"files":         len(records),
		"issue_count":   issueCount,
		"sample_issues": sample,
	})
}

func (e *Engine) recordIteration(ctx context.Context, result Result) {
	if e.memory == nil {
		return
	}
	_, _ = e.memory.Store(ctx, e.cfg.Namespace, "iteration summary", map[string]any{
		"iteration":       result.Iteration,
		"files_processed": result.FilesProcessed,
		"files_skipped":   result.FilesSkipped,
		"issues_found":    len(result.Issues),
		"duration_ms":     result.Duration.Milliseconds(),
	})
}
