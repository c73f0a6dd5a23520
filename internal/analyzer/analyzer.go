// Package analyzer holds the per-language analyzer contract and the
// file-extension registry that dispatches to one analyzer per file,
// adapted from internal/tools/registry.go's name->value map.
package analyzer

import (
	"context"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
)

// Memory is the subset of internal/store's contract an analyzer needs: it
// may consult prior patterns and write newly learned ones, but never
// mutates source files.
type Memory interface {
	Search(ctx context.Context, namespace, query string, limit int) ([]domain.MemoryRecord, error)
	Store(ctx context.Context, namespace, content string, metadata map[string]any) (int64, error)
}

// Analyzer is the polymorphic contract every language module implements.
type Analyzer interface {
	LanguageName() string
	FileExtensions() []string
	AnalyzeFile(ctx context.Context, path string, content []byte, localMemory, globalMemory Memory) ([]domain.Issue, error)
}

// SiblingAware is an optional capability: analyzers that correlate with
// other languages' memory namespaces when searching for prior art (C++ with
// C/Rust/Go, for instance) implement it.
type SiblingAware interface {
	SiblingLanguages() []string
}
