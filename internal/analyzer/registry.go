package analyzer

import (
	"sort"
	"sync"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// Registry maps each file extension to exactly one Analyzer. On ambiguity
// (two analyzers declaring the same extension) the last one registered
// wins and a warning is logged, matching internal/tools/registry.go's
// last-registered-wins Register shape generalized from tool names to file
// extensions.
type Registry struct {
	mu        sync.RWMutex
	byExt     map[string]Analyzer
	analyzers map[string]Analyzer // by LanguageName, for dedup and listing
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:     make(map[string]Analyzer),
		analyzers: make(map[string]Analyzer),
	}
}

// Register adds a to the registry for every extension it declares.
func (r *Registry) Register(a Analyzer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.analyzers[a.LanguageName()] = a
	for _, ext := range a.FileExtensions() {
		if existing, ok := r.byExt[ext]; ok && existing.LanguageName() != a.LanguageName() {
			logging.AnalyzeWarn("extension %q claimed by both %s and %s; %s wins",
				ext, existing.LanguageName(), a.LanguageName(), a.LanguageName())
		}
		r.byExt[ext] = a
	}
}

// For returns the analyzer registered for ext, or nil if none matches.
func (r *Registry) For(ext string) Analyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byExt[ext]
}

// Languages returns every registered language name, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Siblings returns the sibling languages a's analyzer advertises, if it
// implements SiblingAware; otherwise nil.
func (r *Registry) Siblings(languageName string) []string {
	r.mu.RLock()
	a, ok := r.analyzers[languageName]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if sa, ok := a.(SiblingAware); ok {
		return sa.SiblingLanguages()
	}
	return nil
}
