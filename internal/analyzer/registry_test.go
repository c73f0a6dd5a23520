package analyzer

import (
	"context"
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
)

type fakeAnalyzer struct {
	name string
	exts []string
}

func (f fakeAnalyzer) LanguageName() string   { return f.name }
func (f fakeAnalyzer) FileExtensions() []string { return f.exts }
func (f fakeAnalyzer) AnalyzeFile(ctx context.Context, path string, content []byte, local, global Memory) ([]domain.Issue, error) {
	return nil, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeAnalyzer{name: "python", exts: []string{".py"}})
	r.Register(fakeAnalyzer{name: "cpp", exts: []string{".cpp", ".hpp"}})

	assert.Equal(t, "python", r.For(".py").LanguageName())
	assert.Equal(t, "cpp", r.For(".hpp").LanguageName())
	assert.Nil(t, r.For(".rs"))
	assert.Equal(t, []string{"cpp", "python"}, r.Languages())
}

func TestRegistry_LastRegisteredWinsOnAmbiguousExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeAnalyzer{name: "first", exts: []string{".x"}})
	r.Register(fakeAnalyzer{name: "second", exts: []string{".x"}})

	assert.Equal(t, "second", r.For(".x").LanguageName())
}

type siblingAnalyzer struct {
	fakeAnalyzer
	siblings []string
}

func (s siblingAnalyzer) SiblingLanguages() []string { return s.siblings }

func TestRegistry_Siblings(t *testing.T) {
	r := NewRegistry()
	r.Register(siblingAnalyzer{
		fakeAnalyzer: fakeAnalyzer{name: "cpp", exts: []string{".cpp"}},
		siblings:     []string{"c", "rust", "go"},
	})

	assert.Equal(t, []string{"c", "rust", "go"}, r.Siblings("cpp"))
	assert.Nil(t, r.Siblings("python"))
}
