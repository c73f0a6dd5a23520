package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/analyzer"
	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) LanguageName() string     { return "fake" }
func (fakeAnalyzer) FileExtensions() []string { return []string{".fake"} }
func (fakeAnalyzer) AnalyzeFile(ctx context.Context, path string, content []byte, local, global analyzer.Memory) ([]domain.Issue, error) {
	return []domain.Issue{{FilePath: path, IssueType: "fake_issue", Severity: domain.SeverityLow}}, nil
}

type fakeMemory struct {
	stores []string
}

func (m *fakeMemory) Search(ctx context.Context, namespace, query string, limit int) ([]domain.MemoryRecord, error) {
	return nil, nil
}
func (m *fakeMemory) Store(ctx context.Context, namespace, content string, metadata map[string]any) (int64, error) {
	m.stores = append(m.stores, content)
	return int64(len(m.stores)), nil
}

func TestRun_AnalyzesMatchingFilesAndSkipsOthers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.fake"), []byte("content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.unknown"), []byte("content"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "c.fake"), []byte("content"), 0o644))

	reg := analyzer.NewRegistry()
	reg.Register(fakeAnalyzer{})
	mem := &fakeMemory{}

	e := New(DefaultConfig(), reg, mem, nil)
	result, err := e.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "fake_issue", result.Issues[0].IssueType)
	assert.Equal(t, 1, result.Iteration)
	assert.NotEmpty(t, mem.stores)
}

func TestRun_SkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.fake"), make([]byte, 2048), 0o644))

	cfg := DefaultConfig()
	cfg.MaxFileBytes = 1024

	reg := analyzer.NewRegistry()
	reg.Register(fakeAnalyzer{})

	e := New(cfg, reg, nil, nil)
	result, err := e.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 0, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesSkipped)
}

func TestRun_MaxDepthExcludesDeeplyNestedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.fake"), []byte("content"), 0o644))
	nested := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "deep.fake"), []byte("content"), 0o644))

	cfg := DefaultConfig()
	cfg.MaxDepth = 1

	reg := analyzer.NewRegistry()
	reg.Register(fakeAnalyzer{})

	e := New(cfg, reg, nil, nil)
	result, err := e.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
}

func TestBatchFiles_PartitionsInOrder(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e"}
	batches := batchFiles(files, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c", "d"}, batches[1])
	assert.Equal(t, []string{"e"}, batches[2])
}

func TestReadAndDecode_ValidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	content, ok := readAndDecode(path, 1<<20)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(content))
}
