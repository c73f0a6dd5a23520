package apply

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmergency struct {
	safe   bool
	reason string
}

func (f *fakeEmergency) Validate(p domain.FixProposal, original, updated string) (bool, string) {
	return f.safe, f.reason
}

type fakeSandbox struct {
	safe   bool
	reason string
	result domain.SandboxResult
}

func (f *fakeSandbox) Validate(ctx context.Context, projectRoot string, p domain.FixProposal, newContent string) (bool, string, domain.SandboxResult) {
	return f.safe, f.reason, f.result
}

func writeProjectFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestApply_WritesFileAndBackupOnSuccess(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc bad() {\n\tx := 1\n}\n")

	applier := New(&fakeEmergency{safe: true}, &fakeSandbox{safe: true})
	p := domain.FixProposal{FilePath: "main.go", OriginalCode: "x := 1", ProposedFix: "x := 2", LineNumber: 4}

	result := applier.Apply(context.Background(), root, p)

	require.True(t, result.Applied, result.Reason)
	data, err := os.ReadFile(filepath.Join(root, "main.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "x := 2")

	backup, err := os.ReadFile(result.BackupPath)
	require.NoError(t, err)
	assert.Contains(t, string(backup), "x := 1")
}

func TestApply_RejectsLineOutOfBounds(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n")

	applier := New(&fakeEmergency{safe: true}, &fakeSandbox{safe: true})
	p := domain.FixProposal{FilePath: "main.go", OriginalCode: "x", ProposedFix: "y", LineNumber: 50}

	result := applier.Apply(context.Background(), root, p)

	assert.False(t, result.Applied)
	assert.Contains(t, result.Reason, "line out of bounds")
}

func TestApply_RejectsWhenOriginalCodeNotFoundOnLine(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc ok() {}\n")

	applier := New(&fakeEmergency{safe: true}, &fakeSandbox{safe: true})
	p := domain.FixProposal{FilePath: "main.go", OriginalCode: "does-not-exist", ProposedFix: "y", LineNumber: 3}

	result := applier.Apply(context.Background(), root, p)

	assert.False(t, result.Applied)
	assert.Contains(t, result.Reason, "original not found")
}

func TestApply_AbortsOnEmergencyBlockAndLeavesFileUntouched(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc bad() {\n\tx := 1\n}\n")

	applier := New(&fakeEmergency{safe: false, reason: "introduced new dangerous pattern: os.system"}, &fakeSandbox{safe: true})
	p := domain.FixProposal{FilePath: "main.go", OriginalCode: "x := 1", ProposedFix: "os.system(x)", LineNumber: 4}

	result := applier.Apply(context.Background(), root, p)

	assert.False(t, result.Applied)
	assert.Contains(t, result.Reason, "emergency validation")
	data, err := os.ReadFile(filepath.Join(root, "main.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "x := 1")
	assert.NoFileExists(t, filepath.Join(root, "main.go.bak"))
}

func TestApply_AbortsOnSandboxBlock(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc bad() {\n\tx := 1\n}\n")

	applier := New(&fakeEmergency{safe: true}, &fakeSandbox{safe: false, reason: "build failed"})
	p := domain.FixProposal{FilePath: "main.go", OriginalCode: "x := 1", ProposedFix: "x := 2", LineNumber: 4}

	result := applier.Apply(context.Background(), root, p)

	assert.False(t, result.Applied)
	assert.Contains(t, result.Reason, "sandbox validation")
}

func TestApply_SkipsSandboxWhenValidatorIsNil(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.go", "package main\n\nfunc bad() {\n\tx := 1\n}\n")

	applier := New(&fakeEmergency{safe: true}, nil)
	p := domain.FixProposal{FilePath: "main.go", OriginalCode: "x := 1", ProposedFix: "x := 2", LineNumber: 4}

	result := applier.Apply(context.Background(), root, p)

	assert.True(t, result.Applied, result.Reason)
}

func TestPreviewDiff_ReturnsDiffWithoutWritingFile(t *testing.T) {
	root := t.TempDir()
	content := "package main\n\nfunc bad() {\n\tx := 1\n}\n"
	writeProjectFile(t, root, "main.go", content)

	applier := New(&fakeEmergency{safe: true}, nil)
	p := domain.FixProposal{FilePath: "main.go", OriginalCode: "x := 1", ProposedFix: "x := 2", LineNumber: 4}

	fd, err := applier.PreviewDiff(p, content)
	require.NoError(t, err)
	assert.NotEmpty(t, fd.Hunks)

	data, err := os.ReadFile(filepath.Join(root, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestNewProjectBackup_RejectsBackupInsideProject(t *testing.T) {
	root := t.TempDir()
	_, err := NewProjectBackup(root, filepath.Join(root, "backups"))
	assert.Error(t, err)
}

func TestProjectBackup_CreateAndRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	backupRoot := t.TempDir()
	writeProjectFile(t, root, "a.go", "package a\n")
	writeProjectFile(t, root, "sub/b.go", "package b\n")

	backup, err := NewProjectBackup(root, filepath.Join(backupRoot, "snap"))
	require.NoError(t, err)
	require.NoError(t, backup.Create())

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package corrupted\n"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(root, "sub", "b.go")))

	require.NoError(t, backup.Restore())

	data, err := os.ReadFile(filepath.Join(root, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(data))
	assert.FileExists(t, filepath.Join(root, "sub", "b.go"))
}

func TestApplyStep_RollsBackEntireStepOnSingleFailure(t *testing.T) {
	root := t.TempDir()
	backupRoot := t.TempDir()
	writeProjectFile(t, root, "a.go", "package a\n\nfunc f() {\n\tv := 1\n}\n")
	writeProjectFile(t, root, "b.go", "package b\n\nfunc g() {\n\tv := 1\n}\n")

	applier := New(&fakeEmergency{safe: true}, nil)
	step := domain.IntegrationStep{
		Name: "rename-v",
		Modifications: []domain.FileModification{
			{FilePath: "a.go", OriginalCode: "v := 1", ProposedFix: "v := 2", LineNumber: 4},
			{FilePath: "b.go", OriginalCode: "does-not-exist", ProposedFix: "v := 2", LineNumber: 4},
		},
	}

	result := applier.ApplyStep(context.Background(), root, filepath.Join(backupRoot, "snap"), step)

	assert.False(t, result.Applied)
	assert.True(t, result.RolledBack)

	data, err := os.ReadFile(filepath.Join(root, "a.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "v := 1")
	assert.NotContains(t, string(data), "v := 2")
}

func TestApplyStep_AppliesAllModificationsWhenAllSucceed(t *testing.T) {
	root := t.TempDir()
	backupRoot := t.TempDir()
	writeProjectFile(t, root, "a.go", "package a\n\nfunc f() {\n\tv := 1\n}\n")
	writeProjectFile(t, root, "b.go", "package b\n\nfunc g() {\n\tv := 1\n}\n")

	applier := New(&fakeEmergency{safe: true}, nil)
	step := domain.IntegrationStep{
		Name: "rename-v",
		Modifications: []domain.FileModification{
			{FilePath: "a.go", OriginalCode: "v := 1", ProposedFix: "v := 2", LineNumber: 4},
			{FilePath: "b.go", OriginalCode: "v := 1", ProposedFix: "v := 2", LineNumber: 4},
		},
	}

	result := applier.ApplyStep(context.Background(), root, filepath.Join(backupRoot, "snap"), step)

	require.True(t, result.Applied)
	aData, _ := os.ReadFile(filepath.Join(root, "a.go"))
	bData, _ := os.ReadFile(filepath.Join(root, "b.go"))
	assert.Contains(t, string(aData), "v := 2")
	assert.Contains(t, string(bData), "v := 2")
}
