package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WiresEveryComponentAgainstFreshWorkspace(t *testing.T) {
	ws := t.TempDir()

	a, err := New(ws, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, ws, a.Workspace)
	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Registry)
	assert.NotNil(t, a.Pruner)
	assert.NotNil(t, a.Engine)
	assert.NotNil(t, a.Scorer)
	assert.NotNil(t, a.Approval)
	assert.NotNil(t, a.Applier)

	assert.Contains(t, a.Registry.Languages(), "python")
	assert.FileExists(t, filepath.Join(ws, ".pri", "memory.db"))
}

func TestNew_RespectsConfigOverrideFile(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".pri"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(ws, ".pri", "config.yaml"),
		[]byte("safety:\n  auto_approve_threshold: 0.75\n"),
		0o644,
	))

	a, err := New(ws, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 0.75, a.Config.Safety.AutoApproveThreshold)
}

func TestClose_SucceedsAfterNew(t *testing.T) {
	ws := t.TempDir()

	a, err := New(ws, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.NoError(t, a.Close())
}
