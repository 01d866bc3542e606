package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWorkspaceDeps_VectorDisabledByDefault(t *testing.T) {
	root := t.TempDir()

	deps, err := buildWorkspaceDeps(root)
	require.NoError(t, err)
	defer func() { _ = deps.Close() }()

	assert.Nil(t, deps.vector)
	assert.NotNil(t, deps.store)
	assert.NotNil(t, deps.textIndex)
	assert.NotNil(t, deps.indexer)
	assert.NotNil(t, deps.cache)
	assert.NotNil(t, deps.resources)
	assert.DirExists(t, filepath.Join(root, ".codenavd"))
}

func TestBuildWorkspaceDeps_ClosePropagatesError(t *testing.T) {
	deps := &workspaceDeps{}
	boom := assert.AnError
	deps.closers = append(deps.closers,
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	)

	assert.ErrorIs(t, deps.Close(), boom)
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	present := filepath.Join(tmpDir, "present")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))

	assert.True(t, fileExists(present))
	assert.False(t, fileExists(filepath.Join(tmpDir, "absent")))
}

func TestResolveWorkspaceRoot_FallsBackToAbsPath(t *testing.T) {
	tmpDir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, resolved, mustEvalSymlinks(t, resolveWorkspaceRoot(tmpDir)))
}

func mustEvalSymlinks(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}
