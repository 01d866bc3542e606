package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withWorkdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestStatus_NoIndexFound(t *testing.T) {
	withWorkdir(t, t.TempDir())

	cmd := newStatusCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestStatus_JSONOutput(t *testing.T) {
	tmpDir := t.TempDir()
	withWorkdir(t, tmpDir)

	dataDir := filepath.Join(tmpDir, ".codenavd")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "metadata.db"), []byte("0123456789"), 0o644))

	var stdout bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--json"})

	require.NoError(t, cmd.Execute())

	var info statusInfo
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &info))
	assert.True(t, info.IndexExists)
	assert.EqualValues(t, 10, info.MetadataBytes)
	assert.Equal(t, info.MetadataBytes+info.TextIndexBytes+info.VectorBytes, info.TotalBytes)
}

func TestStatus_HumanOutputShowsProjectAndStorage(t *testing.T) {
	tmpDir := t.TempDir()
	withWorkdir(t, tmpDir)

	dataDir := filepath.Join(tmpDir, ".codenavd")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "metadata.db"), []byte("x"), 0o644))

	var stdout bytes.Buffer
	cmd := newStatusCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, cmd.Execute())

	output := stdout.String()
	assert.Contains(t, output, filepath.Base(tmpDir))
	assert.Contains(t, output, "Storage:")
	assert.Contains(t, output, "Vector search:  disabled")
}
