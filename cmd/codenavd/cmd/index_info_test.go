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

func TestIndexInfo_NoIndexFound(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := newIndexInfoCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestIndexInfo_JSONOutput(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".codenavd")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "metadata.db"), []byte("fake-sqlite-contents"), 0o644))

	var stdout bytes.Buffer
	cmd := newIndexInfoCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{tmpDir, "--json"})

	require.NoError(t, cmd.Execute())

	var info indexInfo
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &info))
	assert.True(t, info.MetadataExists)
	assert.Equal(t, int64(len("fake-sqlite-contents")), info.MetadataBytes)
	assert.False(t, info.VectorEnabled)
}

func TestDirSize_SumsFilesRecursively(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a"), []byte("1234"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "sub", "b"), []byte("12345678"), 0o644))

	assert.EqualValues(t, 12, dirSize(tmpDir))
}

func TestDirSize_SingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "f")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	assert.EqualValues(t, 5, dirSize(path))
}

func TestDirSize_MissingPathIsZero(t *testing.T) {
	assert.EqualValues(t, 0, dirSize(filepath.Join(t.TempDir(), "does-not-exist")))
}
