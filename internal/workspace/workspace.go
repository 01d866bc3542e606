// Package workspace implements path & workspace identity (C1): a
// deterministic workspace hash and the on-disk layout for a workspace's
// index artifacts.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Info is the resolved identity of a workspace: its canonical path, stable
// hash, and the directories/files that make up its on-disk index.
type Info struct {
	// CanonicalPath is the unresolved absolute path (symlinks are not
	// followed for hashing purposes, so two callers reaching the same
	// directory through different symlink chains get different hashes).
	CanonicalPath string
	Hash          string
	IndexDir      string // <index_root>/<hash>
	DBPath        string // <index_root>/<hash>/db/workspace.db
	TextIndexDir  string // <index_root>/<hash>/lucene
	VectorPath    string // <index_root>/<hash>/vector.hnsw
}

// ErrWorkspaceMissing is returned by Resolve when the workspace directory
// does not exist.
type ErrWorkspaceMissing struct {
	Path string
}

func (e *ErrWorkspaceMissing) Error() string {
	return fmt.Sprintf("workspace directory does not exist: %s", e.Path)
}

// Resolve computes a workspace's canonical path, hash, and on-disk layout
// under indexRoot. The absolute path is hashed without resolving symlinks,
// per §9's path-handling note, so the hash is stable across processes that
// use the same absolute path; a different mount point or symlink path to the
// same directory yields a different hash.
func Resolve(workspacePath, indexRoot string) (Info, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return Info{}, fmt.Errorf("resolve absolute path: %w", err)
	}
	abs = filepath.ToSlash(abs)

	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return Info{}, &ErrWorkspaceMissing{Path: abs}
		}
		return Info{}, fmt.Errorf("stat workspace: %w", err)
	}

	hash := hashPath(abs)
	indexDir := filepath.Join(indexRoot, hash)

	return Info{
		CanonicalPath: abs,
		Hash:          hash,
		IndexDir:      indexDir,
		DBPath:        filepath.Join(indexDir, "db", "workspace.db"),
		TextIndexDir:  filepath.Join(indexDir, "lucene"),
		VectorPath:    filepath.Join(indexDir, "vector.hnsw"),
	}, nil
}

func hashPath(absCanonicalPath string) string {
	sum := sha256.Sum256([]byte(absCanonicalPath))
	return hex.EncodeToString(sum[:])[:16]
}

// ToSlash normalizes a native-separator path to the internal `/`-separated
// canonical form. Convert back to native separators only at the filesystem
// boundary (os.Open, os.ReadFile, …), per §9.
func ToSlash(p string) string {
	return filepath.ToSlash(p)
}

// FromSlash converts the internal canonical form back to the host's native
// path separator, for use immediately before a filesystem call.
func FromSlash(p string) string {
	return filepath.FromSlash(p)
}
