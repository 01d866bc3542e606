package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codenav/codenavd/internal/config"
	"github.com/codenav/codenavd/internal/profiling"
)

func newIndexInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info [path]",
		Short: "Show index configuration and on-disk size",
		Long: `Display detail about the index for a workspace: whether vector search is
enabled (and with what dimension) and how large each on-disk component is.

This command helps you:
- Check whether vector search is enabled and what dimension it uses
- Verify an index exists after a reindex
- See the relative on-disk size of the structured store, text index and
  vector index`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndexInfo(cmd, path, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

// indexInfo is the data shown by `index info`, gathered without opening the
// store or text index (both are single-process-safe, not concurrent-safe,
// so `info` only stats the files `serve`/`index` leave on disk).
type indexInfo struct {
	Location       string `json:"location"`
	ProjectRoot    string `json:"project"`
	MetadataExists bool   `json:"metadata_exists"`
	MetadataBytes  int64  `json:"metadata_bytes"`
	TextIndexBytes int64  `json:"text_index_bytes"`
	VectorBytes    int64  `json:"vector_bytes"`
	VectorEnabled  bool   `json:"vector_enabled"`
	VectorDims     int    `json:"vector_dimensions,omitempty"`
}

func runIndexInfo(cmd *cobra.Command, path string, jsonOutput bool) error {
	root := resolveWorkspaceRoot(path)
	dataDir := filepath.Join(root, ".codenavd")
	metadataPath := filepath.Join(dataDir, "metadata.db")

	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found at %s\nRun 'codenavd index %s' to create one", dataDir, path)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	info := indexInfo{
		Location:       dataDir,
		ProjectRoot:    root,
		MetadataExists: true,
		MetadataBytes:  dirSize(metadataPath),
		TextIndexBytes: dirSize(filepath.Join(dataDir, "text.bleve")),
		VectorBytes:    dirSize(filepath.Join(dataDir, "vectors.hnsw")) + dirSize(filepath.Join(dataDir, "vectors.hnsw.meta")),
		VectorEnabled:  cfg.Vector.Enabled,
		VectorDims:     cfg.Vector.Dimensions,
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}
	return outputIndexInfoHuman(cmd, info)
}

func outputIndexInfoHuman(cmd *cobra.Command, info indexInfo) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Index Information")
	fmt.Fprintln(out, "=================")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Location: %s\n", info.Location)
	fmt.Fprintf(out, "Project:  %s\n", info.ProjectRoot)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "On-disk size:")
	fmt.Fprintf(out, "  Structured store: %s\n", profiling.FormatBytes(uint64(info.MetadataBytes)))
	fmt.Fprintf(out, "  Text index:       %s\n", profiling.FormatBytes(uint64(info.TextIndexBytes)))
	fmt.Fprintf(out, "  Vector index:     %s\n", profiling.FormatBytes(uint64(info.VectorBytes)))
	fmt.Fprintln(out)

	if info.VectorEnabled {
		fmt.Fprintf(out, "Vector search: enabled (%d dimensions)\n", info.VectorDims)
	} else {
		fmt.Fprintln(out, "Vector search: disabled")
	}

	return nil
}

// dirSize returns the total size in bytes of path, recursing if it is a
// directory (Bleve's text index is a directory; SQLite/HNSW are files).
func dirSize(path string) int64 {
	var total int64
	_ = filepath.Walk(path, func(_ string, fi os.FileInfo, err error) error {
		if err != nil || fi == nil || fi.IsDir() {
			return nil
		}
		total += fi.Size()
		return nil
	})
	return total
}
