package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codenav/codenavd/internal/config"
	"github.com/codenav/codenavd/internal/profiling"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and storage size",
		Long: `Display information about the current index:
  - storage sizes (structured store, text index, vector index)
  - whether vector search is enabled, and its dimension
  - whether the extractor and embedding service are configured`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// statusInfo is the data shown by `status`.
type statusInfo struct {
	ProjectName    string `json:"project_name"`
	ProjectRoot    string `json:"project_root"`
	IndexExists    bool   `json:"index_exists"`
	MetadataBytes  int64  `json:"metadata_bytes"`
	TextIndexBytes int64  `json:"text_index_bytes"`
	VectorBytes    int64  `json:"vector_bytes"`
	TotalBytes     int64  `json:"total_bytes"`
	VectorEnabled  bool   `json:"vector_enabled"`
	VectorDims     int    `json:"vector_dimensions,omitempty"`
	ExtractorPath  string `json:"extractor_path"`
	EmbeddingURL   string `json:"embedding_base_url,omitempty"`
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	root := resolveWorkspaceRoot(".")
	dataDir := filepath.Join(root, ".codenavd")
	metadataPath := filepath.Join(dataDir, "metadata.db")

	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found in %s\nRun 'codenavd index' to create one", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	info := statusInfo{
		ProjectName:    filepath.Base(root),
		ProjectRoot:    root,
		IndexExists:    true,
		MetadataBytes:  dirSize(metadataPath),
		TextIndexBytes: dirSize(filepath.Join(dataDir, "text.bleve")),
		VectorBytes:    dirSize(filepath.Join(dataDir, "vectors.hnsw")) + dirSize(filepath.Join(dataDir, "vectors.hnsw.meta")),
		VectorEnabled:  cfg.Vector.Enabled,
		VectorDims:     cfg.Vector.Dimensions,
		ExtractorPath:  cfg.Extractor.BinaryPath,
		EmbeddingURL:   cfg.Embedding.BaseURL,
	}
	info.TotalBytes = info.MetadataBytes + info.TextIndexBytes + info.VectorBytes

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}

	return outputStatusHuman(cmd, info)
}

func outputStatusHuman(cmd *cobra.Command, info statusInfo) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Project: %s (%s)\n", info.ProjectName, info.ProjectRoot)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Storage:")
	fmt.Fprintf(out, "  Structured store: %s\n", profiling.FormatBytes(uint64(info.MetadataBytes)))
	fmt.Fprintf(out, "  Text index:       %s\n", profiling.FormatBytes(uint64(info.TextIndexBytes)))
	fmt.Fprintf(out, "  Vector index:     %s\n", profiling.FormatBytes(uint64(info.VectorBytes)))
	fmt.Fprintf(out, "  Total:            %s\n", profiling.FormatBytes(uint64(info.TotalBytes)))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Extractor:      %s\n", info.ExtractorPath)
	if info.VectorEnabled {
		fmt.Fprintf(out, "Vector search:  enabled (%d dimensions, %s)\n", info.VectorDims, info.EmbeddingURL)
	} else {
		fmt.Fprintln(out, "Vector search:  disabled")
	}

	return nil
}
