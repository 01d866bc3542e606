package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codenav/codenavd/internal/logging"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the index for a workspace",
		Long: `Crawl a workspace, extract symbols via the extract subprocess, and
populate the structured store (C2) and text index (C3), plus the vector
index (C4) when semantic search is enabled.

Use --force to clear existing index data and rebuild from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return runIndex(ctx, cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear existing index data and rebuild from scratch")

	cmd.AddCommand(newIndexInfoCmd())

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, force bool) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	root := resolveWorkspaceRoot(path)
	dataDir := filepath.Join(root, ".codenavd")

	if force {
		if err := clearIndexData(dataDir); err != nil {
			return fmt.Errorf("failed to clear index data: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared existing index data, starting fresh...\n")
		slog.Info("index force clear", slog.String("data_dir", dataDir))
	}

	deps, err := buildWorkspaceDeps(root)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Indexing %s...\n", root)

	count, err := deps.indexer.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d file(s).\n", count)
	if deps.vector == nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Vector search disabled; enable vector.enabled in config to build semantic search.\n")
	}

	return nil
}

// clearIndexData removes all index-related files from the data directory.
// This preserves the .codenavd.yaml config file (which is at project root, not in dataDir).
func clearIndexData(dataDir string) error {
	indexFiles := []string{
		filepath.Join(dataDir, "metadata.db"),
		filepath.Join(dataDir, "metadata.db-shm"),
		filepath.Join(dataDir, "metadata.db-wal"),
		filepath.Join(dataDir, "text.bleve"),
		filepath.Join(dataDir, "vectors.hnsw"),
		filepath.Join(dataDir, "vectors.hnsw.meta"),
	}

	for _, path := range indexFiles {
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}
