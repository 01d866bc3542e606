package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codenav/codenavd/internal/orchestrator"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Start the MCP server over stdio for an already-indexed workspace",
		Long: `Start codenavd's MCP server for a workspace. The workspace must already
be indexed (see 'codenavd index'); serve never builds an index itself.

MCP protocol requires stdout to carry nothing but JSON-RPC messages, so all
logging goes to file, not stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			root := resolveWorkspaceRoot(path)

			deps, err := buildWorkspaceDeps(root)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close() }()

			return serveWorkspace(ctx, deps, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport (only stdio is implemented)")

	return cmd
}

// serveWorkspace constructs the C8 query orchestrator from deps and runs it
// until ctx is cancelled.
func serveWorkspace(ctx context.Context, deps *workspaceDeps, transport string) error {
	logger := slog.Default()

	orch, err := orchestrator.New(orchestrator.Deps{
		Config:    deps.cfg,
		RootPath:  deps.root,
		Store:     deps.store,
		TextIndex: deps.textIndex,
		Vector:    deps.vector,
		Indexer:   deps.indexer,
		Cache:     deps.cache,
		Resources: deps.resources,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to construct orchestrator: %w", err)
	}
	defer func() { _ = orch.Close() }()

	if deps.watcher != nil {
		go watchWorkspace(ctx, deps, logger)
	}

	return orch.Serve(ctx, transport)
}

// watchWorkspace starts the workspace's file watcher and feeds every
// debounced event batch to the indexer for incremental re-indexing, keeping
// the served MCP tools current without requiring a re-run of `codenavd index`.
// It runs until ctx is cancelled or the watcher fails to start, logging
// rather than aborting serve on either outcome.
func watchWorkspace(ctx context.Context, deps *workspaceDeps, logger *slog.Logger) {
	events := deps.watcher.Events()
	watchErrs := deps.watcher.Errors()

	startErr := make(chan error, 1)
	go func() { startErr <- deps.watcher.Start(ctx, deps.root) }()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-startErr:
			if err != nil && ctx.Err() == nil {
				logger.Warn("file watcher stopped", slog.String("error", err.Error()))
				return
			}
		case batch, ok := <-events:
			if !ok {
				return
			}
			deps.indexer.HandleEvents(ctx, batch)
		case err, ok := <-watchErrs:
			if !ok {
				continue
			}
			logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}
