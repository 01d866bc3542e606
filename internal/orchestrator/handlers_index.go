package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/respbuilder"
)

// indexSummary is index_workspace's single-item result shape.
type indexSummary struct {
	Workspace     string `json:"workspace"`
	FilesIndexed  int    `json:"filesIndexed"`
	StaleRetried  int    `json:"staleRetried,omitempty"`
	VectorEnabled bool   `json:"vectorEnabled"`
}

// handleIndexWorkspace crawls the workspace (C7), retrying any files stale
// from a previous incomplete run, and reports the resulting counts. Unlike
// every other tool it never requires an index to already exist and is never
// served from cache.
func (o *Orchestrator) handleIndexWorkspace(ctx context.Context, req *mcp.CallToolRequest, p IndexWorkspaceParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("index_workspace", p.CommonParams)

	if o.indexer == nil {
		return nil, *respbuilder.BuildError(amerrors.InternalError("indexer not configured for this workspace", nil), rc, start), nil
	}

	if p.Force {
		if err := o.textIndex.Clear(); err != nil {
			return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeIndexFailed, err), rc, start), nil
		}
	}

	count, err := o.indexer.Crawl(ctx)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeIndexFailed, err), rc, start), nil
	}

	retried := o.indexer.StaleCount()
	if retried > 0 {
		o.indexer.RetryStale(ctx)
	}

	items := []respbuilder.Item{indexSummary{
		Workspace:     o.resolveWorkspace(p.Workspace),
		FilesIndexed:  count,
		StaleRetried:  retried,
		VectorEnabled: o.vector != nil,
	}}

	strategy := respbuilder.Strategy{
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			insights := []string{fmt.Sprintf("indexed %d file(s)", count)}
			if o.vector == nil {
				insights = append(insights, "vector index unavailable; semantic search is disabled for this workspace")
			}
			return insights
		},
		ActionFn: func(kept []respbuilder.Item, total int) []respbuilder.Action {
			return []respbuilder.Action{{
				Action:      "text_search",
				Description: "the workspace is ready to query",
				Priority:    1,
			}}
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	return nil, *resp, nil
}
