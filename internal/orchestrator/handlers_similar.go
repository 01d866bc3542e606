package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codenav/codenavd/internal/cache"
	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/respbuilder"
)

// similarFileHit is similar_files's per-result shape.
type similarFileHit struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// scoreReason maps a MoreLikeThis score into a human-readable bucket per
// spec §4.8's similar_files post-processing.
func scoreReason(score float64) string {
	switch {
	case score > 0.8:
		return "very high similarity"
	case score > 0.6:
		return "high similarity"
	case score > 0.4:
		return "moderate similarity"
	case score > 0.2:
		return "low similarity"
	default:
		return "minimal similarity"
	}
}

// handleSimilarFiles runs a MoreLikeThis query against the source file,
// dropping the source document itself and anything below min_score.
func (o *Orchestrator) handleSimilarFiles(ctx context.Context, req *mcp.CallToolRequest, p SimilarFilesParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("similar_files", p.CommonParams)

	cached, key, hit := o.cacheLookup("similar_files", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}
	if p.Path == "" {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery("path is required"), rc, start), nil
	}

	minScore := p.MinScore
	if minScore <= 0 {
		minScore = 0.2
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := o.textIndex.MoreLikeThis(ctx, p.Path, limit*2)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	// MoreLikeThis reports zero hits both when the source path isn't indexed
	// and when it simply has no near neighbors; spec §4.8 treats both as a
	// successful empty response, not FileNotIndexed, so the unindexed case
	// only gets a softer insight rather than an error.
	sourceUnindexed := result.TotalHits == 0 && len(result.Hits) == 0

	items := make([]respbuilder.Item, 0, len(result.Hits))
	for _, h := range result.Hits {
		if h.Path == p.Path {
			continue
		}
		if h.Score < minScore {
			continue
		}
		items = append(items, similarFileHit{Path: h.Path, Score: h.Score, Reason: scoreReason(h.Score)})
		if len(items) >= limit {
			break
		}
	}

	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			return a.(similarFileHit).Score > b.(similarFileHit).Score
		},
		CleanFn: func(it respbuilder.Item) respbuilder.Item {
			h := it.(similarFileHit)
			h.Score = roundScore(h.Score)
			return h
		},
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			if sourceUnindexed {
				return []string{fmt.Sprintf("%s is not indexed; no similar files to report", shortenPath(p.Path))}
			}
			return []string{fmt.Sprintf("found %d file(s) similar to %s", total, shortenPath(p.Path))}
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}
