package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codenav/codenavd/internal/cache"
	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/respbuilder"
	"github.com/codenav/codenavd/internal/store"
)

// symbolHit is the per-result shape symbol_search reduces.
type symbolHit struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Path       string  `json:"path"`
	Line       int     `json:"line"`
	Signature  string  `json:"signature,omitempty"`
	DocComment string  `json:"docComment,omitempty"`
	Score      float64 `json:"score"`
}

func toSymbolHit(s *store.Symbol, score float64) symbolHit {
	return symbolHit{
		Name:       s.Name,
		Kind:       string(s.Kind),
		Path:       s.FilePath,
		Line:       s.Span.StartLine,
		Signature:  s.Signature,
		DocComment: s.DocComment,
		Score:      score,
	}
}

// handleSymbolSearch resolves symbols by name (exact or wildcard), ranked by
// score then name length (shorter, more specific matches first).
func (o *Orchestrator) handleSymbolSearch(ctx context.Context, req *mcp.CallToolRequest, p SymbolSearchParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("symbol_search", p.CommonParams)

	cached, key, hit := o.cacheLookup("symbol_search", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}
	if p.Name == "" {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery("name is required"), rc, start), nil
	}

	symbols, err := o.store.GetSymbolsByName(ctx, p.Name, p.CaseSensitive)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}

	items := make([]respbuilder.Item, 0, len(symbols))
	for _, s := range symbols {
		if p.Kind != "" && string(s.Kind) != p.Kind {
			continue
		}
		items = append(items, toSymbolHit(s, s.Confidence))
		if len(items) >= limit*4 {
			break
		}
	}

	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			ha, hb := a.(symbolHit), b.(symbolHit)
			if ha.Score != hb.Score {
				return ha.Score > hb.Score
			}
			return len(ha.Name) < len(hb.Name)
		},
		CleanFn: func(it respbuilder.Item) respbuilder.Item {
			h := it.(symbolHit)
			h.Score = roundScore(h.Score)
			return h
		},
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			return []string{fmt.Sprintf("found %d symbol(s) named %q", total, p.Name)}
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}

// definitionResult is goto_definition's single-item result shape.
type definitionResult struct {
	Name        string             `json:"name"`
	Kind        string             `json:"kind"`
	Path        string             `json:"path"`
	Line        int                `json:"line"`
	Signature   string             `json:"signature,omitempty"`
	DocComment  string             `json:"docComment,omitempty"`
	ParentID    string             `json:"parentId,omitempty"`
	Visibility  string             `json:"visibility,omitempty"`
	Snippet     string             `json:"snippet,omitempty"`
	Inheritance []string           `json:"inheritance,omitempty"`
	Parameters  []store.Parameter  `json:"parameters,omitempty"`
}

// handleGotoDefinition resolves a symbol name to its single highest-scoring
// definition (confidence, then shortest path as a tiebreak).
func (o *Orchestrator) handleGotoDefinition(ctx context.Context, req *mcp.CallToolRequest, p GotoDefinitionParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("goto_definition", p.CommonParams)

	cached, key, hit := o.cacheLookup("goto_definition", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}
	if p.Name == "" {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery("name is required"), rc, start), nil
	}

	symbols, err := o.store.GetSymbolsByName(ctx, p.Name, p.CaseSensitive)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}
	if len(symbols) == 0 {
		return nil, *respbuilder.BuildError(amerrors.NewFileNotIndexed(p.Name), rc, start), nil
	}

	best := symbols[0]
	for _, s := range symbols[1:] {
		if s.Confidence > best.Confidence || (s.Confidence == best.Confidence && len(s.FilePath) < len(best.FilePath)) {
			best = s
		}
	}

	var snippet string
	if rc.ResponseMode != respbuilder.ModeSummary {
		if file, err := o.store.GetFile(ctx, best.FilePath); err == nil && file != nil {
			snippet = snippetFromContent(file.Content, best.Span.StartLine, best.Span.EndLine)
		}
	}

	items := []respbuilder.Item{definitionResult{
		Name:        best.Name,
		Kind:        string(best.Kind),
		Path:        best.FilePath,
		Line:        best.Span.StartLine,
		Signature:   best.Signature,
		DocComment:  best.DocComment,
		ParentID:    best.ParentID,
		Visibility:  best.Visibility,
		Snippet:     snippet,
		Inheritance: best.Inheritance,
		Parameters:  best.Parameters,
	}}

	strategy := respbuilder.Strategy{
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			if len(symbols) > 1 {
				return []string{fmt.Sprintf("%d candidate definition(s) found; returned the highest-confidence one", len(symbols))}
			}
			return nil
		},
		ActionFn: func(kept []respbuilder.Item, total int) []respbuilder.Action {
			return []respbuilder.Action{{
				Action:      "find_references",
				Description: "list every reference to this symbol",
				Priority:    2,
				Parameters:  map[string]any{"name": best.Name},
			}}
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}
