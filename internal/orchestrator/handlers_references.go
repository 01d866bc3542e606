package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codenav/codenavd/internal/cache"
	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/respbuilder"
	"github.com/codenav/codenavd/internal/textindex"
)

// referenceHit is find_references's per-result shape.
type referenceHit struct {
	Path    string  `json:"path"`
	Line    int     `json:"line"`
	Kind    string  `json:"kind"`
	Context string  `json:"context,omitempty"`
	Score   float64 `json:"score"`
}

// entryPointPattern flags symbols that look like process/request entry
// points (main functions, controller/handler methods).
var entryPointPattern = regexp.MustCompile(`(?i)^(main|handle|serve)[A-Za-z0-9_]*$|Controller$|Handler$`)

// handleFindReferences prefers the C2 fast path (GetIdentifiersByName) and
// falls back to a boolean C3 query excluding the symbol's own definitions,
// classifying each reference by kind per spec §4.8.
func (o *Orchestrator) handleFindReferences(ctx context.Context, req *mcp.CallToolRequest, p FindReferencesParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("find_references", p.CommonParams)

	cached, key, hit := o.cacheLookup("find_references", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}
	if p.Name == "" {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery("name is required"), rc, start), nil
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 200
	}

	var items []respbuilder.Item
	usedFallback := false

	identifiers, err := o.store.GetIdentifiersByName(ctx, p.Name, p.CaseSensitive)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	if len(identifiers) > 0 {
		for _, id := range identifiers {
			items = append(items, referenceHit{
				Path:    id.FilePath,
				Line:    id.Span.StartLine,
				Kind:    classifyReference(p.Name, id.CodeContext),
				Context: id.CodeContext,
				Score:   id.Confidence,
			})
			if len(items) >= limit {
				break
			}
		}
	} else {
		usedFallback = true
		result, serr := o.textIndex.SearchBoolean(ctx, textindex.BooleanQuery{
			Must:    []textindex.QueryClause{{Field: "content_symbols", Term: p.Name, Kind: textindex.ClauseTerm}},
			MustNot: []textindex.QueryClause{{Field: "type_names", Term: p.Name, Kind: textindex.ClauseTerm}},
		}, limit)
		if serr != nil {
			return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, serr), rc, start), nil
		}
		for _, h := range result.Hits {
			items = append(items, referenceHit{
				Path:    h.Path,
				Line:    h.Line,
				Kind:    classifyReference(p.Name, h.Snippet),
				Context: h.Snippet,
				Score:   h.Score,
			})
		}
	}

	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			ha, hb := a.(referenceHit), b.(referenceHit)
			if ha.Score != hb.Score {
				return ha.Score > hb.Score
			}
			return ha.Path < hb.Path
		},
		CleanFn: func(it respbuilder.Item) respbuilder.Item {
			h := it.(referenceHit)
			h.Score = roundScore(h.Score)
			return h
		},
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			insights := []string{fmt.Sprintf("found %d reference(s) to %q", total, p.Name)}
			if usedFallback {
				insights = append(insights, "resolved via full-text fallback (no identifier index hit); results may include false positives")
			}
			return insights
		},
		ExtensionFn: func(kept []respbuilder.Item, total int) map[string]any {
			if !p.GroupByFile {
				return nil
			}
			byFile := make(map[string][]referenceHit)
			for _, it := range kept {
				h := it.(referenceHit)
				byFile[h.Path] = append(byFile[h.Path], h)
			}
			return map[string]any{"groupedByFile": byFile}
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}

// callEdge is trace_call_path's per-result shape.
type callEdge struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Line       int    `json:"line"`
	Direction  string `json:"direction"` // "caller" or "callee"
	Depth      int    `json:"depth"`
	EntryPoint bool   `json:"entryPoint,omitempty"`
}

// handleTraceCallPath iteratively expands callers and callees of a symbol up
// to max_depth hops per direction, tagging likely entry points.
func (o *Orchestrator) handleTraceCallPath(ctx context.Context, req *mcp.CallToolRequest, p TraceCallPathParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("trace_call_path", p.CommonParams)

	cached, key, hit := o.cacheLookup("trace_call_path", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}
	if p.Name == "" {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery("name is required"), rc, start), nil
	}

	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	direction := p.Direction
	if direction == "" {
		direction = "both"
	}

	var edges []respbuilder.Item
	visited := map[string]bool{p.Name: true}

	if direction == "callees" || direction == "both" {
		edges = append(edges, o.traceCallees(ctx, p.Name, maxDepth, visited)...)
	}
	if direction == "callers" || direction == "both" {
		edges = append(edges, o.traceCallers(ctx, p.Name, maxDepth, visited)...)
	}

	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			return a.(callEdge).Depth < b.(callEdge).Depth
		},
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			return []string{fmt.Sprintf("traced %d call edge(s) for %q up to depth %d", total, p.Name, maxDepth)}
		},
	}

	resp := o.builder.Build(ctx, edges, strategy, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}

// traceCallees walks downward: symbols this symbol's identifiers reference.
func (o *Orchestrator) traceCallees(ctx context.Context, root string, maxDepth int, visited map[string]bool) []respbuilder.Item {
	var edges []respbuilder.Item
	frontier := []string{root}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, name := range frontier {
			symbols, err := o.store.GetSymbolsByName(ctx, name, false)
			if err != nil {
				continue
			}
			for _, sym := range symbols {
				ids, err := o.store.GetIdentifiersByContainingSymbol(ctx, sym.ID)
				if err != nil {
					continue
				}
				for _, id := range ids {
					if id.TargetSymbolID == "" {
						continue
					}
					target, err := o.store.GetSymbolByID(ctx, id.TargetSymbolID)
					if err != nil || target == nil || visited[target.Name] {
						continue
					}
					visited[target.Name] = true
					edges = append(edges, callEdge{
						Name:       target.Name,
						Path:       target.FilePath,
						Line:       target.Span.StartLine,
						Direction:  "callee",
						Depth:      depth,
						EntryPoint: entryPointPattern.MatchString(target.Name),
					})
					next = append(next, target.Name)
				}
			}
		}
		frontier = next
	}
	return edges
}

// traceCallers walks upward: symbols whose identifiers resolve to this
// symbol.
func (o *Orchestrator) traceCallers(ctx context.Context, root string, maxDepth int, visited map[string]bool) []respbuilder.Item {
	var edges []respbuilder.Item
	frontier := []string{root}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, name := range frontier {
			ids, err := o.store.GetIdentifiersByName(ctx, name, false)
			if err != nil {
				continue
			}
			for _, id := range ids {
				if id.ContainingSymbolID == "" {
					continue
				}
				containing, err := o.store.GetSymbolByID(ctx, id.ContainingSymbolID)
				if err != nil || containing == nil || visited[containing.Name] {
					continue
				}
				visited[containing.Name] = true
				edges = append(edges, callEdge{
					Name:       containing.Name,
					Path:       containing.FilePath,
					Line:       containing.Span.StartLine,
					Direction:  "caller",
					Depth:      depth,
					EntryPoint: entryPointPattern.MatchString(containing.Name),
				})
				next = append(next, containing.Name)
			}
		}
		frontier = next
	}
	return edges
}
