package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codenav/codenavd/internal/cache"
	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/queryprep"
	"github.com/codenav/codenavd/internal/respbuilder"
	"github.com/codenav/codenavd/internal/scorer"
	"github.com/codenav/codenavd/internal/store"
	"github.com/codenav/codenavd/internal/textindex"
)

// textHit is the per-result shape text_search reduces via respbuilder.
type textHit struct {
	Path         string  `json:"path"`
	Score        float64 `json:"score"`
	Line         int     `json:"line,omitempty"`
	Snippet      string  `json:"snippet,omitempty"`
	LastModified string  `json:"lastModified,omitempty"`
}

// hitAdapter satisfies scorer.Hit for a textindex.Hit.
type hitAdapter struct{ h textindex.Hit }

func (a hitAdapter) Path() string            { return a.h.Path }
func (a hitAdapter) Content() string         { return a.h.Snippet }
func (a hitAdapter) LastModified() time.Time { return a.h.LastModified }
func (a hitAdapter) IsExactPhraseMatch(query string, caseSensitive bool) bool {
	snippet := a.h.Snippet
	if !caseSensitive {
		snippet = strings.ToLower(snippet)
		query = strings.ToLower(query)
	}
	return query != "" && strings.Contains(snippet, query)
}

// handleTextSearch is the tool named first in spec §6: cache lookup, index
// presence check, C5 preprocessing, C3 search (optionally narrowed to a
// symbol/pattern field), C6 scoring, then C12 reduction.
func (o *Orchestrator) handleTextSearch(ctx context.Context, req *mcp.CallToolRequest, p TextSearchParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("text_search", p.CommonParams)

	cached, key, hit := o.cacheLookup("text_search", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}

	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}

	mode := queryprep.Mode(p.Mode)
	if mode == "" {
		mode = queryprep.ModeAuto
	}
	prep, err := queryprep.Process(p.Query, mode)
	if err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}

	maxHits := rc.TokenLimit / 20
	if maxHits < 10 {
		maxHits = 10
	}
	if maxHits > 500 {
		maxHits = 500
	}

	var result textindex.SearchResult
	if prep.TargetField == queryprep.FieldContent {
		result, err = o.textIndex.Search(ctx, prep.ProcessedQuery, maxHits, true)
	} else {
		result, err = o.textIndex.SearchBoolean(ctx, textindex.BooleanQuery{
			Must: []textindex.QueryClause{{Field: string(prep.TargetField), Term: prep.ProcessedQuery, Kind: textindex.ClauseTerm}},
		}, maxHits)
	}
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	q := scorer.Query{Text: p.Query, Tokens: strings.Fields(p.Query), CaseSensitive: p.CaseSensitive, IsTypeName: prep.DetectedMode == queryprep.ModeSymbol}
	items := make([]respbuilder.Item, 0, len(result.Hits))
	for _, h := range result.Hits {
		score := o.scorer.Score(h.Score, hitAdapter{h}, q)
		items = append(items, textHit{
			Path:         h.Path,
			Score:        score,
			Line:         h.Line,
			Snippet:      h.Snippet,
			LastModified: h.LastModified.UTC().Format(time.RFC3339),
		})
	}

	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			return a.(textHit).Score > b.(textHit).Score
		},
		CleanFn: func(it respbuilder.Item) respbuilder.Item {
			h := it.(textHit)
			h.Score = roundScore(h.Score)
			return h
		},
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			insights := []string{fmt.Sprintf("matched %d file(s) via %s mode (%s)", total, prep.DetectedMode, prep.Reason)}
			if truncated {
				insights = append(insights, "result set truncated to fit the token budget; fetch the resource URI for the rest")
			}
			return insights
		},
		ActionFn: func(kept []respbuilder.Item, total int) []respbuilder.Action {
			if total == 0 {
				return []respbuilder.Action{{Action: "broaden_query", Description: "try a shorter or less specific query", Priority: 1}}
			}
			return nil
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	o.cacheStore(key, resp, cachePriorityFor(result.TotalHits))
	return nil, *resp, nil
}

// fileHit is the per-result shape file_search and recent_files reduce.
type fileHit struct {
	Path         string `json:"path"`
	LastModified string `json:"lastModified,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

func (o *Orchestrator) handleFileSearch(ctx context.Context, req *mcp.CallToolRequest, p FileSearchParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("file_search", p.CommonParams)

	cached, key, hit := o.cacheLookup("file_search", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 200
	}

	var files []*store.File
	var err error
	if p.UseRegex {
		re, cerr := regexp.Compile("(?i)" + p.Pattern)
		if cerr != nil {
			return nil, *respbuilder.BuildError(amerrors.NewInvalidPattern("invalid regex pattern: "+p.Pattern), rc, start), nil
		}
		var all []*store.File
		all, err = o.store.SearchFilesByPattern(ctx, "*", p.SearchFullPath, p.ExtensionFilter, 0)
		if err == nil {
			for _, f := range all {
				target := f.Path
				if !p.SearchFullPath {
					target = shortenPath(f.Path)
				}
				if re.MatchString(target) {
					files = append(files, f)
					if len(files) >= limit {
						break
					}
				}
			}
		}
	} else {
		files, err = o.store.SearchFilesByPattern(ctx, p.Pattern, p.SearchFullPath, p.ExtensionFilter, limit)
	}
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	if p.IncludeDirectories {
		seen := map[string]bool{}
		var dirs []respbuilder.Item
		for _, f := range files {
			d := parentDir(f.Path)
			if !seen[d] {
				seen[d] = true
				dirs = append(dirs, fileHit{Path: d})
			}
		}
		resp := o.builder.Build(ctx, dirs, respbuilder.Strategy{}, rc)
		o.cacheStore(key, resp, cache.PriorityLow)
		return nil, *resp, nil
	}

	items := make([]respbuilder.Item, 0, len(files))
	for _, f := range files {
		items = append(items, fileHit{Path: f.Path, LastModified: time.Unix(f.LastModified, 0).UTC().Format(time.RFC3339), Size: f.Size})
	}
	resp := o.builder.Build(ctx, items, respbuilder.Strategy{}, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}

func (o *Orchestrator) handleDirectorySearch(ctx context.Context, req *mcp.CallToolRequest, p DirectorySearchParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("directory_search", p.CommonParams)

	cached, key, hit := o.cacheLookup("directory_search", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 200
	}
	matches, err := o.store.SearchDirectories(ctx, p.Pattern, p.IncludeHidden, limit)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	items := make([]respbuilder.Item, 0, len(matches))
	for _, m := range matches {
		items = append(items, m)
	}
	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			return a.(store.DirectoryMatch).FileCount > b.(store.DirectoryMatch).FileCount
		},
	}
	resp := o.builder.Build(ctx, items, strategy, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}

func (o *Orchestrator) handleRecentFiles(ctx context.Context, req *mcp.CallToolRequest, p RecentFilesParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("recent_files", p.CommonParams)

	cached, key, hit := o.cacheLookup("recent_files", p, p.NoCache)
	if hit {
		return nil, *cached, nil
	}
	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}

	window, err := parseWindow(p.TimeFrame)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery(err.Error()), rc, start), nil
	}
	cutoff := time.Now().Add(-window).Unix()

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	files, err := o.store.RecentFiles(ctx, cutoff, limit, p.ExtensionFilter)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	items := make([]respbuilder.Item, 0, len(files))
	for _, f := range files {
		items = append(items, fileHit{Path: f.Path, LastModified: time.Unix(f.LastModified, 0).UTC().Format(time.RFC3339), Size: f.Size})
	}
	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			return a.(fileHit).LastModified > b.(fileHit).LastModified
		},
	}
	resp := o.builder.Build(ctx, items, strategy, rc)
	o.cacheStore(key, resp, cache.PriorityLow)
	return nil, *resp, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return path
}

// cachePriorityFor marks large result sets high priority so they get the
// longer TTL (they are expensive to recompute and slow to go stale).
func cachePriorityFor(totalHits uint64) cache.Priority {
	if totalHits > 100 {
		return cache.PriorityHigh
	}
	return cache.PriorityLow
}
