// Package orchestrator implements the query orchestrator (C8): one
// operation per tool, each a "request in -> response out" pipeline wiring
// together the structured store (C2), text index (C3), vector index (C4),
// query preprocessor (C5), scorer (C6), indexer (C7), response cache (C9),
// resource store (C10), token estimator (C11) and response builder (C12).
//
// Every handler follows the same shape the teacher's internal/mcp.Server
// used for its four tools: a typed input struct, a cache lookup, the tier
// pipeline, and a respbuilder.Response tailored by a Strategy. It is
// registered with the MCP SDK the same way (mcp.AddTool + typed handler
// func), just for twelve tools instead of four.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codenav/codenavd/internal/cache"
	"github.com/codenav/codenavd/internal/config"
	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/indexer"
	"github.com/codenav/codenavd/internal/resourcestore"
	"github.com/codenav/codenavd/internal/respbuilder"
	"github.com/codenav/codenavd/internal/scorer"
	"github.com/codenav/codenavd/internal/store"
	"github.com/codenav/codenavd/internal/textindex"
	"github.com/codenav/codenavd/internal/vectorindex"
	"github.com/codenav/codenavd/pkg/version"
)

// Orchestrator is the C8 query orchestrator for one workspace.
type Orchestrator struct {
	mcp *mcp.Server

	cfg      *config.Config
	rootPath string

	store     store.Store
	textIndex *textindex.Index
	vector    vectorindex.Index // may be nil; callers nil-check per §9
	indexer   *indexer.Indexer
	scorer    *scorer.Scorer
	cache     *cache.Cache // may be nil to disable caching
	resources *resourcestore.Store
	builder   *respbuilder.Builder

	logger *slog.Logger

	mu sync.RWMutex
}

// Deps bundles the capability handles an Orchestrator wires together. Store,
// TextIndex and Builder are required; Vector, Cache and Resources may be
// nil to disable their respective capability.
type Deps struct {
	Config    *config.Config
	RootPath  string
	Store     store.Store
	TextIndex *textindex.Index
	Vector    vectorindex.Index
	Indexer   *indexer.Indexer
	Cache     *cache.Cache
	Resources *resourcestore.Store
	Logger    *slog.Logger
}

// New constructs an Orchestrator and registers all twelve tools with the
// embedded MCP server.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.TextIndex == nil {
		return nil, fmt.Errorf("text index is required")
	}
	if deps.Config == nil {
		deps.Config = config.NewConfig()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:       deps.Config,
		rootPath:  deps.RootPath,
		store:     deps.Store,
		textIndex: deps.TextIndex,
		vector:    deps.Vector,
		indexer:   deps.Indexer,
		cache:     deps.Cache,
		resources: deps.Resources,
		scorer: scorer.New(scorer.WithConfiguredFactors(scorer.ScoringParams{
			TestPathDeboost:           deps.Config.Scoring.TestPathDeboost,
			FilenameMatchBoost:        deps.Config.Scoring.FilenameMatchBoost,
			ExactMatchBoost:           deps.Config.Scoring.ExactMatchBoost,
			RecencyHalfLife:           deps.Config.Scoring.RecencyHalfLife,
			RecencyBoostCap:           deps.Config.Scoring.RecencyBoostCap,
			MockImplementationDeboost: deps.Config.Scoring.MockImplementationDeboost,
		})),
		builder:   respbuilder.New(nil, deps.Resources),
		logger:    deps.Logger,
	}

	o.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "codenavd",
		Version: version.Version,
	}, nil)

	o.registerTools()
	return o, nil
}

// MCPServer returns the underlying MCP server instance.
func (o *Orchestrator) MCPServer() *mcp.Server {
	return o.mcp
}

// Serve runs the MCP server over the given transport ("stdio" is the only
// one implemented, matching the teacher).
func (o *Orchestrator) Serve(ctx context.Context, transport string) error {
	o.logger.Info("starting MCP server", slog.String("transport", transport))
	switch transport {
	case "stdio", "":
		err := o.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			o.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases orchestrator-owned resources. The store/text-index/vector
// index are owned by the caller and are not closed here.
func (o *Orchestrator) Close() error {
	return nil
}

// registerTools registers all twelve tools named in spec §6.
func (o *Orchestrator) registerTools() {
	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "index_workspace",
		Description: "Build or refresh the persistent index for a workspace. Run this first; every other tool requires an index to exist.",
	}, o.handleIndexWorkspace)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "text_search",
		Description: "Full-text search across indexed file contents. Auto-classifies the query as standard/symbol/pattern and ranks hits with path, filename, recency, and exact-match factors.",
	}, o.handleTextSearch)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "file_search",
		Description: "Glob or regex search over indexed file paths. Optionally collapses matches to their unique parent directories.",
	}, o.handleFileSearch)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "directory_search",
		Description: "Find directories (derived from indexed files) whose path segments match a glob pattern.",
	}, o.handleDirectorySearch)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "recent_files",
		Description: "List files modified within a time window (e.g. \"1d\", \"30min\").",
	}, o.handleRecentFiles)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "symbol_search",
		Description: "Find symbols (classes, functions, methods, ...) by name, exact or wildcard, ranked by score then name length.",
	}, o.handleSymbolSearch)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "goto_definition",
		Description: "Resolve a symbol name to its highest-scoring definition, with signature, snippet and parent/inheritance info.",
	}, o.handleGotoDefinition)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "find_references",
		Description: "Find every reference to a symbol, classified by reference kind (call, type-instantiation, inheritance, ...), excluding the defining file.",
	}, o.handleFindReferences)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "trace_call_path",
		Description: "Iteratively expand callers and callees of a symbol up to a depth limit, flagging entry points.",
	}, o.handleTraceCallPath)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "similar_files",
		Description: "Find files whose content resembles a given file, via a MoreLikeThis query over the text index.",
	}, o.handleSimilarFiles)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "search_and_replace",
		Description: "Preview or apply a literal or regex find-and-replace across indexed files, with per-file advisory locking in apply mode.",
	}, o.handleSearchAndReplace)

	mcp.AddTool(o.mcp, &mcp.Tool{
		Name:        "smart_refactor",
		Description: "Rename a symbol across its definition and every resolved reference, built atop find_references and search_and_replace.",
	}, o.handleSmartRefactor)

	o.logger.Info("registered MCP tools", slog.Int("count", 12))
}

// ---------------------------------------------------------------------
// Shared request plumbing
// ---------------------------------------------------------------------

// CommonParams are the fields every tool parameter struct embeds.
type CommonParams struct {
	Workspace    string `json:"workspace,omitempty" jsonschema:"absolute path of the workspace; defaults to the server's configured root"`
	MaxTokens    int    `json:"max_tokens,omitempty" jsonschema:"response token budget; defaults to the server's configured default"`
	ResponseMode string `json:"response_mode,omitempty" jsonschema:"summary, full, or adaptive (default)"`
	NoCache      bool   `json:"no_cache,omitempty" jsonschema:"bypass the response cache for this call"`
}

// buildContext converts CommonParams plus a tool name into a respbuilder
// Context, applying the server's default and per-tool token budgets.
func (o *Orchestrator) buildContext(toolName string, p CommonParams) respbuilder.Context {
	limit := p.MaxTokens
	if limit <= 0 {
		if perTool, ok := o.cfg.Budgets.PerTool[toolName]; ok && perTool > 0 {
			limit = perTool
		} else {
			limit = o.cfg.Budgets.DefaultMaxTokens
		}
	}
	mode := respbuilder.ModeAdaptive
	switch p.ResponseMode {
	case string(respbuilder.ModeSummary):
		mode = respbuilder.ModeSummary
	case string(respbuilder.ModeFull):
		mode = respbuilder.ModeFull
	}
	return respbuilder.Context{
		ResponseMode:     mode,
		TokenLimit:       limit,
		StoreFullResults: true,
		ToolName:         toolName,
	}
}

// cacheLookup checks C9 for a cached response to (toolName, params), unless
// no_cache is set. Returns (response, key, hit).
func (o *Orchestrator) cacheLookup(toolName string, params any, noCache bool) (*respbuilder.Response, string, bool) {
	if o.cache == nil || noCache {
		return nil, "", false
	}
	key, err := cache.Key(toolName, params)
	if err != nil {
		return nil, "", false
	}
	blob, ok := o.cache.Get(key)
	if !ok {
		return nil, key, false
	}
	var resp respbuilder.Response
	if err := jsonUnmarshal(blob, &resp); err != nil {
		return nil, key, false
	}
	return &resp, key, true
}

// cacheStore writes a successful response to C9, bypassed for failures and
// for any response built from a cancelled operation (per §5's cancellation
// rule, callers simply never call cacheStore in that path).
func (o *Orchestrator) cacheStore(key string, resp *respbuilder.Response, priority cache.Priority) {
	if o.cache == nil || key == "" || resp == nil || !resp.Success {
		return
	}
	blob, err := jsonMarshal(resp)
	if err != nil {
		return
	}
	ttl := parseDurationOr(o.cfg.Cache.DefaultTTL, 5*time.Minute)
	if priority == cache.PriorityHigh {
		ttl = parseDurationOr(o.cfg.Cache.HighPriorityTTL, 15*time.Minute)
	}
	o.cache.Set(key, blob, ttl, priority)
}

// requireIndex fails fast with IndexMissing when the workspace has never
// been crawled (zero documents in the text index).
func (o *Orchestrator) requireIndex(ctx context.Context) error {
	count, err := o.textIndex.DocumentCount()
	if err != nil {
		return amerrors.Wrap(amerrors.ErrCodeIndexFailed, err)
	}
	if count == 0 {
		return amerrors.NewIndexMissing(o.rootPath)
	}
	return nil
}

// resolveWorkspace defaults an empty workspace parameter to the
// orchestrator's configured root.
func (o *Orchestrator) resolveWorkspace(path string) string {
	if path == "" {
		return o.rootPath
	}
	return path
}
