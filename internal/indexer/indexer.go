// Package indexer implements the initial crawl, incremental watch handling,
// and cross-tier consistency bookkeeping for C7: the component that keeps
// the structured store (C2), text index (C3), and vector index (C4) in sync
// for a single workspace.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/codenav/codenavd/internal/cache"
	"github.com/codenav/codenavd/internal/config"
	amanerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/extractor"
	"github.com/codenav/codenavd/internal/scanner"
	"github.com/codenav/codenavd/internal/store"
	"github.com/codenav/codenavd/internal/textindex"
	"github.com/codenav/codenavd/internal/watcher"
)

// DefaultMaxFileSize caps how large a file may be before the crawl skips it.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// DefaultMaxRetryAttempts bounds the exponential-backoff retry for a path
// whose C3/C4 propagation failed after its C2 commit.
const DefaultMaxRetryAttempts = 6

// DefaultRetryBaseDelay is the first backoff delay; it doubles each attempt.
const DefaultRetryBaseDelay = 2 * time.Second

// Embedder is the capability-handle the indexer uses to compute symbol
// embeddings; nil (or IsAvailable()==false) disables C4 population without
// touching any call site, mirroring the vector-index capability pattern.
type Embedder interface {
	IsAvailable() bool
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config configures an Indexer for one workspace.
type Config struct {
	RootPath        string
	Store           store.Store
	TextIndex       *textindex.Index
	Extractor       *extractor.Client
	Scanner         *scanner.Scanner
	Embedder        Embedder // may be nil
	ExcludePatterns []string
	MaxFileSize     int64 // 0 => DefaultMaxFileSize
	Workers         int   // 0 => scanner default (NumCPU)
	// Submodules enables git submodule discovery during Crawl; nil disables it.
	Submodules *config.SubmoduleConfig
	// Cache is invalidated per-workspace after every write this Indexer
	// commits, so a cached response never outlives the index it was read
	// from (spec §4.7/§4.9). May be nil to disable caching.
	Cache *cache.Cache
}

// Indexer owns the per-workspace crawl, watch-event handling, and the
// retry queue for C3/C4 writes that fell behind a committed C2 write.
type Indexer struct {
	cfg   Config
	locks *pathLocks

	retryMu sync.Mutex
	retry   map[string]*retryState
}

type retryState struct {
	attempts    int
	nextAttempt time.Time
}

// New creates an Indexer. The caller owns the lifetime of cfg.Store and
// cfg.TextIndex.
func New(cfg Config) *Indexer {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &Indexer{
		cfg:   cfg,
		locks: newPathLocks(),
		retry: make(map[string]*retryState),
	}
}

// Crawl walks the workspace and indexes every eligible file, fanning work
// out across cfg.Workers goroutines (cross-path writes run in parallel;
// same-path writes are still serialized by the per-path lock).
func (ix *Indexer) Crawl(ctx context.Context) (int, error) {
	opts := &scanner.ScanOptions{
		RootDir:          ix.cfg.RootPath,
		ExcludePatterns:  ix.cfg.ExcludePatterns,
		RespectGitignore: true,
		Workers:          ix.cfg.Workers,
		MaxFileSize:      ix.cfg.MaxFileSize,
		Submodules:       ix.cfg.Submodules,
	}
	resultChan, err := ix.cfg.Scanner.Scan(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("start scan: %w", err)
	}

	workers := ix.cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	var wg sync.WaitGroup
	var indexed int64
	var mu sync.Mutex
	sem := make(chan struct{}, workers)

	for result := range resultChan {
		if result.Error != nil {
			slog.Warn("scan error during crawl", slog.String("error", result.Error.Error()))
			continue
		}
		if result.File == nil || result.File.IsGenerated {
			continue
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return int(indexed), ctx.Err()
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := ix.IndexFile(ctx, path); err != nil {
				slog.Warn("failed to index file during crawl", slog.String("path", path), slog.String("error", err.Error()))
				return
			}
			mu.Lock()
			indexed++
			mu.Unlock()
		}(result.File.Path)
	}
	wg.Wait()

	ix.invalidateCache()
	return int(indexed), nil
}

// HandleEvents processes a batch of coalesced watcher events, invalidating
// the response cache once for the whole batch rather than once per event.
func (ix *Indexer) HandleEvents(ctx context.Context, events []watcher.FileEvent) {
	wrote := false
	for _, event := range events {
		if event.IsDir {
			continue
		}
		var err error
		switch event.Operation {
		case watcher.OpCreate, watcher.OpModify:
			err = ix.IndexFile(ctx, event.Path)
			wrote = wrote || err == nil
		case watcher.OpDelete:
			err = ix.RemoveFile(ctx, event.Path)
			wrote = wrote || err == nil
		case watcher.OpRename:
			// The watcher resolves renames into a delete + create pair.
		case watcher.OpGitignoreChange, watcher.OpConfigChange:
			if event.Operation == watcher.OpGitignoreChange && ix.cfg.Scanner != nil {
				ix.cfg.Scanner.InvalidateGitignoreCache()
			}
			_, err = ix.Crawl(ctx) // Crawl invalidates the cache itself.
		}
		if err != nil {
			slog.Warn("failed to process file event",
				slog.String("path", event.Path),
				slog.String("operation", event.Operation.String()),
				slog.String("error", err.Error()))
		}
	}
	if wrote {
		ix.invalidateCache()
	}
}

// invalidateCache purges every cached response for this workspace. A nil
// cache (caching disabled) makes this a no-op.
func (ix *Indexer) invalidateCache() {
	if ix.cfg.Cache != nil {
		ix.cfg.Cache.InvalidateAll()
	}
}

// IndexFile reads, extracts, and upserts a single path across C2, C3, and
// C4. Writes for the same path are serialized by a per-path lock; the
// consistency contract in spec §4.7 is: C2 commits first, then C3 is
// replaced; if C3 fails, the path is queued for backoff retry and an
// IndexInconsistency diagnostic is logged, but the caller never sees an
// error for that sub-step.
func (ix *Indexer) IndexFile(ctx context.Context, relPath string) error {
	release := ix.locks.acquire(relPath)
	defer release()

	absPath := joinRoot(ix.cfg.RootPath, relPath)

	info, err := os.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		slog.Debug("skipping symlink", slog.String("path", relPath))
		return nil
	}
	if info.Size() > ix.cfg.MaxFileSize {
		slog.Warn("skipping oversized file", slog.String("path", relPath), slog.Int64("size", info.Size()))
		return nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}
	if isBinaryContent(content) {
		return nil
	}

	language := scanner.DetectLanguage(relPath)

	result, err := ix.cfg.Extractor.Extract(ctx, absPath, language)
	if err != nil {
		var extractorFailure *amanerrors.AmanError
		if errors.As(err, &extractorFailure) {
			slog.Warn("extractor failed, skipping file", slog.String("path", relPath), slog.String("error", err.Error()))
			return nil
		}
		return fmt.Errorf("extract %s: %w", relPath, err)
	}

	hash := hashContent(content)

	params := store.UpsertFileParams{
		Path:         relPath,
		Content:      string(content),
		Language:     language,
		Hash:         hash,
		Size:         info.Size(),
		LastModified: info.ModTime().Unix(),
		Symbols:      result.Symbols,
		Identifiers:  result.Identifiers,
		Embeddings:   ix.computeEmbeddings(ctx, relPath, result.Symbols),
	}

	if err := ix.cfg.Store.UpsertFile(ctx, params); err != nil {
		return fmt.Errorf("upsert file %s: %w", relPath, err)
	}

	doc := textindex.Document{
		Path:            relPath,
		FileName:        baseName(relPath),
		Content:         string(content),
		ContentSymbols:  symbolNamesJoined(result.Symbols, result.Identifiers),
		ContentPatterns: string(content),
		TypeNames:       typeNames(result.Symbols),
		LastModified:    info.ModTime(),
	}
	if err := ix.cfg.TextIndex.UpsertDocument(ctx, doc); err != nil {
		ix.markStale(relPath)
		slog.Warn("text index write failed after structured-store commit, queued for retry",
			slog.String("path", relPath), slog.String("error", err.Error()))
		return nil
	}
	ix.clearStale(relPath)
	return nil
}

// RemoveFile deletes a path from C2 (cascading to symbols/identifiers/
// embeddings) and C3.
func (ix *Indexer) RemoveFile(ctx context.Context, relPath string) error {
	release := ix.locks.acquire(relPath)
	defer release()

	if err := ix.cfg.Store.DeleteFile(ctx, relPath); err != nil {
		return fmt.Errorf("delete file %s: %w", relPath, err)
	}
	if err := ix.cfg.TextIndex.DeleteDocument(relPath); err != nil {
		ix.markStale(relPath)
		slog.Warn("text index delete failed after structured-store commit, queued for retry",
			slog.String("path", relPath), slog.String("error", err.Error()))
		return nil
	}
	ix.clearStale(relPath)
	return nil
}

// computeEmbeddings computes one embedding per symbol (keyed by symbol ID)
// using the symbol's signature plus doc comment. Embedding failures are
// logged and degrade to "no embeddings for this symbol", never aborting the
// file upsert (spec §4.4/§4.7).
func (ix *Indexer) computeEmbeddings(ctx context.Context, relPath string, symbols []*store.Symbol) []*store.SymbolEmbedding {
	if ix.cfg.Embedder == nil || !ix.cfg.Embedder.IsAvailable() || len(symbols) == 0 {
		return nil
	}

	embeddings := make([]*store.SymbolEmbedding, 0, len(symbols))
	for _, sym := range symbols {
		text := sym.Signature
		if sym.DocComment != "" {
			text = sym.DocComment + "\n" + text
		}
		if text == "" {
			text = sym.Name
		}

		vec, err := ix.cfg.Embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("embedding failed for symbol, continuing without it",
				slog.String("path", relPath), slog.String("symbol", sym.Name), slog.String("error", err.Error()))
			continue
		}
		embeddings = append(embeddings, &store.SymbolEmbedding{SymbolID: sym.ID, Embedding: vec})
	}
	return embeddings
}

// markStale queues path for C3/C4 reconciliation retry with exponential
// backoff, capped at DefaultMaxRetryAttempts.
func (ix *Indexer) markStale(path string) {
	ix.retryMu.Lock()
	defer ix.retryMu.Unlock()

	state, ok := ix.retry[path]
	if !ok {
		state = &retryState{}
		ix.retry[path] = state
	}
	state.attempts++
	delay := DefaultRetryBaseDelay << uint(state.attempts-1) //nolint:gosec
	state.nextAttempt = time.Now().Add(delay)

	if state.attempts >= DefaultMaxRetryAttempts {
		slog.Warn("index inconsistency exceeded retry cap, giving up until next crawl",
			slog.String("path", path), slog.Int("attempts", state.attempts))
	}
}

func (ix *Indexer) clearStale(path string) {
	ix.retryMu.Lock()
	defer ix.retryMu.Unlock()
	delete(ix.retry, path)
}

// StaleCount reports how many paths are currently queued for retry, for
// diagnostics/observability.
func (ix *Indexer) StaleCount() int {
	ix.retryMu.Lock()
	defer ix.retryMu.Unlock()
	return len(ix.retry)
}

// RetryStale re-attempts the C3 write for every path whose backoff window
// has elapsed. Intended to be called periodically by a background loop.
func (ix *Indexer) RetryStale(ctx context.Context) {
	ix.retryMu.Lock()
	due := make([]string, 0, len(ix.retry))
	now := time.Now()
	for path, state := range ix.retry {
		if state.attempts >= DefaultMaxRetryAttempts {
			continue
		}
		if !now.Before(state.nextAttempt) {
			due = append(due, path)
		}
	}
	ix.retryMu.Unlock()

	retried := false
	for _, path := range due {
		if err := ix.IndexFile(ctx, path); err != nil {
			slog.Warn("stale-path retry failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		retried = true
	}
	if retried {
		ix.invalidateCache()
	}
}

func hashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

func isBinaryContent(content []byte) bool {
	checkLen := 512
	if len(content) < checkLen {
		checkLen = len(content)
	}
	for i := 0; i < checkLen; i++ {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

func joinRoot(root, relPath string) string {
	if root == "" {
		return relPath
	}
	return root + string(os.PathSeparator) + relPath
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// symbolNamesJoined builds the content_symbols field: every distinct
// symbol and identifier name, space-joined for identifier-preserving search.
func symbolNamesJoined(symbols []*store.Symbol, identifiers []*store.Identifier) string {
	seen := make(map[string]struct{}, len(symbols)+len(identifiers))
	var names []string
	add := func(n string) {
		if n == "" {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, s := range symbols {
		add(s.Name)
	}
	for _, id := range identifiers {
		add(id.Name)
	}
	return joinSpace(names)
}

func typeNames(symbols []*store.Symbol) []string {
	var names []string
	for _, s := range symbols {
		switch s.Kind {
		case store.SymbolKindClass, store.SymbolKindInterface, store.SymbolKindStruct, store.SymbolKindEnum:
			names = append(names, s.Name)
		}
	}
	return names
}

func joinSpace(items []string) string {
	total := 0
	for _, it := range items {
		total += len(it) + 1
	}
	buf := make([]byte, 0, total)
	for i, it := range items {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, it...)
	}
	return string(buf)
}
