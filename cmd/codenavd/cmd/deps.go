package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codenav/codenavd/internal/cache"
	"github.com/codenav/codenavd/internal/config"
	"github.com/codenav/codenavd/internal/embedclient"
	"github.com/codenav/codenavd/internal/extractor"
	"github.com/codenav/codenavd/internal/indexer"
	"github.com/codenav/codenavd/internal/resourcestore"
	"github.com/codenav/codenavd/internal/scanner"
	"github.com/codenav/codenavd/internal/store"
	"github.com/codenav/codenavd/internal/textindex"
	"github.com/codenav/codenavd/internal/vectorindex"
	"github.com/codenav/codenavd/internal/watcher"
)

// workspaceDeps bundles the capability handles a single workspace's
// orchestrator is built from. Vector is nil unless cfg.Vector.Enabled; the
// embedding client handed to the indexer is only created in that case too.
type workspaceDeps struct {
	cfg       *config.Config
	root      string
	dataDir   string
	store     store.Store
	textIndex *textindex.Index
	vector    vectorindex.Index
	indexer   *indexer.Indexer
	watcher   *watcher.HybridWatcher
	cache     *cache.Cache
	resources *resourcestore.Store

	closers []func() error
}

// Close releases every handle opened by buildWorkspaceDeps, in reverse
// acquisition order, returning the first error encountered.
func (d *workspaceDeps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildWorkspaceDeps loads configuration for root and opens every storage
// and indexing capability the orchestrator (C8) needs: the structured store
// (C2), text index (C3), optional vector index (C4), indexer (C7), response
// cache (C9) and resource store (C10). It is the CLI's single wiring point,
// shared by `serve`, `index` and the root command's smart default.
func buildWorkspaceDeps(root string) (*workspaceDeps, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := filepath.Join(root, ".codenavd")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	d := &workspaceDeps{cfg: cfg, root: root, dataDir: dataDir}

	var vector vectorindex.Index
	var embedder *embedclient.Client
	if cfg.Vector.Enabled {
		vecCfg := vectorindex.DefaultConfig(cfg.Vector.Dimensions)
		if cfg.Vector.Metric != "" {
			vecCfg.Metric = cfg.Vector.Metric
		}
		if cfg.Vector.M > 0 {
			vecCfg.M = cfg.Vector.M
		}
		if cfg.Vector.EfSearch > 0 {
			vecCfg.EfSearch = cfg.Vector.EfSearch
		}
		hnswIdx, err := vectorindex.NewHNSWIndex(vecCfg)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		vectorPath := filepath.Join(dataDir, "vectors.hnsw")
		if fileExists(vectorPath) {
			if err := hnswIdx.Load(vectorPath); err != nil {
				d.Close()
				return nil, fmt.Errorf("failed to load vector index: %w", err)
			}
		}
		vector = hnswIdx
		d.closers = append(d.closers, func() error {
			if err := hnswIdx.Save(vectorPath); err != nil {
				return err
			}
			return hnswIdx.Close()
		})

		embedCfg := embedclient.DefaultConfig(cfg.Embedding.BaseURL, cfg.Vector.Dimensions)
		if cfg.Embedding.Timeout != "" {
			if t, err := time.ParseDuration(cfg.Embedding.Timeout); err == nil && t > 0 {
				embedCfg.Timeout = t
			}
		}
		if cfg.Embedding.AvailabilityTTL != "" {
			if t, err := time.ParseDuration(cfg.Embedding.AvailabilityTTL); err == nil && t > 0 {
				embedCfg.AvailabilityTTL = t
			}
		}
		embedder = embedclient.New(embedCfg)
	}
	d.vector = vector

	metadataPath := filepath.Join(dataDir, "metadata.db")
	st, err := store.Open(metadataPath, vector)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	d.store = st
	d.closers = append(d.closers, st.Close)

	textIndexPath := filepath.Join(dataDir, "text.bleve")
	idx, err := textindex.Open(textIndexPath)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to open text index: %w", err)
	}
	d.textIndex = idx
	d.closers = append(d.closers, idx.Close)

	sc, err := scanner.New()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	extractorCfg := extractor.DefaultConfig(cfg.Extractor.BinaryPath)
	if cfg.Extractor.Timeout != "" {
		if t, err := time.ParseDuration(cfg.Extractor.Timeout); err == nil && t > 0 {
			extractorCfg.Timeout = t
		}
	}

	var embedderIface indexer.Embedder
	if embedder != nil {
		embedderIface = embedder
	}

	cacheCfg := cache.DefaultConfig()
	if cfg.Cache.DefaultTTL != "" {
		if t, err := time.ParseDuration(cfg.Cache.DefaultTTL); err == nil && t > 0 {
			cacheCfg.DefaultTTL = t
		}
	}
	if cfg.Cache.MaxEntries > 0 {
		cacheCfg.HighCapacity = cfg.Cache.MaxEntries
	}
	c, cacheCleanup, err := cache.New(cacheCfg)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	d.cache = c
	d.closers = append(d.closers, func() error { cacheCleanup(); return nil })

	d.indexer = indexer.New(indexer.Config{
		RootPath:        root,
		Store:           st,
		TextIndex:       idx,
		Extractor:       extractor.New(extractorCfg),
		Scanner:         sc,
		Embedder:        embedderIface,
		ExcludePatterns: cfg.Paths.Exclude,
		MaxFileSize:     cfg.Index.MaxFileSize,
		Workers:         cfg.Index.Workers,
		Submodules:      &cfg.Submodules,
		Cache:           d.cache,
	})

	watchOpts := watcher.DefaultOptions()
	if cfg.Index.WatchDebounce != "" {
		if t, err := time.ParseDuration(cfg.Index.WatchDebounce); err == nil && t > 0 {
			watchOpts.DebounceWindow = t
		}
	}
	if cfg.Index.WatchQueueCapacity > 0 {
		watchOpts.EventBufferSize = cfg.Index.WatchQueueCapacity
	}
	watchOpts.IgnorePatterns = cfg.Paths.Exclude
	hw, err := watcher.NewHybridWatcher(watchOpts)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	d.watcher = hw
	d.closers = append(d.closers, hw.Stop)

	resourcesDir := cfg.Resources.Dir
	if resourcesDir == "" {
		resourcesDir = filepath.Join(dataDir, "resources")
	}
	var expiry time.Duration
	if cfg.Resources.Expiration != "" {
		expiry, _ = time.ParseDuration(cfg.Resources.Expiration)
	}
	res, err := resourcestore.New(resourcesDir, expiry, 0, cfg.Resources.Compress)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create resource store: %w", err)
	}
	d.resources = res

	return d, nil
}

// fileExists reports whether path exists, swallowing stat errors other than
// not-found the same way as a plain existence check.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// resolveWorkspaceRoot finds the project root for path, falling back to the
// working directory or path itself when no project markers are found.
func resolveWorkspaceRoot(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		return absPath
	}
	return root
}
