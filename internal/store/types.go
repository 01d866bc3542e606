// Package store implements the structured store (C2): the embedded
// relational database holding files, symbols, and identifiers for a single
// workspace, plus the full-text and vector virtual tables it fronts.
//
// The structured store is the source of truth for a workspace; the text
// index and vector index are rebuildable projections derived from it.
package store

import (
	"context"
	"fmt"
)

// SymbolKind enumerates the extensible tag set a Symbol's Kind may take.
// The set is open-ended at the extractor boundary (§6); these are the
// well-known values the rest of the system branches on.
type SymbolKind string

const (
	SymbolKindClass     SymbolKind = "class"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindStruct    SymbolKind = "struct"
	SymbolKindEnum      SymbolKind = "enum"
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindField     SymbolKind = "field"
	SymbolKindProperty  SymbolKind = "property"
	SymbolKindVariable  SymbolKind = "variable"
)

// IdentifierKind enumerates the kinds of textual occurrences tracked.
type IdentifierKind string

const (
	IdentifierKindCall         IdentifierKind = "call"
	IdentifierKindMemberAccess IdentifierKind = "member_access"
	IdentifierKindVariableRef  IdentifierKind = "variable_ref"
	IdentifierKindTypeRef      IdentifierKind = "type_ref"
)

// Span is a byte/line/column range within a file.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	StartByte int
	EndByte   int
}

// File is the per-path record described in spec §3. Exactly one row exists
// per path per workspace; Hash is recomputed on every re-index.
type File struct {
	Path         string // absolute path, primary key
	Language     string
	Hash         string
	Size         int64
	LastModified int64 // epoch seconds
	LastIndexed  int64 // epoch seconds
	Content      string // present whenever indexed by the text tier
	SymbolCount  int
}

// Parameter is one formal parameter of a function/method symbol, as
// extracted by tree-sitter from the declaration's parameter list.
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Symbol is a named program entity extracted by the external extractor.
type Symbol struct {
	ID          string
	Name        string
	Kind        SymbolKind
	Language    string
	FilePath    string // FK -> File.Path, cascades on delete
	Signature   string
	Span        Span
	DocComment  string
	Visibility  string
	ParentID    string // tree over the file; empty if top-level
	Confidence  float64
	FileHash    string // extracted-from-hash, for stale detection
	LastIndexed int64
	// Inheritance lists the names of types this symbol directly extends or
	// implements (base classes, embedded structs, implemented interfaces),
	// in declaration order. Empty for symbols with no supertype.
	Inheritance []string
	// Parameters lists the formal parameters of a function/method symbol, in
	// declaration order. Empty for non-callable symbols.
	Parameters []Parameter
}

// Identifier is a textual occurrence of a name in source.
type Identifier struct {
	ID                 string
	Name               string
	Kind               IdentifierKind
	Language           string
	FilePath           string // FK -> File.Path
	Span               Span
	ContainingSymbolID string // may be empty
	TargetSymbolID     string // resolution is best-effort; may be empty
	Confidence         float64
	CodeContext        string
}

// SymbolEmbedding is a fixed-dimension vector keyed by symbol id. Its row
// exists only if the symbol row exists; both are removed in one transaction
// on symbol deletion.
type SymbolEmbedding struct {
	SymbolID  string
	Embedding []float32
}

// UpsertFileParams bundles everything upsert_file (§4.2) replaces atomically
// for one path.
type UpsertFileParams struct {
	Path         string
	Content      string
	Language     string
	Hash         string
	Size         int64
	LastModified int64
	Symbols      []*Symbol
	Identifiers  []*Identifier
	Embeddings   []*SymbolEmbedding // nil/empty if C4 is unavailable
}

// DirectoryMatch is derived, not persisted (spec §3).
type DirectoryMatch struct {
	Path           string
	Depth          int
	FileCount      int
	SubdirCount    int
	Hidden         bool
}

// SemanticHit is a symbol returned from semantic_search with its similarity.
type SemanticHit struct {
	Symbol     *Symbol
	Similarity float64
}

// Store is the structured store's contract (C2). One Store instance is
// opened per workspace and owns the workspace's single SQLite connection
// pool (readers unlimited, writer serialized internally).
type Store interface {
	// UpsertFile replaces all symbols, identifiers, and embeddings for a
	// path in a single transaction. Cascading deletes fire via FK when
	// existing rows are superseded.
	UpsertFile(ctx context.Context, p UpsertFileParams) error

	// DeleteFile cascades to symbols, identifiers, and embeddings.
	DeleteFile(ctx context.Context, path string) error

	GetFile(ctx context.Context, path string) (*File, error)

	GetSymbolsByName(ctx context.Context, name string, caseSensitive bool) ([]*Symbol, error)
	GetSymbolByID(ctx context.Context, id string) (*Symbol, error)

	GetIdentifiersByName(ctx context.Context, name string, caseSensitive bool) ([]*Identifier, error)
	CountIdentifiersByName(ctx context.Context, name string, caseSensitive bool) (int, error)
	GetIdentifiersByContainingSymbol(ctx context.Context, symbolID string) ([]*Identifier, error)

	// SearchFilesByPattern matches a glob (`*`, `?`) against Path, optionally
	// restricted to an extension whitelist.
	SearchFilesByPattern(ctx context.Context, glob string, searchFullPath bool, extFilter []string, max int) ([]*File, error)

	// SearchDirectories derives directories from indexed file paths.
	SearchDirectories(ctx context.Context, glob string, includeHidden bool, max int) ([]DirectoryMatch, error)

	RecentFiles(ctx context.Context, cutoffEpoch int64, max int, extFilter []string) ([]*File, error)

	// FullTextSearch delegates to the files_fts virtual table.
	FullTextSearch(ctx context.Context, query string, max int, fileGlob string) ([]*File, error)

	// SemanticSearch requires the vector extension and embedding service to
	// be available; returns VectorExtensionUnavailable otherwise.
	SemanticSearch(ctx context.Context, queryVector []float32, k int) ([]SemanticHit, error)

	// VectorExtensionAvailable reports whether the vector virtual table was
	// loaded successfully at open.
	VectorExtensionAvailable() bool

	Close() error
}

// ErrDimensionMismatch indicates a symbol embedding's dimension doesn't
// match the store's configured vector dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d (run 'codenavd index --force')", e.Expected, e.Got)
}
