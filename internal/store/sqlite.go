package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/codenav/codenavd/internal/vectorindex"
)

// SQLiteStore implements Store over a single SQLite database file, opened in
// write-ahead-log mode with a single-writer connection pool (readers observe
// the last committed generation without blocking the writer).
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	vector vectorindex.Index // may be nil; VectorExtensionAvailable() reports this
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// excludedDirNames are stripped when directories are derived from file paths.
var excludedDirNames = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {},
	"__pycache__": {}, ".idea": {}, ".vscode": {}, "bin": {}, "obj": {},
}

// validateIntegrity mirrors the teacher's corruption-detection-then-recover
// pattern (internal/store/sqlite_bm25.go validateSQLiteIntegrity), adapted
// to check for this schema's tables rather than an FTS5 table.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='files'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("schema table 'files' missing")
	}
	return nil
}

// Open creates or opens the structured store at path (pass "" for an
// in-memory store, used by tests). vector may be nil if the vector index is
// unavailable (embedding service unreachable, or capability disabled).
func Open(path string, vector vectorindex.Index) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
		if err := validateIntegrity(path); err != nil {
			slog.Warn("structured store corrupted, clearing", slog.String("path", path), slog.String("error", err.Error()))
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, fmt.Errorf("store corrupted at %s and cannot remove: %w (original: %v)", path, rmErr, err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: path, vector: vector}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// initSchema creates the schema idempotently; re-entry never destroys data.
func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			language TEXT NOT NULL DEFAULT '',
			hash TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			last_modified INTEGER NOT NULL DEFAULT 0,
			last_indexed INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL DEFAULT '',
			symbol_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_language ON files(language)`,
		`CREATE INDEX IF NOT EXISTS idx_files_last_modified ON files(last_modified)`,

		`CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
			signature TEXT NOT NULL DEFAULT '',
			start_line INTEGER NOT NULL DEFAULT 0,
			start_col INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0,
			end_col INTEGER NOT NULL DEFAULT 0,
			start_byte INTEGER NOT NULL DEFAULT 0,
			end_byte INTEGER NOT NULL DEFAULT 0,
			doc_comment TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 1.0,
			file_hash TEXT NOT NULL DEFAULT '',
			last_indexed INTEGER NOT NULL DEFAULT 0,
			inheritance TEXT NOT NULL DEFAULT '[]',
			parameters TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_parent_id ON symbols(parent_id)`,

		`CREATE TABLE IF NOT EXISTS identifiers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
			start_line INTEGER NOT NULL DEFAULT 0,
			start_col INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0,
			end_col INTEGER NOT NULL DEFAULT 0,
			containing_symbol_id TEXT NOT NULL DEFAULT '',
			target_symbol_id TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 1.0,
			code_context TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_identifiers_name ON identifiers(name COLLATE NOCASE)`,
		`CREATE INDEX IF NOT EXISTS idx_identifiers_kind ON identifiers(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_identifiers_file_path ON identifiers(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_identifiers_containing_symbol ON identifiers(containing_symbol_id)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path UNINDEXED, content, content='files', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS files_ai AFTER INSERT ON files BEGIN
			INSERT INTO files_fts(rowid, path, content) VALUES (new.rowid, new.path, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS files_ad AFTER DELETE ON files BEGIN
			INSERT INTO files_fts(files_fts, rowid, path, content) VALUES('delete', old.rowid, old.path, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS files_au AFTER UPDATE ON files BEGIN
			INSERT INTO files_fts(files_fts, rowid, path, content) VALUES('delete', old.rowid, old.path, old.content);
			INSERT INTO files_fts(rowid, path, content) VALUES (new.rowid, new.path, new.content);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema stmt: %w (%s)", err, firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// UpsertFile replaces all symbols, identifiers, and embeddings for a path in
// a single transaction.
func (s *SQLiteStore) UpsertFile(ctx context.Context, p UpsertFileParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (path, language, hash, size, last_modified, last_indexed, content, symbol_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			language=excluded.language, hash=excluded.hash, size=excluded.size,
			last_modified=excluded.last_modified, last_indexed=excluded.last_indexed,
			content=excluded.content, symbol_count=excluded.symbol_count`,
		p.Path, p.Language, p.Hash, p.Size, p.LastModified, nowEpoch(), p.Content, len(p.Symbols))
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, p.Path); err != nil {
		return fmt.Errorf("clear symbols: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM identifiers WHERE file_path = ?`, p.Path); err != nil {
		return fmt.Errorf("clear identifiers: %w", err)
	}

	for _, sym := range p.Symbols {
		inheritance, err := marshalJSON(sym.Inheritance)
		if err != nil {
			return fmt.Errorf("encode inheritance for %s: %w", sym.Name, err)
		}
		parameters, err := marshalJSON(sym.Parameters)
		if err != nil {
			return fmt.Errorf("encode parameters for %s: %w", sym.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbols (id, name, kind, language, file_path, signature,
				start_line, start_col, end_line, end_col, start_byte, end_byte,
				doc_comment, visibility, parent_id, confidence, file_hash, last_indexed,
				inheritance, parameters)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			sym.ID, sym.Name, string(sym.Kind), sym.Language, p.Path, sym.Signature,
			sym.Span.StartLine, sym.Span.StartCol, sym.Span.EndLine, sym.Span.EndCol,
			sym.Span.StartByte, sym.Span.EndByte, sym.DocComment, sym.Visibility,
			sym.ParentID, sym.Confidence, p.Hash, nowEpoch(),
			inheritance, parameters); err != nil {
			return fmt.Errorf("insert symbol %s: %w", sym.Name, err)
		}
	}

	for _, id := range p.Identifiers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO identifiers (id, name, kind, language, file_path,
				start_line, start_col, end_line, end_col,
				containing_symbol_id, target_symbol_id, confidence, code_context)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			id.ID, id.Name, string(id.Kind), id.Language, p.Path,
			id.Span.StartLine, id.Span.StartCol, id.Span.EndLine, id.Span.EndCol,
			id.ContainingSymbolID, id.TargetSymbolID, id.Confidence, id.CodeContext); err != nil {
			return fmt.Errorf("insert identifier %s: %w", id.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// Embeddings live in the vector index (C4), not the relational schema;
	// their presence is all-or-nothing per file, matching the invariant that
	// all-or-none of a file's symbol embeddings exist.
	if s.vector != nil && len(p.Embeddings) > 0 {
		ids := make([]string, len(p.Embeddings))
		vecs := make([][]float32, len(p.Embeddings))
		for i, e := range p.Embeddings {
			ids[i], vecs[i] = e.SymbolID, e.Embedding
		}
		if err := s.vector.Add(ctx, ids, vecs); err != nil {
			// Per §4.4/§4.7: embedding failures never abort the file upsert.
			slog.Warn("embedding upsert failed, file committed without embeddings",
				slog.String("path", p.Path), slog.String("error", err.Error()))
		}
	}
	return nil
}

// DeleteFile cascades to symbols and identifiers via FK, and to embeddings
// via an explicit vector-store delete in the same logical operation.
func (s *SQLiteStore) DeleteFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbolIDs, err := s.symbolIDsForFileLocked(ctx, path)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	if s.vector != nil && len(symbolIDs) > 0 {
		if err := s.vector.Delete(ctx, symbolIDs); err != nil {
			slog.Warn("embedding delete failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *SQLiteStore) symbolIDsForFileLocked(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM symbols WHERE file_path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("query symbol ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) GetFile(ctx context.Context, path string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT path, language, hash, size, last_modified, last_indexed, content, symbol_count FROM files WHERE path = ?`, path)
	return scanFile(row)
}

func scanFile(row *sql.Row) (*File, error) {
	var f File
	err := row.Scan(&f.Path, &f.Language, &f.Hash, &f.Size, &f.LastModified, &f.LastIndexed, &f.Content, &f.SymbolCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return &f, nil
}

func (s *SQLiteStore) GetSymbolsByName(ctx context.Context, name string, caseSensitive bool) ([]*Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, kind, language, file_path, signature, start_line, start_col,
		end_line, end_col, start_byte, end_byte, doc_comment, visibility, parent_id,
		confidence, file_hash, last_indexed, inheritance, parameters FROM symbols WHERE `
	switch {
	case strings.ContainsAny(name, "*?") && caseSensitive:
		query += `name GLOB ?`
	case strings.ContainsAny(name, "*?"):
		query += `name LIKE ? ESCAPE '\'`
		name = globToLike(name)
	case caseSensitive:
		query += `name = ?`
	default:
		query += `name = ? COLLATE NOCASE`
	}
	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func scanSymbols(rows *sql.Rows) ([]*Symbol, error) {
	var out []*Symbol
	for rows.Next() {
		var sym Symbol
		var kind, inheritance, parameters string
		if err := rows.Scan(&sym.ID, &sym.Name, &kind, &sym.Language, &sym.FilePath, &sym.Signature,
			&sym.Span.StartLine, &sym.Span.StartCol, &sym.Span.EndLine, &sym.Span.EndCol,
			&sym.Span.StartByte, &sym.Span.EndByte, &sym.DocComment, &sym.Visibility, &sym.ParentID,
			&sym.Confidence, &sym.FileHash, &sym.LastIndexed, &inheritance, &parameters); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		sym.Kind = SymbolKind(kind)
		if err := unmarshalJSON(inheritance, &sym.Inheritance); err != nil {
			return nil, fmt.Errorf("decode inheritance for %s: %w", sym.Name, err)
		}
		if err := unmarshalJSON(parameters, &sym.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters for %s: %w", sym.Name, err)
		}
		out = append(out, &sym)
	}
	return out, rows.Err()
}

// marshalJSON encodes v, falling back to "[]" for a nil slice so the column
// never holds an empty string (which would fail to unmarshal as JSON).
func marshalJSON(v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// unmarshalJSON decodes raw into dst, treating an empty column (from a row
// written before these columns existed) as an empty value.
func unmarshalJSON(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func (s *SQLiteStore) GetSymbolByID(ctx context.Context, id string) (*Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, kind, language, file_path, signature, start_line, start_col,
		end_line, end_col, start_byte, end_byte, doc_comment, visibility, parent_id,
		confidence, file_hash, last_indexed, inheritance, parameters FROM symbols WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query symbol by id: %w", err)
	}
	defer rows.Close()
	found, err := scanSymbols(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *SQLiteStore) GetIdentifiersByName(ctx context.Context, name string, caseSensitive bool) ([]*Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
		containing_symbol_id, target_symbol_id, confidence, code_context FROM identifiers WHERE `
	if caseSensitive {
		query += `name = ?`
	} else {
		query += `name = ? COLLATE NOCASE`
	}
	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("query identifiers: %w", err)
	}
	defer rows.Close()
	return scanIdentifiers(rows)
}

func scanIdentifiers(rows *sql.Rows) ([]*Identifier, error) {
	var out []*Identifier
	for rows.Next() {
		var id Identifier
		var kind string
		if err := rows.Scan(&id.ID, &id.Name, &kind, &id.Language, &id.FilePath,
			&id.Span.StartLine, &id.Span.StartCol, &id.Span.EndLine, &id.Span.EndCol,
			&id.ContainingSymbolID, &id.TargetSymbolID, &id.Confidence, &id.CodeContext); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		id.Kind = IdentifierKind(kind)
		out = append(out, &id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountIdentifiersByName(ctx context.Context, name string, caseSensitive bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT COUNT(*) FROM identifiers WHERE `
	if caseSensitive {
		query += `name = ?`
	} else {
		query += `name = ? COLLATE NOCASE`
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identifiers: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) GetIdentifiersByContainingSymbol(ctx context.Context, symbolID string) ([]*Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, kind, language, file_path, start_line, start_col, end_line, end_col,
		containing_symbol_id, target_symbol_id, confidence, code_context FROM identifiers WHERE containing_symbol_id = ?`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("query identifiers by containing symbol: %w", err)
	}
	defer rows.Close()
	return scanIdentifiers(rows)
}

// SearchFilesByPattern lowers a glob (`*`, `?`) to a LIKE pattern under
// LOWER(), optionally restricted to an extension whitelist.
func (s *SQLiteStore) SearchFilesByPattern(ctx context.Context, glob string, searchFullPath bool, extFilter []string, max int) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	like := globToLike(glob)
	query := `SELECT path, language, hash, size, last_modified, last_indexed, content, symbol_count FROM files WHERE `
	var args []any
	if searchFullPath {
		query += `LOWER(path) LIKE LOWER(?)`
		args = append(args, like)
	} else {
		query += `(LOWER(path) LIKE '%/' || LOWER(?) OR LOWER(path) = LOWER(?))`
		args = append(args, like, like)
	}
	if len(extFilter) > 0 {
		placeholders := make([]string, len(extFilter))
		for i, ext := range extFilter {
			placeholders[i] = "?"
			args = append(args, "%"+strings.TrimPrefix(ext, "."))
		}
		query += fmt.Sprintf(` AND (%s)`, orLikeExt(placeholders))
	}
	query += ` ORDER BY path LIMIT ?`
	args = append(args, max)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search files by pattern: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func orLikeExt(placeholders []string) string {
	parts := make([]string, len(placeholders))
	for i := range placeholders {
		parts[i] = "LOWER(path) LIKE '%' || ?"
	}
	return strings.Join(parts, " OR ")
}

func scanFiles(rows *sql.Rows) ([]*File, error) {
	var out []*File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Path, &f.Language, &f.Hash, &f.Size, &f.LastModified, &f.LastIndexed, &f.Content, &f.SymbolCount); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// globToLike compiles a `*`/`?` glob into a SQL LIKE pattern.
func globToLike(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SearchDirectories derives unique directories from indexed file paths,
// matching each directory's path or last segment against glob, excluding the built-in list and
// hidden directories unless explicitly requested.
func (s *SQLiteStore) SearchDirectories(ctx context.Context, glob string, includeHidden bool, max int) ([]DirectoryMatch, error) {
	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files`)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("list files for directory derivation: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, err
		}
		paths = append(paths, p)
	}
	closeErr := rows.Err()
	rows.Close()
	s.mu.RUnlock()
	if closeErr != nil {
		return nil, closeErr
	}

	dirCounts := map[string]int{}   // immediate file count
	dirChildren := map[string]map[string]struct{}{} // immediate subdir set
	for _, p := range paths {
		dir := filepath.ToSlash(filepath.Dir(p))
		if containsExcludedSegment(dir) {
			continue
		}
		dirCounts[dir]++
		parent := filepath.ToSlash(filepath.Dir(dir))
		for parent != "." && parent != "/" && parent != dir {
			if dirChildren[parent] == nil {
				dirChildren[parent] = map[string]struct{}{}
			}
			dirChildren[parent][dir] = struct{}{}
			break
		}
	}

	matched := matchGlobAgainstDirs(glob, dirCounts, dirChildren, includeHidden)
	if max > 0 && len(matched) > max {
		matched = matched[:max]
	}
	return matched, nil
}

func containsExcludedSegment(dir string) bool {
	for _, seg := range strings.Split(dir, "/") {
		if _, excluded := excludedDirNames[seg]; excluded {
			return true
		}
	}
	return false
}

func matchGlobAgainstDirs(glob string, dirCounts map[string]int, dirChildren map[string]map[string]struct{}, includeHidden bool) []DirectoryMatch {
	var out []DirectoryMatch
	for dir, count := range dirCounts {
		base := filepath.Base(dir)
		hidden := strings.HasPrefix(base, ".")
		if hidden && !includeHidden {
			continue
		}
		if !matchesSegmentGlob(glob, dir) {
			continue
		}
		out = append(out, DirectoryMatch{
			Path:        dir,
			Depth:       strings.Count(dir, "/") + 1,
			FileCount:   count,
			SubdirCount: len(dirChildren[dir]),
			Hidden:      hidden,
		})
	}
	return out
}

// matchesSegmentGlob reports whether the whole dir path, or (when glob has no
// '/') its last segment, matches glob case-insensitively. Intermediate
// segments are not matched on their own.
func matchesSegmentGlob(glob, dir string) bool {
	pattern := strings.ToLower(globToLike(glob))
	candidates := []string{strings.ToLower(dir)}
	if !strings.Contains(glob, "/") {
		candidates = append(candidates, strings.ToLower(filepath.Base(dir)))
	}
	for _, c := range candidates {
		if likeMatch(pattern, c) {
			return true
		}
	}
	return false
}

// likeMatch is a tiny SQL-LIKE-subset matcher (% and _) used for in-process
// directory glob matching without a round trip to SQLite.
func likeMatch(pattern, s string) bool {
	return globLikeMatch(pattern, s)
}

func (s *SQLiteStore) RecentFiles(ctx context.Context, cutoffEpoch int64, max int, extFilter []string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT path, language, hash, size, last_modified, last_indexed, content, symbol_count
		FROM files WHERE last_modified >= ?`
	args := []any{cutoffEpoch}
	if len(extFilter) > 0 {
		placeholders := make([]string, len(extFilter))
		for i, ext := range extFilter {
			placeholders[i] = "LOWER(path) LIKE '%' || ?"
			args = append(args, strings.TrimPrefix(ext, "."))
		}
		query += " AND (" + strings.Join(placeholders, " OR ") + ")"
	}
	query += ` ORDER BY last_modified DESC LIMIT ?`
	args = append(args, max)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent files: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func (s *SQLiteStore) FullTextSearch(ctx context.Context, query string, max int, fileGlob string) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlQuery := `SELECT f.path, f.language, f.hash, f.size, f.last_modified, f.last_indexed, f.content, f.symbol_count
		FROM files_fts JOIN files f ON f.rowid = files_fts.rowid
		WHERE files_fts MATCH ?`
	args := []any{query}
	if fileGlob != "" {
		sqlQuery += ` AND LOWER(f.path) LIKE LOWER(?)`
		args = append(args, globToLike(fileGlob))
	}
	sqlQuery += ` ORDER BY bm25(files_fts) LIMIT ?`
	args = append(args, max)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		// FTS5 syntax errors surface as empty results; the caller (C5/C8)
		// is responsible for having already sanitized the query.
		return nil, fmt.Errorf("full text search: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func (s *SQLiteStore) SemanticSearch(ctx context.Context, queryVector []float32, k int) ([]SemanticHit, error) {
	if s.vector == nil {
		return nil, ErrVectorUnavailable
	}
	results, err := s.vector.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	hits := make([]SemanticHit, 0, len(results))
	for _, r := range results {
		sym, err := s.GetSymbolByID(ctx, r.ID)
		if err != nil || sym == nil {
			continue
		}
		hits = append(hits, SemanticHit{Symbol: sym, Similarity: float64(r.Score)})
	}
	return hits, nil
}

func (s *SQLiteStore) VectorExtensionAvailable() bool {
	return s.vector != nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ErrVectorUnavailable is returned by SemanticSearch when no vector index
// capability was wired at Open time.
var ErrVectorUnavailable = fmt.Errorf("vector extension unavailable")
