package orchestrator

import (
	"context"
	"strings"

	"github.com/codenav/codenavd/internal/store"
)

// fakeStore is a minimal in-memory store.Store for orchestrator tests. It
// does not model real SQL matching semantics (glob, FTS ranking) — just
// enough substring/equality matching to exercise handler wiring.
type fakeStore struct {
	files       map[string]*store.File
	symbols     []*store.Symbol
	identifiers []*store.Identifier
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string]*store.File{}}
}

func (s *fakeStore) UpsertFile(ctx context.Context, p store.UpsertFileParams) error {
	s.files[p.Path] = &store.File{
		Path: p.Path, Content: p.Content, Language: p.Language, Hash: p.Hash,
		Size: p.Size, LastModified: p.LastModified, SymbolCount: len(p.Symbols),
	}
	s.symbols = append(s.symbols, p.Symbols...)
	s.identifiers = append(s.identifiers, p.Identifiers...)
	return nil
}

func (s *fakeStore) DeleteFile(ctx context.Context, path string) error {
	delete(s.files, path)
	return nil
}

func (s *fakeStore) GetFile(ctx context.Context, path string) (*store.File, error) {
	return s.files[path], nil
}

func (s *fakeStore) GetSymbolsByName(ctx context.Context, name string, caseSensitive bool) ([]*store.Symbol, error) {
	var out []*store.Symbol
	for _, sym := range s.symbols {
		if matchName(sym.Name, name, caseSensitive) {
			out = append(out, sym)
		}
	}
	return out, nil
}

func (s *fakeStore) GetSymbolByID(ctx context.Context, id string) (*store.Symbol, error) {
	for _, sym := range s.symbols {
		if sym.ID == id {
			return sym, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetIdentifiersByName(ctx context.Context, name string, caseSensitive bool) ([]*store.Identifier, error) {
	var out []*store.Identifier
	for _, id := range s.identifiers {
		if matchName(id.Name, name, caseSensitive) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *fakeStore) CountIdentifiersByName(ctx context.Context, name string, caseSensitive bool) (int, error) {
	ids, _ := s.GetIdentifiersByName(ctx, name, caseSensitive)
	return len(ids), nil
}

func (s *fakeStore) GetIdentifiersByContainingSymbol(ctx context.Context, symbolID string) ([]*store.Identifier, error) {
	var out []*store.Identifier
	for _, id := range s.identifiers {
		if id.ContainingSymbolID == symbolID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchFilesByPattern(ctx context.Context, glob string, searchFullPath bool, extFilter []string, max int) ([]*store.File, error) {
	var out []*store.File
	for _, f := range s.files {
		if glob == "*" || strings.Contains(f.Path, strings.Trim(glob, "*")) {
			out = append(out, f)
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) SearchDirectories(ctx context.Context, glob string, includeHidden bool, max int) ([]store.DirectoryMatch, error) {
	return nil, nil
}

func (s *fakeStore) RecentFiles(ctx context.Context, cutoffEpoch int64, max int, extFilter []string) ([]*store.File, error) {
	var out []*store.File
	for _, f := range s.files {
		if f.LastModified >= cutoffEpoch {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) FullTextSearch(ctx context.Context, query string, max int, fileGlob string) ([]*store.File, error) {
	var out []*store.File
	for _, f := range s.files {
		if strings.Contains(f.Content, query) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) SemanticSearch(ctx context.Context, queryVector []float32, k int) ([]store.SemanticHit, error) {
	return nil, nil
}

func (s *fakeStore) VectorExtensionAvailable() bool { return false }

func (s *fakeStore) Close() error { return nil }

func matchName(have, want string, caseSensitive bool) bool {
	if caseSensitive {
		return have == want
	}
	return strings.EqualFold(have, want)
}
