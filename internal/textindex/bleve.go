package textindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/index"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// CodeTokenizerName is the code-aware tokenizer shared by the
	// fileName, content, and content_symbols fields.
	CodeTokenizerName = "code_tokenizer"
	// IdentifierTokenizerName preserves whole identifiers (no camelCase
	// splitting) for exact-symbol matching in content_symbols.
	IdentifierTokenizerName = "identifier_tokenizer"
	// MinimalTokenizerName splits only on whitespace, preserving
	// punctuation, for content_patterns.
	MinimalTokenizerName = "minimal_tokenizer"

	// CodeStopFilterName filters common programming-language stop words.
	CodeStopFilterName = "code_stop"

	// CodeAnalyzerName is the stemmed, code-aware analyzer for "content".
	CodeAnalyzerName = "code_analyzer"
	// FileNameAnalyzerName is the unstemmed code-aware analyzer for
	// "fileName".
	FileNameAnalyzerName = "filename_analyzer"
	// SymbolAnalyzerName preserves whole identifiers for "content_symbols".
	SymbolAnalyzerName = "symbol_analyzer"
	// PatternAnalyzerName preserves punctuation for "content_patterns".
	PatternAnalyzerName = "pattern_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenizer(IdentifierTokenizerName, identifierTokenizerConstructor)
	_ = registry.RegisterTokenizer(MinimalTokenizerName, minimalTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CodeStopFilterName, codeStopFilterConstructor)
}

// Document is one file's worth of fields as indexed by C3, per §4.3's
// 7-field schema. Path is the document ID.
type Document struct {
	Path            string
	FileName        string
	Content         string
	ContentSymbols  string
	ContentPatterns string
	TypeNames       []string
	LastModified    time.Time
}

// bleveDocument is the struct actually handed to Bleve for indexing; field
// names drive the mapping lookups below.
type bleveDocument struct {
	Path            string    `json:"path"`
	FileName        string    `json:"fileName"`
	Content         string    `json:"content"`
	ContentSymbols  string    `json:"content_symbols"`
	ContentPatterns string    `json:"content_patterns"`
	TypeNames       []string  `json:"type_names"`
	LastModified    time.Time `json:"LastModified"`
}

// Hit is a single search result.
type Hit struct {
	Path         string
	Score        float64
	Line         int
	Context      string
	Snippet      string
	Fields       map[string]string
	LastModified time.Time
}

// SearchResult is the outcome of Search or MoreLikeThis.
type SearchResult struct {
	TotalHits uint64
	Hits      []Hit
	Elapsed   time.Duration
}

// Index wraps a Bleve v2 index configured with the spec's 7-field schema.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// validateIndexIntegrity detects a corrupted Bleve index before opening it
// (missing or unparsable index_meta.json), mirroring the teacher's
// BUG-049 auto-recovery fix.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// Open creates or opens the text index at path. An empty path builds an
// in-memory index (used by tests). Auto-recovers from a corrupted index by
// clearing and rebuilding empty — the caller (C7) is responsible for
// re-indexing afterward, since the text index is a rebuildable projection
// of the structured store.
func Open(path string) (*Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, mkErr)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("text index corrupted, clearing", slog.String("path", path), slog.String("error", validErr.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("text index corrupted at %s and cannot remove: %w (original: %v)", path, rmErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("text index open failed, clearing", slog.String("path", path), slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("text index corrupted, cannot clear: %w (original: %v)", rmErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create/open text index: %w", err)
	}

	return &Index{index: idx, path: path}, nil
}

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer(CodeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CodeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CodeStopFilterName,
			en.StemmerName,
		},
	}); err != nil {
		return nil, fmt.Errorf("register content analyzer: %w", err)
	}

	if err := im.AddCustomAnalyzer(FileNameAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     CodeTokenizerName,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register fileName analyzer: %w", err)
	}

	if err := im.AddCustomAnalyzer(SymbolAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     IdentifierTokenizerName,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register symbol analyzer: %w", err)
	}

	if err := im.AddCustomAnalyzer(PatternAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     MinimalTokenizerName,
		"token_filters": []string{},
	}); err != nil {
		return nil, fmt.Errorf("register pattern analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("path", pathField)

	fileNameField := bleve.NewTextFieldMapping()
	fileNameField.Analyzer = FileNameAnalyzerName
	doc.AddFieldMappingsAt("fileName", fileNameField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = CodeAnalyzerName
	contentField.IncludeTermVectors = true
	doc.AddFieldMappingsAt("content", contentField)

	symbolsField := bleve.NewTextFieldMapping()
	symbolsField.Analyzer = SymbolAnalyzerName
	doc.AddFieldMappingsAt("content_symbols", symbolsField)

	patternsField := bleve.NewTextFieldMapping()
	patternsField.Analyzer = PatternAnalyzerName
	doc.AddFieldMappingsAt("content_patterns", patternsField)

	typeNamesField := bleve.NewTextFieldMapping()
	typeNamesField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("type_names", typeNamesField)

	lastModifiedField := bleve.NewDateTimeFieldMapping()
	doc.AddFieldMappingsAt("LastModified", lastModifiedField)

	im.AddDocumentMapping("_default", doc)
	im.DefaultAnalyzer = CodeAnalyzerName
	return im, nil
}

// IndexExists reports whether path names an existing on-disk index.
func IndexExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(path, "index_meta.json"))
	return err == nil
}

// DocumentCount returns the number of documents currently indexed.
func (idx *Index) DocumentCount() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0, fmt.Errorf("index is closed")
	}
	return idx.index.DocCount()
}

// Clear removes every document from the index without closing it.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	docIDs, err := idx.allIDsLocked()
	if err != nil {
		return err
	}
	if len(docIDs) == 0 {
		return nil
	}
	batch := idx.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}
	return idx.index.Batch(batch)
}

// UpsertDocument indexes or replaces the document for a path.
func (idx *Index) UpsertDocument(ctx context.Context, doc Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index is closed")
	}

	bd := bleveDocument{
		Path:            doc.Path,
		FileName:        doc.FileName,
		Content:         doc.Content,
		ContentSymbols:  doc.ContentSymbols,
		ContentPatterns: doc.ContentPatterns,
		TypeNames:       doc.TypeNames,
		LastModified:    doc.LastModified,
	}
	return idx.index.Index(doc.Path, bd)
}

// DeleteDocument removes the document for a path.
func (idx *Index) DeleteDocument(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("index is closed")
	}
	return idx.index.Delete(path)
}

// QueryClause is one clause of a boolean query composition.
type QueryClause struct {
	Field string
	Term  string
	// Kind selects term/phrase/wildcard/range matching for this clause.
	Kind ClauseKind
	// RangeMin/RangeMax are used when Kind == ClauseRange, as RFC3339
	// timestamps for the LastModified field.
	RangeMin, RangeMax string
}

type ClauseKind int

const (
	ClauseTerm ClauseKind = iota
	ClausePhrase
	ClauseWildcard
	ClauseRange
)

// BooleanQuery composes MUST/MUST_NOT/SHOULD clauses, matching the spec's
// boolean query-execution contract.
type BooleanQuery struct {
	Must    []QueryClause
	MustNot []QueryClause
	Should  []QueryClause
}

func clauseToQuery(c QueryClause) (query.Query, error) {
	switch c.Kind {
	case ClausePhrase:
		q := bleve.NewMatchPhraseQuery(c.Term)
		q.SetField(c.Field)
		return q, nil
	case ClauseWildcard:
		q := bleve.NewWildcardQuery(c.Term)
		q.SetField(c.Field)
		return q, nil
	case ClauseRange:
		q := bleve.NewDateRangeQuery(parseRFC3339(c.RangeMin), parseRFC3339(c.RangeMax))
		q.SetField(c.Field)
		return q, nil
	default:
		q := bleve.NewTermQuery(strings.ToLower(c.Term))
		q.SetField(c.Field)
		return q, nil
	}
}

func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func (b BooleanQuery) build() (query.Query, error) {
	bq := bleve.NewBooleanQuery()
	for _, c := range b.Must {
		q, err := clauseToQuery(c)
		if err != nil {
			return nil, err
		}
		bq.AddMust(q)
	}
	for _, c := range b.MustNot {
		q, err := clauseToQuery(c)
		if err != nil {
			return nil, err
		}
		bq.AddMustNot(q)
	}
	for _, c := range b.Should {
		q, err := clauseToQuery(c)
		if err != nil {
			return nil, err
		}
		bq.AddShould(q)
	}
	return bq, nil
}

// Search runs a free-text match query against the content field,
// returning highlighted snippets when wantSnippets is set.
func (idx *Index) Search(ctx context.Context, queryStr string, limit int, wantSnippets bool) (SearchResult, error) {
	start := time.Now()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return SearchResult{}, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return SearchResult{Elapsed: time.Since(start)}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.IncludeLocations = true
	if wantSnippets {
		req.Highlight = bleve.NewHighlight()
	}
	req.Fields = []string{"path", "LastModified"}

	result, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}

	return toSearchResult(result, start), nil
}

// SearchBoolean runs a composed MUST/MUST_NOT/SHOULD query, used by the
// find-references fallback path.
func (idx *Index) SearchBoolean(ctx context.Context, b BooleanQuery, limit int) (SearchResult, error) {
	start := time.Now()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return SearchResult{}, fmt.Errorf("index is closed")
	}

	q, err := b.build()
	if err != nil {
		return SearchResult{}, fmt.Errorf("build boolean query: %w", err)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.IncludeLocations = true
	req.Highlight = bleve.NewHighlight()
	req.Fields = []string{"path", "LastModified", "type_names"}

	result, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("boolean search: %w", err)
	}
	return toSearchResult(result, start), nil
}

// MoreLikeThis default minima per §4.3.
const (
	mltMinTermFreq  = 1
	mltMinDocFreq   = 1
	mltMaxQueryTerm = 25
	mltMinWordLen   = 3
	mltMaxWordLen   = 50
)

// MoreLikeThis builds a synthetic query from sourcePath's top terms in
// content+fileName and returns similar documents, excluding the source
// document itself.
func (idx *Index) MoreLikeThis(ctx context.Context, sourcePath string, limit int) (SearchResult, error) {
	start := time.Now()

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return SearchResult{}, fmt.Errorf("index is closed")
	}

	doc, err := idx.index.Document(sourcePath)
	if err != nil {
		return SearchResult{}, fmt.Errorf("fetch source document: %w", err)
	}
	if doc == nil {
		return SearchResult{Elapsed: time.Since(start)}, nil
	}

	terms := extractTopTerms(doc, []string{"content", "fileName"}, mltMaxQueryTerm, mltMinWordLen, mltMaxWordLen)
	if len(terms) == 0 {
		return SearchResult{Elapsed: time.Since(start)}, nil
	}

	bq := bleve.NewBooleanQuery()
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField("content")
		bq.AddShould(tq)
	}
	excludeSelf := bleve.NewTermQuery(sourcePath)
	excludeSelf.SetField("path")
	bq.AddMustNot(excludeSelf)

	req := bleve.NewSearchRequest(bq)
	req.Size = limit + 1 // +1 headroom in case the MustNot exclusion races a stale segment
	req.Fields = []string{"path", "LastModified"}

	result, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("more-like-this search: %w", err)
	}

	sr := toSearchResult(result, start)
	filtered := sr.Hits[:0]
	for _, h := range sr.Hits {
		if h.Path == sourcePath {
			continue
		}
		filtered = append(filtered, h)
		if len(filtered) >= limit {
			break
		}
	}
	sr.Hits = filtered
	return sr, nil
}

// AllIDs returns every document ID in the index, used for consistency
// checks against the structured store.
func (idx *Index) AllIDs() ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("index is closed")
	}
	return idx.allIDsLocked()
}

func (idx *Index) allIDsLocked() ([]string, error) {
	docCount, _ := idx.index.DocCount()
	if docCount == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := idx.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search for all IDs: %w", err)
	}
	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Close releases the index's resources.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.index.Close()
}

func toSearchResult(result *bleve.SearchResult, start time.Time) SearchResult {
	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		h := Hit{
			Path:   hit.ID,
			Score:  hit.Score,
			Fields: map[string]string{},
		}
		if lm, ok := hit.Fields["LastModified"].(string); ok {
			if t, err := time.Parse(time.RFC3339, lm); err == nil {
				h.LastModified = t
			}
		}
		if tn, ok := hit.Fields["type_names"]; ok {
			h.Fields["type_names"] = fmt.Sprintf("%v", tn)
		}
		if frags, ok := hit.Fragments["content"]; ok && len(frags) > 0 {
			h.Snippet = frags[0]
		}
		h.Line = firstMatchedLine(hit)
		hits = append(hits, h)
	}
	return SearchResult{TotalHits: result.Total, Hits: hits, Elapsed: time.Since(start)}
}

// firstMatchedLine approximates the matched line number from the first
// term-location byte offset recorded against the content field; callers
// needing an exact line should re-scan the stored file content.
func firstMatchedLine(hit *search.DocumentMatch) int {
	minStart := -1
	for field, locs := range hit.Locations {
		if field != "content" {
			continue
		}
		for _, occurrences := range locs {
			for _, loc := range occurrences {
				if minStart == -1 || int(loc.Start) < minStart {
					minStart = int(loc.Start)
				}
			}
		}
	}
	if minStart < 0 {
		return 0
	}
	return minStart
}

// extractTopTerms pulls up to maxTerms distinct terms from doc's stored
// term vectors in the given fields, filtered by word length, for
// MoreLikeThis's synthetic query.
func extractTopTerms(doc index.Document, fields []string, maxTerms, minWordLen, maxWordLen int) []string {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		fieldSet[f] = struct{}{}
	}

	seen := make(map[string]struct{})
	var terms []string
	doc.VisitFields(func(f index.Field) {
		if _, want := fieldSet[f.Name()]; !want {
			return
		}
		for _, tok := range TokenizeCode(string(f.Value())) {
			if len(tok) < minWordLen || len(tok) > maxWordLen {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			terms = append(terms, tok)
			if len(terms) >= maxTerms {
				return
			}
		}
	})
	return terms
}

// codeTokenizerConstructor builds the code-aware tokenizer.
func codeTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	return tokenizeToStream(string(input), TokenizeCode)
}

// identifierTokenizerConstructor builds a tokenizer that keeps whole
// identifiers intact (no camelCase splitting), for content_symbols.
func identifierTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &identifierTokenizer{}, nil
}

type identifierTokenizer struct{}

func (t *identifierTokenizer) Tokenize(input []byte) analysis.TokenStream {
	words := tokenRegex.FindAllString(string(input), -1)
	return tokenizeToStream(string(input), func(string) []string { return words })
}

// minimalTokenizerConstructor builds a tokenizer that splits only on
// whitespace, preserving punctuation, for content_patterns.
func minimalTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &minimalTokenizer{}, nil
}

type minimalTokenizer struct{}

func (t *minimalTokenizer) Tokenize(input []byte) analysis.TokenStream {
	words := strings.Fields(string(input))
	return tokenizeToStream(string(input), func(string) []string { return words })
}

func tokenizeToStream(text string, split func(string) []string) analysis.TokenStream {
	tokens := split(text)
	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)
		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

func codeStopFilterConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.TokenFilter, error) {
	return &codeStopFilter{stopWords: BuildStopWordMap(DefaultCodeStopWords)}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// DefaultCodeStopWords contains programming keywords to filter from the
// stemmed "content" field (but not from content_symbols or
// content_patterns, which must preserve every token verbatim).
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}
