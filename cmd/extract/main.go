// Package main implements the reference `extract` binary: the external
// symbol-extractor collaborator the core module talks to over
// os/exec + stdout JSON (the wire contract described in the indexer's
// internal/extractor client).
//
// Usage:
//
//	extract <file>
//
// Prints one JSON object to stdout and exits 0 on success, or exits
// non-zero with a {"success": false, "error": "..."} object on failure.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/codenav/codenavd/internal/chunk"
)

func main() {
	if len(os.Args) != 2 {
		fail(fmt.Errorf("usage: extract <file>"))
	}

	path := os.Args[1]
	source, err := os.ReadFile(path)
	if err != nil {
		fail(fmt.Errorf("read %s: %w", path, err))
	}

	resp, err := extractFile(path, source)
	if err != nil {
		fail(err)
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(resp); err != nil {
		fail(fmt.Errorf("encode response: %w", err))
	}
}

func fail(err error) {
	resp := wireResponse{Success: false, Error: err.Error()}
	_ = json.NewEncoder(os.Stdout).Encode(resp)
	os.Exit(1)
}

// wireType mirrors one element of the `types` array in the extractor's
// JSON contract.
type wireType struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
}

// wireMethod mirrors one element of the `methods` array.
type wireMethod struct {
	Name       string `json:"name"`
	ReturnType string `json:"return_type"`
}

// wireParameter mirrors one element of a wireSymbol's `parameters` array.
type wireParameter struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// wireSymbol mirrors one element of the `symbols` array.
type wireSymbol struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	FilePath    string          `json:"file_path"`
	StartLine   int             `json:"start_line"`
	StartCol    int             `json:"start_col"`
	EndLine     int             `json:"end_line"`
	EndCol      int             `json:"end_col"`
	Signature   string          `json:"signature,omitempty"`
	DocComment  string          `json:"doc_comment,omitempty"`
	Visibility  string          `json:"visibility,omitempty"`
	ParentID    string          `json:"parent_id,omitempty"`
	Confidence  float64         `json:"confidence"`
	Inheritance []string        `json:"inheritance,omitempty"`
	Parameters  []wireParameter `json:"parameters,omitempty"`
}

// wireIdentifier mirrors one element of the `identifiers` array.
type wireIdentifier struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Kind               string  `json:"kind"`
	FilePath           string  `json:"file_path"`
	StartLine          int     `json:"start_line"`
	StartCol           int     `json:"start_col"`
	EndLine            int     `json:"end_line"`
	EndCol             int     `json:"end_col"`
	ContainingSymbolID string  `json:"containing_symbol_id,omitempty"`
	TargetSymbolID     string  `json:"target_symbol_id,omitempty"`
	Confidence         float64 `json:"confidence"`
	CodeContext        string  `json:"code_context,omitempty"`
}

// wireResponse is the full JSON object printed to stdout.
type wireResponse struct {
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	Types       []wireType       `json:"types"`
	Methods     []wireMethod     `json:"methods"`
	Symbols     []wireSymbol     `json:"symbols"`
	Identifiers []wireIdentifier `json:"identifiers"`
}

func extractFile(path string, source []byte) (wireResponse, error) {
	registry := chunk.DefaultRegistry()

	ext := extOf(path)
	config, ok := registry.GetByExtension(ext)
	if !ok {
		return wireResponse{}, fmt.Errorf("unsupported file extension: %s", ext)
	}

	parser := chunk.NewParserWithRegistry(registry)
	defer parser.Close()

	tree, err := parser.Parse(context.Background(), source, config.Name)
	if err != nil {
		return wireResponse{}, fmt.Errorf("parse %s: %w", path, err)
	}

	symbolExtractor := chunk.NewSymbolExtractorWithRegistry(registry)
	chunkSymbols := symbolExtractor.Extract(tree, source)

	symbols := make([]wireSymbol, 0, len(chunkSymbols))
	types := make([]wireType, 0)
	methods := make([]wireMethod, 0)

	for _, sym := range chunkSymbols {
		kind := symbolKind(sym, config.Name)
		id := symbolID(path, sym.Name, sym.StartLine)

		symbols = append(symbols, wireSymbol{
			ID:          id,
			Name:        sym.Name,
			Kind:        kind,
			FilePath:    path,
			StartLine:   sym.StartLine,
			EndLine:     sym.EndLine,
			Signature:   sym.Signature,
			DocComment:  sym.DocComment,
			Visibility:  visibility(sym.Name, config.Name),
			Confidence:  1.0,
			Inheritance: parseInheritance(sym.Signature, kind, config.Name),
			Parameters:  parseParameters(sym.Signature, kind, config.Name),
		})

		switch kind {
		case "class", "interface", "struct", "enum":
			types = append(types, wireType{Name: sym.Name, Kind: kind, StartLine: sym.StartLine})
		case "method":
			methods = append(methods, wireMethod{Name: sym.Name, ReturnType: returnType(sym.Signature, config.Name)})
		}
	}

	identifiers := extractIdentifiers(tree, source, path, config.Name)

	return wireResponse{
		Success:     true,
		Types:       types,
		Methods:     methods,
		Symbols:     symbols,
		Identifiers: identifiers,
	}, nil
}

// symbolKind maps the in-process chunk.SymbolType onto the wider wire
// vocabulary the spec's Symbol.Kind uses, refining Go's single "type"
// bucket into "interface" when the signature mentions interface and
// "struct" otherwise.
func symbolKind(sym *chunk.Symbol, language string) string {
	switch sym.Type {
	case chunk.SymbolTypeFunction:
		return "function"
	case chunk.SymbolTypeMethod:
		return "method"
	case chunk.SymbolTypeClass:
		return "class"
	case chunk.SymbolTypeInterface:
		return "interface"
	case chunk.SymbolTypeConstant, chunk.SymbolTypeVariable:
		return "variable"
	case chunk.SymbolTypeType:
		if language == "go" {
			if strings.Contains(sym.Signature, "interface") {
				return "interface"
			}
			if strings.Contains(sym.Signature, "struct") {
				return "struct"
			}
		}
		return "struct"
	default:
		return "variable"
	}
}

func visibility(name, language string) string {
	if name == "" {
		return "private"
	}
	switch language {
	case "go":
		if name[0] >= 'A' && name[0] <= 'Z' {
			return "public"
		}
		return "private"
	case "python":
		if strings.HasPrefix(name, "_") {
			return "private"
		}
		return "public"
	default:
		return "public"
	}
}

// returnType best-effort extracts a Go function/method's trailing return
// type from its already-extracted signature line; empty if ambiguous.
func returnType(signature, language string) string {
	if language != "go" {
		return ""
	}
	idx := strings.LastIndex(signature, ")")
	if idx == -1 || idx+1 >= len(signature) {
		return ""
	}
	ret := strings.TrimSpace(signature[idx+1:])
	return ret
}

func symbolID(path, name string, startLine int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", path, name, startLine)))
	return hex.EncodeToString(sum[:])[:16]
}

var (
	extendsPattern    = regexp.MustCompile(`\bextends\s+([\w.$]+)`)
	implementsPattern = regexp.MustCompile(`\bimplements\s+([\w.$,\s]+)`)
)

// parseInheritance best-effort extracts a type symbol's declared supertypes
// from its one-line declaration signature (internal/chunk's
// extractTypeSignature output): Python base classes, TS/JS extends/implements
// clauses. Go's struct/interface embedding lives in the type body rather than
// the declaration line the generic parser captures, so Go symbols always
// report none here.
func parseInheritance(signature, kind, language string) []string {
	switch kind {
	case "class", "interface", "struct", "enum":
	default:
		return nil
	}

	switch language {
	case "python":
		groups := balancedParenGroups(signature)
		if len(groups) == 0 {
			return nil
		}
		return cleanNames(splitTopLevel(groups[0], ','), "object")

	case "typescript", "tsx", "javascript", "jsx":
		var bases []string
		if m := extendsPattern.FindStringSubmatch(signature); m != nil {
			bases = append(bases, strings.TrimSpace(m[1]))
		}
		if m := implementsPattern.FindStringSubmatch(signature); m != nil {
			bases = append(bases, cleanNames(strings.Split(m[1], ","))...)
		}
		return bases

	default:
		return nil
	}
}

// parseParameters best-effort extracts a function/method symbol's formal
// parameter list from its one-line declaration signature, adapting the
// generic tree-sitter-backed parser's plain-text signature into the
// structured shape goto_definition surfaces.
func parseParameters(signature, kind, language string) []wireParameter {
	if kind != "function" && kind != "method" {
		return nil
	}
	groups := balancedParenGroups(signature)
	if len(groups) == 0 {
		return nil
	}
	idx := 0
	if kind == "method" && language == "go" && len(groups) > 1 {
		idx = 1 // groups[0] is the receiver, e.g. "func (r *Receiver) Name(...)"
	}
	if idx >= len(groups) {
		return nil
	}

	var params []wireParameter
	for _, item := range splitTopLevel(groups[idx], ',') {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if p, ok := parseParameter(item, language); ok {
			params = append(params, p)
		}
	}
	return params
}

func parseParameter(item, language string) (wireParameter, bool) {
	switch language {
	case "python", "typescript", "tsx", "javascript", "jsx":
		name := item
		if eq := strings.Index(name, "="); eq != -1 {
			name = name[:eq]
		}
		name = strings.TrimSpace(name)
		typ := ""
		if colon := strings.Index(name, ":"); colon != -1 {
			typ = strings.TrimSpace(name[colon+1:])
			name = strings.TrimSpace(name[:colon])
		}
		name = strings.TrimSuffix(name, "?")
		name = strings.TrimPrefix(strings.TrimPrefix(name, "**"), "*")
		name = strings.TrimPrefix(name, "...")
		if name == "" || name == "self" || name == "cls" {
			return wireParameter{}, false
		}
		return wireParameter{Name: name, Type: typ}, true

	default: // go
		fields := strings.Fields(item)
		if len(fields) == 0 {
			return wireParameter{}, false
		}
		if len(fields) == 1 {
			return wireParameter{Name: fields[0]}, true
		}
		return wireParameter{Name: fields[0], Type: strings.Join(fields[1:], " ")}, true
	}
}

// cleanNames trims each item and drops blanks plus anything matching skip.
func cleanNames(items []string, skip ...string) []string {
	var out []string
	for _, it := range items {
		name := strings.TrimSpace(it)
		if name == "" {
			continue
		}
		found := false
		for _, s := range skip {
			if name == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, name)
		}
	}
	return out
}

// balancedParenGroups returns the contents of each top-level parenthesized
// group in s, in order, excluding the parens themselves.
func balancedParenGroups(s string) []string {
	var groups []string
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					groups = append(groups, s[start:i])
					start = -1
				}
			}
		}
	}
	return groups
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside (), [],
// {}, or <> (generic type parameters).
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + len(string(sep))
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// identifierNodeTypes enumerates, per language, the node types that denote
// a textual occurrence of a name worth tracking as an Identifier — call
// sites and member accesses, the two kinds trace_call_path/find_references
// actually consume.
var identifierNodeTypes = map[string]map[string]string{
	"go": {
		"call_expression":     "call",
		"selector_expression": "member_access",
	},
	"typescript": {
		"call_expression":    "call",
		"member_expression":  "member_access",
	},
	"tsx": {
		"call_expression":   "call",
		"member_expression": "member_access",
	},
	"javascript": {
		"call_expression":   "call",
		"member_expression": "member_access",
	},
	"jsx": {
		"call_expression":   "call",
		"member_expression": "member_access",
	},
	"python": {
		"call":       "call",
		"attribute":  "member_access",
	},
}

func extractIdentifiers(tree *chunk.Tree, source []byte, path, language string) []wireIdentifier {
	nodeKinds, ok := identifierNodeTypes[language]
	if !ok || tree.Root == nil {
		return []wireIdentifier{}
	}

	identifiers := make([]wireIdentifier, 0)
	tree.Root.Walk(func(n *chunk.Node) bool {
		kind, ok := nodeKinds[n.Type]
		if !ok {
			return true
		}

		name := identifierName(n, source, n.Type)
		if name == "" {
			return true
		}

		identifiers = append(identifiers, wireIdentifier{
			ID:          symbolID(path, "id:"+name, int(n.StartPoint.Row)+1),
			Name:        name,
			Kind:        kind,
			FilePath:    path,
			StartLine:   int(n.StartPoint.Row) + 1,
			StartCol:    int(n.StartPoint.Column),
			EndLine:     int(n.EndPoint.Row) + 1,
			EndCol:      int(n.EndPoint.Column),
			Confidence:  0.8,
			CodeContext: firstLine(n.GetContent(source)),
		})
		return true
	})
	return identifiers
}

// identifierName extracts the called/accessed name from a call or
// member-access node; the leaf identifier closest to the call target.
func identifierName(n *chunk.Node, source []byte, nodeType string) string {
	switch nodeType {
	case "call_expression", "call":
		if len(n.Children) == 0 {
			return ""
		}
		target := n.Children[0]
		return lastIdentifier(target, source)
	case "selector_expression", "member_expression", "attribute":
		return lastIdentifier(n, source)
	}
	return ""
}

// lastIdentifier returns the content of the rightmost identifier/
// field_identifier/property_identifier leaf under n.
func lastIdentifier(n *chunk.Node, source []byte) string {
	leafTypes := map[string]bool{
		"identifier":          true,
		"field_identifier":    true,
		"property_identifier": true,
	}
	var result string
	n.Walk(func(cur *chunk.Node) bool {
		if leafTypes[cur.Type] {
			result = cur.GetContent(source)
		}
		return true
	})
	return result
}

func firstLine(content string) string {
	if idx := strings.IndexByte(content, '\n'); idx != -1 {
		return content[:idx]
	}
	return content
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
