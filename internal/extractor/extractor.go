// Package extractor implements the indexer's client side of the external
// symbol-extractor interface (spec §6): an `os/exec`-based subprocess
// contract, `extract <file>` producing a JSON object on stdout.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/store"
)

// DefaultTimeout bounds a single extraction subprocess.
const DefaultTimeout = 10 * time.Second

// Config configures the extractor client.
type Config struct {
	// BinaryPath is the path to the `extract` executable.
	BinaryPath string
	// Timeout bounds a single file's extraction.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig(binaryPath string) Config {
	return Config{BinaryPath: binaryPath, Timeout: DefaultTimeout}
}

// Client invokes the external extractor binary per §6.
type Client struct {
	cfg Config
}

// New creates an extractor client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg}
}

// wireType mirrors one element of the extractor's JSON `types` array.
type wireType struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
}

// wireMethod mirrors one element of the extractor's JSON `methods` array.
type wireMethod struct {
	Name       string `json:"name"`
	ReturnType string `json:"return_type"`
}

// wireParameter mirrors one element of a wireSymbol's `parameters` array.
type wireParameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// wireSymbol mirrors one element of the extractor's JSON `symbols` array.
type wireSymbol struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	FilePath    string          `json:"file_path"`
	StartLine   int             `json:"start_line"`
	StartCol    int             `json:"start_col"`
	EndLine     int             `json:"end_line"`
	EndCol      int             `json:"end_col"`
	Signature   string          `json:"signature"`
	DocComment  string          `json:"doc_comment"`
	Visibility  string          `json:"visibility"`
	ParentID    string          `json:"parent_id"`
	Confidence  float64         `json:"confidence"`
	Inheritance []string        `json:"inheritance"`
	Parameters  []wireParameter `json:"parameters"`
}

// wireIdentifier mirrors one element of the extractor's JSON `identifiers` array.
type wireIdentifier struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Kind               string  `json:"kind"`
	FilePath           string  `json:"file_path"`
	StartLine          int     `json:"start_line"`
	StartCol           int     `json:"start_col"`
	EndLine            int     `json:"end_line"`
	EndCol             int     `json:"end_col"`
	ContainingSymbolID string  `json:"containing_symbol_id"`
	TargetSymbolID     string  `json:"target_symbol_id"`
	Confidence         float64 `json:"confidence"`
	CodeContext        string  `json:"code_context"`
}

// wireResponse mirrors the extractor's full JSON stdout object.
type wireResponse struct {
	Success     bool             `json:"success"`
	Error       string           `json:"error"`
	Types       []wireType       `json:"types"`
	Methods     []wireMethod     `json:"methods"`
	Symbols     []wireSymbol     `json:"symbols"`
	Identifiers []wireIdentifier `json:"identifiers"`
}

// Result is the parsed, domain-typed extraction output for one file.
type Result struct {
	Symbols     []*store.Symbol
	Identifiers []*store.Identifier
}

// Extract runs `extract <path>` and parses its JSON output. A non-zero exit
// or malformed JSON is reported as an ExtractorFailure; the caller (C7) logs
// and skips the file per §4.7, never aborting the rest of the crawl.
func (c *Client) Extract(ctx context.Context, absPath, language string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.BinaryPath, absPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var wire wireResponse
	if decodeErr := json.Unmarshal(stdout.Bytes(), &wire); decodeErr != nil {
		if runErr != nil {
			return Result{}, errors.NewExtractorFailure(absPath, fmt.Errorf("%w (stderr: %s)", runErr, stderr.String()))
		}
		return Result{}, errors.NewExtractorFailure(absPath, fmt.Errorf("parse extractor output: %w", decodeErr))
	}

	if !wire.Success {
		msg := wire.Error
		if msg == "" {
			msg = "extractor reported failure with no message"
		}
		return Result{}, errors.NewExtractorFailure(absPath, fmt.Errorf("%s", msg))
	}

	return toResult(wire, absPath, language), nil
}

func toResult(wire wireResponse, filePath, language string) Result {
	symbols := make([]*store.Symbol, 0, len(wire.Symbols))
	for _, s := range wire.Symbols {
		var params []store.Parameter
		if len(s.Parameters) > 0 {
			params = make([]store.Parameter, 0, len(s.Parameters))
			for _, p := range s.Parameters {
				params = append(params, store.Parameter{Name: p.Name, Type: p.Type})
			}
		}

		symbols = append(symbols, &store.Symbol{
			ID:          s.ID,
			Name:        s.Name,
			Kind:        store.SymbolKind(s.Kind),
			Language:    language,
			FilePath:    filePath,
			Signature:   s.Signature,
			Span:        store.Span{StartLine: s.StartLine, StartCol: s.StartCol, EndLine: s.EndLine, EndCol: s.EndCol},
			DocComment:  s.DocComment,
			Visibility:  s.Visibility,
			ParentID:    s.ParentID,
			Confidence:  confidenceOrDefault(s.Confidence),
			Inheritance: s.Inheritance,
			Parameters:  params,
		})
	}

	identifiers := make([]*store.Identifier, 0, len(wire.Identifiers))
	for _, id := range wire.Identifiers {
		identifiers = append(identifiers, &store.Identifier{
			ID:                 id.ID,
			Name:               id.Name,
			Kind:               store.IdentifierKind(id.Kind),
			Language:           language,
			FilePath:           filePath,
			Span:               store.Span{StartLine: id.StartLine, StartCol: id.StartCol, EndLine: id.EndLine, EndCol: id.EndCol},
			ContainingSymbolID: id.ContainingSymbolID,
			TargetSymbolID:     id.TargetSymbolID,
			Confidence:         confidenceOrDefault(id.Confidence),
			CodeContext:        id.CodeContext,
		})
	}

	return Result{Symbols: symbols, Identifiers: identifiers}
}

func confidenceOrDefault(c float64) float64 {
	if c == 0 {
		return 1.0
	}
	return c
}
