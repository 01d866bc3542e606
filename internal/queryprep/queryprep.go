// Package queryprep implements the query preprocessor (C5): it classifies
// a raw query string and declared mode into a target text-index field plus
// a cleaned query string, following the ordered rules in the orchestrator's
// search pipeline.
package queryprep

import (
	"regexp"
	"strings"

	"github.com/codenav/codenavd/internal/errors"
)

// Mode is the search mode a caller may declare, or leave as Auto for
// pattern-based classification.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeStandard Mode = "standard"
	ModeSymbol   Mode = "symbol"
	ModePattern  Mode = "pattern"
	ModeFuzzy    Mode = "fuzzy"
)

// Field is the text-index field a processed query should be run against.
type Field string

const (
	FieldContent         Field = "content"
	FieldContentSymbols  Field = "content_symbols"
	FieldContentPatterns Field = "content_patterns"
)

// Result is the output of Process: the cleaned query, the field to search,
// the mode that was actually used (which may differ from the declared mode
// when Auto classifies or Fuzzy falls back), and a human-readable reason
// for that choice.
type Result struct {
	ProcessedQuery string
	TargetField    Field
	DetectedMode   Mode
	Reason         string
}

var (
	// specialPunctuation matches any character that signals a structural /
	// pattern-style query rather than a bare identifier or phrase.
	specialPunctuation = regexp.MustCompile("[{}()\\[\\]<>\"':;,.!@#$%^&*+=|~`]")

	// identifierPattern matches camelCase, PascalCase, snake_case, and
	// SCREAMING_SNAKE identifiers — single-token technical names.
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// camelOrPascalPattern further narrows identifierPattern to names that
	// actually carry case structure (at least one internal uppercase or
	// underscore boundary), to avoid classifying plain lowercase words as
	// symbols.
	camelOrPascalPattern = regexp.MustCompile(`[a-z][A-Z]|_[A-Za-z]|^[A-Z][a-z]`)

	// keywordFollowedByName matches a code keyword followed by an
	// identifier, e.g. "class Foo" or "def handle_request".
	keywordFollowedByName = regexp.MustCompile(`(?i)^(class|interface|method|function|def|var|let|const)\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

var languageKeywords = []string{"class", "interface", "method", "function", "def", "var", "let", "const"}

// Process applies the five ordered rules to query under the declared mode.
func Process(query string, mode Mode) (Result, error) {
	trimmed := strings.TrimSpace(query)

	// Rule 1: empty/whitespace → Standard on content.
	if trimmed == "" {
		return Result{
			ProcessedQuery: "",
			TargetField:    FieldContent,
			DetectedMode:   ModeStandard,
			Reason:         "empty query defaults to standard search",
		}, nil
	}

	// Rule 2: wildcard validation.
	sanitized, err := validateAndSanitizeWildcards(trimmed)
	if err != nil {
		return Result{}, err
	}
	trimmed = sanitized

	// Rule 5: fuzzy is unimplemented, maps to Standard regardless of the
	// other rules.
	if mode == ModeFuzzy {
		return Result{
			ProcessedQuery: trimmed,
			TargetField:    FieldContent,
			DetectedMode:   ModeStandard,
			Reason:         "fuzzy not supported",
		}, nil
	}

	effectiveMode := mode
	reason := "explicit mode"
	if mode == ModeAuto || mode == "" {
		effectiveMode, reason = classify(trimmed)
	}

	switch effectiveMode {
	case ModePattern:
		return Result{ProcessedQuery: trimmed, TargetField: FieldContentPatterns, DetectedMode: ModePattern, Reason: reason}, nil
	case ModeSymbol:
		// Rule 4: strip a leading language keyword from symbol queries.
		stripped := stripLeadingKeyword(trimmed)
		return Result{ProcessedQuery: stripped, TargetField: FieldContentSymbols, DetectedMode: ModeSymbol, Reason: reason}, nil
	default:
		return Result{ProcessedQuery: trimmed, TargetField: FieldContent, DetectedMode: ModeStandard, Reason: reason}, nil
	}
}

// classify applies rule 3 to determine Auto-mode classification.
func classify(query string) (Mode, string) {
	if specialPunctuation.MatchString(query) {
		return ModePattern, "contains pattern punctuation"
	}
	if isSymbolLike(query) {
		return ModeSymbol, "matches identifier or keyword-name shape"
	}
	return ModeStandard, "no symbol or pattern markers detected"
}

func isSymbolLike(query string) bool {
	if keywordFollowedByName.MatchString(query) {
		return true
	}
	if strings.Contains(query, " ") {
		return false
	}
	return identifierPattern.MatchString(query) && camelOrPascalPattern.MatchString(query)
}

func stripLeadingKeyword(query string) string {
	m := keywordFollowedByName.FindStringSubmatch(query)
	if m != nil {
		return m[2]
	}
	fields := strings.Fields(query)
	if len(fields) == 2 {
		for _, kw := range languageKeywords {
			if strings.EqualFold(fields[0], kw) {
				return fields[1]
			}
		}
	}
	return query
}

// validateAndSanitizeWildcards implements rule 2: a pure-wildcard query
// (only `*` characters) is rejected; a leading `*` with trailing content is
// sanitized by dropping the leading wildcard rather than rejected outright.
func validateAndSanitizeWildcards(query string) (string, error) {
	if query == "" {
		return query, nil
	}
	allStars := true
	for _, r := range query {
		if r != '*' {
			allStars = false
			break
		}
	}
	if allStars {
		return "", errors.NewInvalidQuery("query cannot consist only of wildcard characters")
	}

	if strings.HasPrefix(query, "*") {
		rest := strings.TrimLeft(query, "*")
		if rest != "" {
			return rest, nil
		}
	}
	return query, nil
}
