package orchestrator

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	amerrors "github.com/codenav/codenavd/internal/errors"
	"github.com/codenav/codenavd/internal/respbuilder"
)

// replaceChange is one file's worth of line-level replacements, whether in
// preview or apply mode.
type replaceChange struct {
	Path         string   `json:"path"`
	LinesChanged int      `json:"linesChanged"`
	Before       []string `json:"before,omitempty"`
	After        []string `json:"after,omitempty"`
	Applied      bool     `json:"applied"`
}

// lineMatcher abstracts literal vs regex matching for one line.
type lineMatcher struct {
	re      *regexp.Regexp
	literal string
}

func newLineMatcher(pattern string, useRegex bool) (*lineMatcher, error) {
	if !useRegex {
		return &lineMatcher{literal: pattern}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &lineMatcher{re: re}, nil
}

func (m *lineMatcher) replace(line, replacement string) (string, bool) {
	if m.re != nil {
		if !m.re.MatchString(line) {
			return line, false
		}
		return m.re.ReplaceAllString(line, replacement), true
	}
	if !strings.Contains(line, m.literal) {
		return line, false
	}
	return strings.ReplaceAll(line, m.literal, replacement), true
}

// handleSearchAndReplace previews or applies a literal/regex find-and-replace
// across indexed files. Apply mode takes a per-file advisory lock before
// writing, matching the teacher's resourcestore locking idiom.
func (o *Orchestrator) handleSearchAndReplace(ctx context.Context, req *mcp.CallToolRequest, p SearchAndReplaceParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("search_and_replace", p.CommonParams)

	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}
	if p.Pattern == "" {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery("pattern is required"), rc, start), nil
	}

	matcher, err := newLineMatcher(p.Pattern, p.UseRegex)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidPattern("invalid regex pattern: "+p.Pattern), rc, start), nil
	}

	searchTerm := p.Pattern
	if p.UseRegex {
		searchTerm = stripRegexMeta(p.Pattern)
	}
	files, err := o.store.FullTextSearch(ctx, searchTerm, 0, p.FileGlob)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	apply := !p.Preview
	items := make([]respbuilder.Item, 0, len(files))
	totalChanged := 0
	for _, f := range files {
		change, changed := applyLineReplacements(f.Path, f.Content, matcher, p.Replace, apply)
		if !changed {
			continue
		}
		items = append(items, change)
		totalChanged++
	}

	strategy := respbuilder.Strategy{
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			mode := "previewed"
			if apply {
				mode = "applied"
			}
			return []string{fmt.Sprintf("%s replacements across %d file(s)", mode, total)}
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	return nil, *resp, nil
}

// applyLineReplacements computes (and, if apply is set, writes) every line
// change in content, returning the change record and whether anything
// changed.
func applyLineReplacements(path, content string, matcher *lineMatcher, replacement string, apply bool) (replaceChange, bool) {
	lines := strings.Split(content, "\n")
	var before, after []string
	changed := false
	for i, line := range lines {
		newLine, hit := matcher.replace(line, replacement)
		if !hit {
			continue
		}
		changed = true
		before = append(before, line)
		after = append(after, newLine)
		lines[i] = newLine
	}
	if !changed {
		return replaceChange{}, false
	}

	applied := false
	if apply {
		if err := writeFileLocked(path, strings.Join(lines, "\n")); err == nil {
			applied = true
		}
	}

	return replaceChange{
		Path:         path,
		LinesChanged: len(before),
		Before:       before,
		After:        after,
		Applied:      applied,
	}, true
}

// writeFileLocked takes an advisory lock on path+".lock" before writing, so
// concurrent apply calls against the same file serialize.
func writeFileLocked(path, content string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	info, err := os.Stat(path)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode()
	}
	return os.WriteFile(path, []byte(content), mode)
}

var regexMetaChars = regexp.MustCompile(`\\.|[.*+?()\[\]{}|^$]`)

// stripRegexMeta reduces a regex pattern to a plausible literal substring for
// narrowing a full-text search candidate set; the regex itself is still
// applied line-by-line afterward.
func stripRegexMeta(pattern string) string {
	return regexMetaChars.ReplaceAllString(pattern, "")
}

// handleSmartRefactor renames a symbol across its definition and every
// resolved reference, built atop find_references (identifier resolution) and
// search_and_replace (the actual text substitution).
func (o *Orchestrator) handleSmartRefactor(ctx context.Context, req *mcp.CallToolRequest, p SmartRefactorParams) (*mcp.CallToolResult, respbuilder.Response, error) {
	start := time.Now()
	rc := o.buildContext("smart_refactor", p.CommonParams)

	if err := o.requireIndex(ctx); err != nil {
		return nil, *respbuilder.BuildError(err, rc, start), nil
	}
	if p.SymbolName == "" || p.NewName == "" {
		return nil, *respbuilder.BuildError(amerrors.NewInvalidQuery("symbol_name and new_name are required"), rc, start), nil
	}

	identifiers, err := o.store.GetIdentifiersByName(ctx, p.SymbolName, true)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}
	symbols, err := o.store.GetSymbolsByName(ctx, p.SymbolName, true)
	if err != nil {
		return nil, *respbuilder.BuildError(amerrors.Wrap(amerrors.ErrCodeSearchFailed, err), rc, start), nil
	}

	paths := map[string]bool{}
	for _, id := range identifiers {
		paths[id.FilePath] = true
	}
	for _, s := range symbols {
		paths[s.FilePath] = true
	}
	if len(paths) == 0 {
		return nil, *respbuilder.BuildError(amerrors.NewFileNotIndexed(p.SymbolName), rc, start), nil
	}

	matcher := &lineMatcher{re: regexp.MustCompile(`\b` + regexp.QuoteMeta(p.SymbolName) + `\b`)}
	apply := !p.Preview

	items := make([]respbuilder.Item, 0, len(paths))
	for path := range paths {
		f, err := o.store.GetFile(ctx, path)
		if err != nil || f == nil {
			continue
		}
		change, changed := applyLineReplacements(path, f.Content, matcher, p.NewName, apply)
		if !changed {
			continue
		}
		items = append(items, change)
	}

	strategy := respbuilder.Strategy{
		Less: func(a, b respbuilder.Item) bool {
			return a.(replaceChange).Path < b.(replaceChange).Path
		},
		InsightFn: func(kept []respbuilder.Item, total int, truncated bool) []string {
			mode := "previewed"
			if apply {
				mode = "applied"
			}
			return []string{fmt.Sprintf("%s rename of %q to %q across %d file(s)", mode, p.SymbolName, p.NewName, total)}
		},
		ActionFn: func(kept []respbuilder.Item, total int) []respbuilder.Action {
			if !apply {
				return []respbuilder.Action{{
					Action:      "smart_refactor",
					Description: "re-run with preview=false to apply this rename",
					Priority:    1,
					Parameters:  map[string]any{"symbol_name": p.SymbolName, "new_name": p.NewName, "preview": false},
				}}
			}
			return nil
		},
	}

	resp := o.builder.Build(ctx, items, strategy, rc)
	return nil, *resp, nil
}
