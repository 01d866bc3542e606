package orchestrator

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

func jsonMarshal(v any) ([]byte, error)   { return json.Marshal(v) }
func jsonUnmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

func parseDurationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// shortenPath reduces an absolute path to "parent/leaf" for display, per
// the reduction algorithm's cleaning step (spec §4.12 step 4).
func shortenPath(path string) string {
	path = filepath.ToSlash(path)
	parts := strings.Split(strings.TrimRight(path, "/"), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

// roundScore rounds a score to 2 decimal places, per the cleaning step.
func roundScore(score float64) float64 {
	return float64(int(score*100+0.5)) / 100
}

// snippetLines bounds how many lines of source surround a symbol's
// definition in goto_definition's snippet field.
const snippetLines = 3

// snippetFromContent extracts a short excerpt of content starting at
// startLine, for display alongside a symbol's signature. Returns "" if
// startLine falls outside content's line range.
func snippetFromContent(content string, startLine, endLine int) string {
	lines := strings.Split(content, "\n")
	if startLine <= 0 || startLine > len(lines) {
		return ""
	}
	end := endLine
	if end <= 0 || end < startLine {
		end = startLine
	}
	if end > startLine+snippetLines {
		end = startLine + snippetLines
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[startLine-1:end], "\n")
}

// windowRegex parses recent_files's "N{min|h|d|w}" syntax.
var windowRegex = regexp.MustCompile(`^(\d+)(min|h|d|w)$`)

// parseWindow converts a duration-window string into a time.Duration.
func parseWindow(s string) (time.Duration, error) {
	m := windowRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, &invalidWindowError{s}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &invalidWindowError{s}
	}
	unit := m[2]
	switch unit {
	case "min":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "w":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return 0, &invalidWindowError{s}
}

type invalidWindowError struct{ window string }

func (e *invalidWindowError) Error() string {
	return "invalid time window: " + e.window + " (expected N followed by min, h, d, or w)"
}
