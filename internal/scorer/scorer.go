// Package scorer implements the multi-factor scorer (C6): it wraps a base
// query's hits with a commutative chain of re-ranking factors, each
// expressed as a ScoreFactor function in the teacher's functional-options
// idiom (internal/search.EngineOption in the original).
package scorer

import (
	"math"
	"path"
	"regexp"
	"strings"
	"time"
)

// Hit is the minimal shape a scored result must expose. Callers adapt their
// own result types to this interface rather than the scorer depending on
// any one component's concrete hit type.
type Hit interface {
	Path() string
	Content() string
	LastModified() time.Time
	IsExactPhraseMatch(query string, caseSensitive bool) bool
}

// Query carries the context a factor may need beyond the hit itself.
type Query struct {
	Text          string
	Tokens        []string
	CaseSensitive bool
	// IsAboutTests disables the PathRelevance test-path deboost when the
	// query itself is clearly about tests (e.g. contains "test").
	IsAboutTests bool
	// IsTypeName indicates the query names a type, enabling
	// InterfaceImplementationFactor.
	IsTypeName bool
}

// Factor computes a multiplicative adjustment to a hit's base score. Factors
// are applied in an unspecified order and must be commutative: the product
// of any permutation of the same multiset of factors yields the same final
// score (floating-point associativity aside).
type Factor func(hit Hit, q Query) float64

// Scorer applies an ordered (but commutatively-equivalent) chain of Factors
// to a base score.
type Scorer struct {
	factors []Factor
}

// Option configures a Scorer, mirroring the teacher's EngineOption idiom.
type Option func(*Scorer)

// New builds a Scorer from the given options. With no options, Score is the
// identity function.
func New(opts ...Option) *Scorer {
	s := &Scorer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithFactor appends an arbitrary caller-supplied factor.
func WithFactor(f Factor) Option {
	return func(s *Scorer) { s.factors = append(s.factors, f) }
}

// WithDefaultFactors appends the six spec-defined factors in the package's
// default configuration.
func WithDefaultFactors() Option {
	return func(s *Scorer) {
		s.factors = append(s.factors,
			PathRelevance(),
			FilenameRelevance(),
			FileTypeRelevance(),
			RecencyBoost(30*24*time.Hour),
			ExactMatchBoost(),
			InterfaceImplementationFactor(),
		)
	}
}

// Score multiplies baseScore by every configured factor's output.
func (s *Scorer) Score(baseScore float64, hit Hit, q Query) float64 {
	final := baseScore
	for _, f := range s.factors {
		final *= f(hit, q)
	}
	return final
}

var testPathPattern = regexp.MustCompile(`(?i)/tests?/|/spec/|/fixtures/`)

// PathRelevance deboosts paths under test/spec/fixture directories unless
// the query itself is about tests.
func PathRelevance() Factor { return pathRelevance(0.5) }

// pathRelevance is PathRelevance parameterized by its deboost multiplier,
// wired from config.ScoringConfig.TestPathDeboost via WithConfiguredFactors.
func pathRelevance(deboost float64) Factor {
	return func(hit Hit, q Query) float64 {
		if q.IsAboutTests {
			return 1.0
		}
		if testPathPattern.MatchString(hit.Path()) {
			return deboost
		}
		return 1.0
	}
}

// FilenameRelevance boosts hits whose filename stem contains a query token.
func FilenameRelevance() Factor { return filenameRelevance(1.3) }

// filenameRelevance is FilenameRelevance parameterized by its boost
// multiplier, wired from config.ScoringConfig.FilenameMatchBoost.
func filenameRelevance(boost float64) Factor {
	return func(hit Hit, q Query) float64 {
		stem := strings.ToLower(strings.TrimSuffix(path.Base(hit.Path()), path.Ext(hit.Path())))
		for _, tok := range q.Tokens {
			if tok == "" {
				continue
			}
			if strings.Contains(stem, strings.ToLower(tok)) {
				return boost
			}
		}
		return 1.0
	}
}

var recognizedCodeExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".java": true, ".kt": true, ".c": true,
	".cpp": true, ".h": true, ".hpp": true, ".rb": true, ".php": true,
	".swift": true, ".cs": true,
}

var configDataExtensions = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".cfg": true, ".lock": true,
}

// FileTypeRelevance prefers recognized code languages over config/data
// files.
func FileTypeRelevance() Factor {
	return func(hit Hit, _ Query) float64 {
		ext := strings.ToLower(path.Ext(hit.Path()))
		switch {
		case recognizedCodeExtensions[ext]:
			return 1.1
		case configDataExtensions[ext]:
			return 0.85
		default:
			return 1.0
		}
	}
}

// RecencyBoost increases monotonically with last_modified: 1.2x at age zero,
// tapering linearly to 1.0 at window, and 1.0 for files older than window.
func RecencyBoost(window time.Duration) Factor { return recencyBoostWindow(window, 0.2) }

// recencyBoostWindow is RecencyBoost parameterized by its peak-bonus
// magnitude, kept separate from the half-life variant below since the
// default factors are expressed as a flat window rather than a decay curve.
func recencyBoostWindow(window time.Duration, bonus float64) Factor {
	return func(hit Hit, _ Query) float64 {
		age := time.Since(hit.LastModified())
		if age < 0 {
			age = 0
		}
		if age >= window {
			return 1.0
		}
		frac := 1.0 - float64(age)/float64(window)
		return 1.0 + bonus*frac
	}
}

// recencyBoostHalfLife is the configured-path equivalent of RecencyBoost: it
// decays exponentially with the given half-life (in days) instead of
// tapering linearly to a fixed window, and clamps at cap. Wired from
// config.ScoringConfig.RecencyHalfLife/RecencyBoostCap via
// WithConfiguredFactors.
func recencyBoostHalfLife(halfLifeDays, maxBoost float64) Factor {
	return func(hit Hit, _ Query) float64 {
		if halfLifeDays <= 0 {
			return 1.0
		}
		ageDays := time.Since(hit.LastModified()).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		decay := math.Pow(0.5, ageDays/halfLifeDays)
		boost := 1.0 + (maxBoost-1.0)*decay
		if boost > maxBoost {
			return maxBoost
		}
		return boost
	}
}

// ExactMatchBoost boosts hits where the query appears verbatim as a phrase
// in the content.
func ExactMatchBoost() Factor { return exactMatchBoost(1.25) }

// exactMatchBoost is ExactMatchBoost parameterized by its boost multiplier,
// wired from config.ScoringConfig.ExactMatchBoost via WithConfiguredFactors.
func exactMatchBoost(boost float64) Factor {
	return func(hit Hit, q Query) float64 {
		if q.Text == "" {
			return 1.0
		}
		if hit.IsExactPhraseMatch(q.Text, q.CaseSensitive) {
			return boost
		}
		return 1.0
	}
}

var mockFakePattern = regexp.MustCompile(`(?i)\b(mock|fake|stub)[A-Za-z0-9_]*\b`)

// InterfaceImplementationFactor deboosts documents dominated by mock/fake
// implementations when the query names a type.
func InterfaceImplementationFactor() Factor { return interfaceImplementationFactor(0.7) }

// interfaceImplementationFactor is InterfaceImplementationFactor parameterized
// by its deboost multiplier, wired from
// config.ScoringConfig.MockImplementationDeboost via WithConfiguredFactors.
func interfaceImplementationFactor(deboost float64) Factor {
	return func(hit Hit, q Query) float64 {
		if !q.IsTypeName {
			return 1.0
		}
		matches := mockFakePattern.FindAllString(hit.Content(), -1)
		if len(matches) >= 3 {
			return deboost
		}
		return 1.0
	}
}

// ScoringParams holds the tunables of config.ScoringConfig, decoupling this
// package from the config package. Zero-value fields fall back to the
// package's built-in defaults (the same values WithDefaultFactors uses).
type ScoringParams struct {
	TestPathDeboost           float64
	FilenameMatchBoost        float64
	ExactMatchBoost           float64
	RecencyHalfLife           float64
	RecencyBoostCap           float64
	MockImplementationDeboost float64
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// WithConfiguredFactors appends the six spec-defined factors parameterized
// from p, falling back per-field to WithDefaultFactors' defaults when p
// leaves a field at its zero value.
func WithConfiguredFactors(p ScoringParams) Option {
	return func(s *Scorer) {
		s.factors = append(s.factors,
			pathRelevance(orDefault(p.TestPathDeboost, 0.5)),
			filenameRelevance(orDefault(p.FilenameMatchBoost, 1.3)),
			FileTypeRelevance(),
			recencyBoostHalfLife(orDefault(p.RecencyHalfLife, 30), orDefault(p.RecencyBoostCap, 1.2)),
			exactMatchBoost(orDefault(p.ExactMatchBoost, 1.25)),
			interfaceImplementationFactor(orDefault(p.MockImplementationDeboost, 0.7)),
		)
	}
}
