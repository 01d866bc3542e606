package orchestrator

import "regexp"

// referencePattern pairs a regex builder (given the symbol name, it returns
// the compiled pattern) with the reference kind it identifies. Order matters: the
// first pattern to match wins, from most to least specific.
type referencePattern struct {
	kind string
	re   func(name string) *regexp.Regexp
}

var referencePatterns = []referencePattern{
	{"type-instantiation", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`\bnew\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	}},
	{"generic-type-parameter", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`<\s*` + regexp.QuoteMeta(name) + `\s*[,>]`)
	}},
	{"type-inheritance", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`\bextends\s+` + regexp.QuoteMeta(name) + `\b`)
	}},
	{"interface-implementation", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`\bimplements\s+[\w, ]*\b` + regexp.QuoteMeta(name) + `\b`)
	}},
	{"method-override", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`\boverride\b[^;{]*\b` + regexp.QuoteMeta(name) + `\s*\(`)
	}},
	{"type-reference", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`:\s*` + regexp.QuoteMeta(name) + `\b`)
	}},
	{"method-call", func(name string) *regexp.Regexp {
		return regexp.MustCompile(regexp.QuoteMeta(name) + `\s*\(`)
	}},
	{"method-reference", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`\.\s*` + regexp.QuoteMeta(name) + `\b`)
	}},
	{"method-usage", func(name string) *regexp.Regexp {
		return regexp.MustCompile(`\b(import|using)\s+[\w.]*\b` + regexp.QuoteMeta(name) + `\b`)
	}},
}

// classifyReference inspects the matched line/context and returns the most
// specific reference kind found, falling back to "usage".
func classifyReference(name, context string) string {
	for _, rp := range referencePatterns {
		if rp.re(name).MatchString(context) {
			return rp.kind
		}
	}
	return "usage"
}
