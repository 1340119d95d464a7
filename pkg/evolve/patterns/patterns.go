// Package patterns derives detection regexes from taxonomy entries for
// content scanners. Patterns are returned as strings; compiling and running
// them is the scanner's job.
package patterns

import (
	"fmt"
	"regexp"

	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// Derive returns one word-boundary anchored, metacharacter-escaped pattern
// per keyword of e. A nil entry yields an empty list.
func Derive(e *taxonomy.Entry) []string {
	out := []string{}
	if e == nil {
		return out
	}
	for _, kw := range e.Keywords {
		out = append(out, `\b`+regexp.QuoteMeta(kw)+`\b`)
	}
	return out
}

// Compile compiles derived patterns, failing on the first invalid one.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
