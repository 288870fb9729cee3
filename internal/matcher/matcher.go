// Package matcher selects registration numbers by glob or regex pattern.
// It backs the --match flag of the read commands and the match query
// parameter of the read endpoints.
package matcher

import (
	"path"
	"regexp"
	"strings"

	"github.com/agentstation/mirrorsync/pkg/errors"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style patterns (*, ?, []) against the whole key.
	Glob PatternType = iota
	// Regex uses an unanchored regular expression.
	Regex
	// Auto picks Regex when the pattern uses regex-only syntax.
	Auto
)

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Matcher reports whether a key matches a pattern. Safe for concurrent use.
type Matcher interface {
	Match(key string) bool
	Pattern() string
	Type() PatternType
}

// Options configures the matcher behavior.
type Options struct {
	// CaseInsensitive folds case before matching.
	CaseInsensitive bool
}

type matcher struct {
	pattern     string
	patternType PatternType
	fold        bool
	glob        string
	re          *regexp.Regexp
}

// New compiles pattern. An invalid pattern yields a ValidationError on the
// "match" field.
func New(patternType PatternType, pattern string, opts ...*Options) (Matcher, error) {
	o := &Options{}
	if len(opts) > 0 && opts[0] != nil {
		o = opts[0]
	}

	m := &matcher{pattern: pattern, patternType: patternType, fold: o.CaseInsensitive}
	if patternType == Auto {
		m.patternType = detectPatternType(pattern)
	}

	switch m.patternType {
	case Glob:
		m.glob = pattern
		if m.fold {
			m.glob = strings.ToLower(m.glob)
		}
		if _, err := path.Match(m.glob, ""); err != nil {
			return nil, errors.NewValidationError("match", pattern, "invalid glob pattern: "+err.Error())
		}
	case Regex:
		expr := pattern
		if m.fold && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.NewValidationError("match", pattern, "invalid regex pattern: "+err.Error())
		}
		m.re = re
	default:
		return nil, errors.NewValidationError("match", pattern, "unsupported pattern type "+patternType.String())
	}
	return m, nil
}

func (m *matcher) Match(key string) bool {
	if m.re != nil {
		return m.re.MatchString(key)
	}
	if m.fold {
		key = strings.ToLower(key)
	}
	ok, _ := path.Match(m.glob, key)
	return ok
}

func (m *matcher) Pattern() string   { return m.pattern }
func (m *matcher) Type() PatternType { return m.patternType }

// Parse builds an auto-detecting, case-insensitive matcher. An empty
// pattern returns a nil Matcher, which Filter treats as match-all.
func Parse(pattern string) (Matcher, error) {
	if pattern == "" {
		return nil, nil
	}
	return New(Auto, pattern, &Options{CaseInsensitive: true})
}

// Filter returns the items whose key matches m, preserving order.
func Filter[T any](m Matcher, items []T, key func(T) string) []T {
	if m == nil {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if m.Match(key(it)) {
			out = append(out, it)
		}
	}
	return out
}

func detectPatternType(pattern string) PatternType {
	regexIndicators := []string{
		"^", "$", "\\d", "\\w", "\\s", "\\D", "\\W", "\\S",
		"(?:", "(?i)", "{", "}", "+", "|", "(", ")", ".*",
	}
	for _, indicator := range regexIndicators {
		if strings.Contains(pattern, indicator) {
			return Regex
		}
	}
	return Glob
}
