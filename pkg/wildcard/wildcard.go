// Package wildcard implements the `*`, `?` and `[...]` patterns accepted for
// table names and program display names. A backslash escapes the next rune.
package wildcard

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher tests a string against a compiled pattern.
type Matcher interface {
	Match(s string) bool
}

// ContainsMeta reports whether pattern has an unescaped wildcard character.
func ContainsMeta(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// Escape quotes every wildcard character in s so it only matches itself.
func Escape(s string) string {
	return glob.QuoteMeta(s)
}

// Compile parses pattern. Braces carry no meaning here, unlike in glob syntax.
func Compile(pattern string, caseSensitive bool) (Matcher, error) {
	src := escapeBraces(pattern)
	if !caseSensitive {
		src = strings.ToLower(src)
	}
	g, err := glob.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid wildcard pattern %q: %w", pattern, err)
	}
	if caseSensitive {
		return g, nil
	}
	return foldMatcher{g}, nil
}

// Any compiles every pattern and matches when at least one of them does.
func Any(patterns []string, caseSensitive bool) (Matcher, error) {
	set := make(anyMatcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := Compile(p, caseSensitive)
		if err != nil {
			return nil, err
		}
		set = append(set, m)
	}
	return set, nil
}

type foldMatcher struct{ g glob.Glob }

func (f foldMatcher) Match(s string) bool { return f.g.Match(strings.ToLower(s)) }

type anyMatcher []Matcher

func (a anyMatcher) Match(s string) bool {
	for _, m := range a {
		if m.Match(s) {
			return true
		}
	}
	return false
}

func escapeBraces(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			b.WriteByte(c)
			if i+1 < len(pattern) {
				i++
				b.WriteByte(pattern[i])
			} else {
				// a trailing escape matches a literal backslash
				b.WriteByte('\\')
			}
		case '{', '}':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
