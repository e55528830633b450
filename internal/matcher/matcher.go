// Package matcher matches document titles against exact names, glob
// patterns or regular expressions. Every pattern also yields a literal
// search query, so callers can narrow a remote title search before
// matching the hits locally.
package matcher

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Kind is the pattern syntax.
type Kind int

const (
	// Exact matches the whole title literally.
	Exact Kind = iota
	// Glob uses shell-style patterns (*, ?, [...]) over the whole title.
	Glob
	// Regex uses a regular expression, written with a "re:" prefix.
	Regex
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// RegexPrefix marks a pattern as a regular expression.
const RegexPrefix = "re:"

const globMeta = "*?["

// Matcher is a compiled title pattern. It is safe for concurrent use.
type Matcher struct {
	pattern string
	kind    Kind
	fold    bool
	re      *regexp.Regexp
	query   string
}

// Option configures a Matcher.
type Option func(*Matcher)

// CaseInsensitive ignores letter case when matching. The search query
// keeps the pattern's case.
func CaseInsensitive() Option {
	return func(m *Matcher) {
		m.fold = true
	}
}

// New compiles pattern, detecting its kind: a "re:" prefix selects Regex,
// glob metacharacters select Glob, anything else is Exact. Patterns must
// start with literal text, which becomes the search query.
func New(pattern string, opts ...Option) (*Matcher, error) {
	m := &Matcher{pattern: pattern}
	for _, opt := range opts {
		opt(m)
	}

	var expr string
	switch {
	case strings.HasPrefix(pattern, RegexPrefix):
		m.kind = Regex
		raw := strings.TrimPrefix(strings.TrimPrefix(pattern, RegexPrefix), "^")
		plain, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		m.query, _ = plain.LiteralPrefix()
		expr = anchor(raw)
	case strings.ContainsAny(pattern, globMeta):
		m.kind = Glob
		var err error
		if expr, err = globToRegex(pattern); err != nil {
			return nil, err
		}
		m.query = pattern[:strings.IndexAny(pattern, globMeta)]
	default:
		m.kind = Exact
		m.query = pattern
	}

	m.query = strings.TrimSpace(m.query)
	if m.query == "" {
		return nil, fmt.Errorf("pattern %q must start with literal text", pattern)
	}

	if m.kind != Exact {
		if m.fold {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		m.re = re
	}
	return m, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(pattern string, opts ...Option) *Matcher {
	m, err := New(pattern, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Compile builds one matcher per pattern.
func Compile(patterns []string, opts ...Option) ([]*Matcher, error) {
	out := make([]*Matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := New(p, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Match reports whether the whole title matches.
func (m *Matcher) Match(title string) bool {
	if m.kind == Exact {
		if m.fold {
			return strings.EqualFold(title, m.pattern)
		}
		return title == m.pattern
	}
	return m.re.MatchString(title)
}

// Query returns the literal text to search for.
func (m *Matcher) Query() string { return m.query }

// Pattern returns the original pattern.
func (m *Matcher) Pattern() string { return m.pattern }

// Kind returns the detected pattern kind.
func (m *Matcher) Kind() Kind { return m.kind }

func (m *Matcher) String() string {
	return m.kind.String() + ":" + m.pattern
}

func anchor(expr string) string {
	if !strings.HasPrefix(expr, "^") {
		expr = "^" + expr
	}
	if !strings.HasSuffix(expr, "$") {
		expr += "$"
	}
	return expr
}

// globToRegex translates a glob into an anchored expression. Unlike
// path.Match, * and ? also match "/", which titles often contain.
func globToRegex(glob string) (string, error) {
	runes := []rune(glob)
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '[':
			end := slices.Index(runes[i+1:], ']')
			if end < 0 {
				return "", fmt.Errorf("invalid glob pattern %q: unterminated [", glob)
			}
			class := string(runes[i+1 : i+1+end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String(), nil
}
