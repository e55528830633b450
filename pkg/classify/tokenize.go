package classify

import (
	"regexp"
	"sort"
	"strings"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	// "3.1 AutoCAD" -> "3.1"; "2 Getting Started" -> "2"
	prefixPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)\b`)
)

// TokenSet is an unordered set of normalized title words.
type TokenSet map[string]struct{}

// NewTokenSet builds a set from words as given.
func NewTokenSet(words ...string) TokenSet {
	s := make(TokenSet, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s TokenSet) Has(w string) bool {
	_, ok := s[w]
	return ok
}

// Intersect returns the words present in both sets.
func (s TokenSet) Intersect(other TokenSet) TokenSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(TokenSet)
	for w := range small {
		if large.Has(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

// Sorted returns the words in lexical order.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Tokenize lowercases title, splits it on every run of non-alphanumeric
// characters, and drops stop words and single-character tokens.
func Tokenize(title string, vocab *Vocabulary) TokenSet {
	normalized := nonAlnum.ReplaceAllString(strings.ToLower(title), " ")
	set := make(TokenSet)
	for _, w := range strings.Fields(normalized) {
		if len(w) < 2 || vocab.IsStopWord(w) {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// ExtractPrefix returns the leading numeric-dotted label of title, if any.
func ExtractPrefix(title string) (string, bool) {
	m := prefixPattern.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}
