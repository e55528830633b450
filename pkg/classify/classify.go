// Package classify maps free-text document titles onto the best matching
// sub-collection. Matching is a pure function of the title, the ordered
// candidate list and an immutable vocabulary.
package classify

import (
	"strconv"

	"github.com/agentstation/librarian/pkg/library"
)

// Reasons reported with every result.
const (
	ReasonPrefix        = "prefix"
	ReasonPrefixOverlap = "prefix+overlap"
	ReasonOverlap       = "overlap"
	ReasonWeakOverlap   = "weak-overlap"
	ReasonNoMatch       = "no-match"
	ReasonLowConfidence = "low-confidence"
)

// Candidate is a sub-collection precomputed for matching.
type Candidate struct {
	ID     library.ID
	Name   string
	Tokens TokenSet
	Prefix string // empty when the name has none
}

// NewCandidate tokenizes name and extracts its prefix.
func NewCandidate(id library.ID, name string, vocab *Vocabulary) Candidate {
	prefix, _ := ExtractPrefix(name)
	return Candidate{ID: id, Name: name, Tokens: Tokenize(name, vocab), Prefix: prefix}
}

// Candidates builds candidates from a collection's sub-collections, in order.
func Candidates(children []library.Container, vocab *Vocabulary) []Candidate {
	out := make([]Candidate, 0, len(children))
	for _, ch := range children {
		out = append(out, NewCandidate(ch.ID, ch.Name, vocab))
	}
	return out
}

// Result is the outcome of one classification. An unmatched result is not
// an error; callers pick their own fallback.
type Result struct {
	ID      library.ID `json:"id,omitempty"`
	Matched bool       `json:"matched"`
	Reason  string     `json:"reason"`
}

// Classifier matches titles against candidates.
type Classifier struct {
	vocab *Vocabulary
}

// New returns a classifier; a nil vocabulary uses the default lists.
func New(vocab *Vocabulary) *Classifier {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Classifier{vocab: vocab}
}

// Vocabulary returns the word lists in use.
func (c *Classifier) Vocabulary() *Vocabulary {
	return c.vocab
}

// Candidate builds a candidate with this classifier's vocabulary.
func (c *Classifier) Candidate(id library.ID, name string) Candidate {
	return NewCandidate(id, name, c.vocab)
}

// Classify picks the best candidate for title.
//
// A title prefix selects candidates with the same prefix; a single one wins
// outright and several are separated by token overlap. Otherwise the
// candidate with the largest token overlap wins, provided the overlap is at
// least two tokens or a single token that is not weak. Ties keep the first
// candidate in input order.
func (c *Classifier) Classify(title string, candidates []Candidate) Result {
	tokens := Tokenize(title, c.vocab)

	if prefix, ok := ExtractPrefix(title); ok {
		var group []Candidate
		for _, cand := range candidates {
			if cand.Prefix == prefix {
				group = append(group, cand)
			}
		}
		switch len(group) {
		case 0:
		case 1:
			return Result{ID: group[0].ID, Matched: true, Reason: ReasonPrefix}
		default:
			best, score, _ := bestOverlap(tokens, group)
			return Result{ID: best.ID, Matched: true, Reason: ReasonPrefixOverlap + ":" + strconv.Itoa(score)}
		}
	}

	best, score, shared := bestOverlap(tokens, candidates)
	switch {
	case score <= 0:
		return Result{Reason: ReasonNoMatch}
	case score >= 2:
		return Result{ID: best.ID, Matched: true, Reason: ReasonOverlap + ":" + strconv.Itoa(score)}
	}

	tok := shared.Sorted()[0]
	if c.vocab.IsWeak(tok) {
		return Result{Reason: ReasonLowConfidence}
	}
	return Result{ID: best.ID, Matched: true, Reason: ReasonWeakOverlap + ":" + tok}
}

// bestOverlap returns the first candidate with the largest overlap.
func bestOverlap(tokens TokenSet, candidates []Candidate) (Candidate, int, TokenSet) {
	var (
		best   Candidate
		score  = -1
		shared TokenSet
	)
	for _, cand := range candidates {
		inter := tokens.Intersect(cand.Tokens)
		if len(inter) > score {
			best, score, shared = cand, len(inter), inter
		}
	}
	return best, score, shared
}
