package classify

import (
	_ "embed"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/librarian/pkg/errors"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Vocabulary holds the curated word lists the tokenizer and classifier use.
// The lists are tuned to one corpus; supply a different file for another.
type Vocabulary struct {
	StopWords  []string `yaml:"stop_words"`
	WeakTokens []string `yaml:"weak_tokens"`

	stop map[string]struct{}
	weak map[string]struct{}
}

// DefaultVocabulary returns the built-in word lists.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic("classify: embedded vocabulary is invalid: " + err.Error())
	}
	return v
}

// ParseVocabulary reads word lists from YAML.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.WrapParse("yaml", "vocabulary", err)
	}
	return NewVocabulary(v.StopWords, v.WeakTokens), nil
}

// LoadVocabulary reads word lists from a YAML file. An empty path returns the default.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return NewVocabulary(v.StopWords, v.WeakTokens), nil
}

// NewVocabulary builds a vocabulary from explicit lists. Words are lowercased.
func NewVocabulary(stopWords, weakTokens []string) *Vocabulary {
	v := &Vocabulary{
		StopWords:  stopWords,
		WeakTokens: weakTokens,
		stop:       make(map[string]struct{}, len(stopWords)),
		weak:       make(map[string]struct{}, len(weakTokens)),
	}
	for _, w := range stopWords {
		v.stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	for _, w := range weakTokens {
		v.weak[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return v
}

// IsStopWord reports whether w is dropped during tokenization.
func (v *Vocabulary) IsStopWord(w string) bool {
	_, ok := v.stop[w]
	return ok
}

// IsWeak reports whether w is too generic to justify a single-token match.
func (v *Vocabulary) IsWeak(w string) bool {
	_, ok := v.weak[w]
	return ok
}
