package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetectsKind(t *testing.T) {
	tests := []struct {
		pattern string
		kind    Kind
		query   string
	}{
		{"New Page", Exact, "New Page"},
		{"Copy of *", Glob, "Copy of"},
		{"Draft ?", Glob, "Draft"},
		{"Untitled [0-9]*", Glob, "Untitled"},
		{"re:Copy of .*", Regex, "Copy of"},
		{"re:^Test \\d+$", Regex, "Test"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			m, err := New(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, m.Kind())
			assert.Equal(t, tt.pattern, m.Pattern())
			assert.Equal(t, tt.query, m.Query())
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		opts    []Option
		title   string
		want    bool
	}{
		{"exact", "Test", nil, "Test", true},
		{"exact is whole title", "Test", nil, "Test plan", false},
		{"exact case", "Test", nil, "test", false},
		{"exact fold", "Test", []Option{CaseInsensitive()}, "TEST", true},
		{"glob star", "Copy of *", nil, "Copy of Runbook", true},
		{"glob crosses slash", "Copy of *", nil, "Copy of CI/CD", true},
		{"glob anchored", "Copy of *", nil, "A Copy of Runbook", false},
		{"glob question", "Draft ?", nil, "Draft 7", true},
		{"glob class", "Untitled [0-9]", nil, "Untitled 4", true},
		{"glob negated class", "Untitled [!0-9]", nil, "Untitled 4", false},
		{"glob literal dot", "v1.*", nil, "v1x", false},
		{"glob unicode", "Café *", nil, "Café notes", true},
		{"glob fold", "copy of *", []Option{CaseInsensitive()}, "Copy Of X", true},
		{"regex", `re:Test \d+`, nil, "Test 12", true},
		{"regex anchored", `re:Test \d+`, nil, "Test 12 old", false},
		{"regex fold", `re:test \d+`, []Option{CaseInsensitive()}, "TEST 3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.pattern, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.title))
		})
	}
}

func TestNewRejects(t *testing.T) {
	for _, p := range []string{"*", "? draft", "Untitled [0-9", "re:(", "re:.*", "   "} {
		t.Run(p, func(t *testing.T) {
			_, err := New(p)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustNew("*") })
}

func TestCompile(t *testing.T) {
	ms, err := Compile([]string{"New Page", "Copy of *"})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "glob:Copy of *", ms[1].String())

	_, err = Compile([]string{"ok", "*"})
	assert.Error(t, err)
}
