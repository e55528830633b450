package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
)

var generated = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func fixture(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	s.AddCollection(1, "Platform")
	s.AddSubCollection(10, 1, "1. Kubernetes")
	s.AddSubCollection(11, 1, "00. Inbox (Unsorted)")
	s.AddDocument(library.Document{ID: 100, Title: "Cluster sizing", ContainerID: 10})
	s.AddDocument(library.Document{
		ID: 101, Title: "Runbook", ContainerID: 11, Slug: "runbook",
		Content: library.Content{Format: library.FormatHTML, Text: "<h1>Runbook</h1><p>Restart the &quot;api&quot; pods.</p><h2>Escalation</h2>"},
		Tags:    []library.Tag{{Name: "team", Value: "sre"}},
	})
	s.AddDocument(library.Document{
		ID: 102, Title: "Notes", ContainerID: 11,
		Content: library.Content{Format: library.FormatMarkdown, Text: "# Notes\n\n" + strings.Repeat("word ", 200)},
	})
	s.AddCollection(2, "No inbox here")
	return s
}

func build(t *testing.T, opts ...Option) *Snapshot {
	t.Helper()
	opts = append(opts, WithClock(func() time.Time { return generated }))
	snap, err := NewBuilder(fixture(t), opts...).Build(context.Background())
	require.NoError(t, err)
	return snap
}

func TestBuild(t *testing.T) {
	snap := build(t)

	assert.Equal(t, generated, snap.GeneratedAt)
	assert.Equal(t, 2, snap.TotalDocuments)
	require.Len(t, snap.Collections, 1)

	c := snap.Collections[0]
	assert.Equal(t, library.ID(11), c.InboxID)
	assert.Equal(t, []SubCollection{{ID: 10, Name: "1. Kubernetes", DocumentCount: 1}}, c.SubCollections)

	require.Len(t, c.Documents, 2)
	runbook := c.Documents[0]
	assert.Equal(t, []string{"Runbook", "Escalation"}, runbook.Headings)
	assert.Equal(t, `Runbook Restart the "api" pods. Escalation`, runbook.TextSample)
	assert.Equal(t, []library.Tag{{Name: "team", Value: "sre"}}, runbook.Tags)

	notes := c.Documents[1]
	assert.Len(t, notes.TextSample, 600)
	assert.Equal(t, []string{"Notes"}, notes.Headings)
	assert.Empty(t, notes.Tags)
}

func TestBuildLimits(t *testing.T) {
	snap := build(t, WithLimits(1, 10))
	runbook := snap.Collections[0].Documents[0]
	assert.Equal(t, []string{"Runbook"}, runbook.Headings)
	assert.Equal(t, "Runbook Re", runbook.TextSample)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "a", Truncate("aé", 2), "é is two bytes")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, build(t).WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 2, decoded["total_documents"])
	assert.Equal(t, "00. Inbox (Unsorted)", decoded["inbox_name"])
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, build(t).WriteMarkdown(&buf))
	out := buf.String()

	assert.Contains(t, out, "# Inbox snapshot")
	assert.Contains(t, out, "## Platform (collection 1, inbox 11)")
	assert.Contains(t, out, "1. Kubernetes")
	assert.Contains(t, out, "**101** Runbook | headings: Runbook; Escalation")
	assert.Contains(t, out, "...")
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	jsonPath, mdPath, err := build(t).Save(dir)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(jsonPath, "inbox-snapshot-20250304-050607.json"))
	assert.True(t, strings.HasSuffix(mdPath, "inbox-snapshot-20250304-050607.md"))
	for _, p := range []string{jsonPath, mdPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}
