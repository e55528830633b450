package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
)

func doc(id library.ID, title, text string) library.Document {
	return library.Document{ID: id, Title: title, Content: library.Content{Format: library.FormatHTML, Text: text}}
}

func before() *memory.Snapshot {
	return &memory.Snapshot{
		Groupings: []library.Grouping{{ID: 1, Name: "9. Orphaned"}},
		Collections: []memory.SnapshotCollection{{
			ID:   10,
			Name: "Platform",
			SubCollections: []memory.SnapshotSubCollection{
				{ID: 100, Name: "1. Kubernetes", Documents: []library.Document{doc(1002, "Nodes", "a")}},
				{ID: 101, Name: "Old drafts"},
			},
			Documents: []library.Document{doc(1000, "1 Cluster sizing", "b"), doc(1001, "New Page", "")},
		}},
	}
}

func after() *memory.Snapshot {
	return &memory.Snapshot{
		Groupings: []library.Grouping{{ID: 1, Name: "9. Orphaned", CollectionIDs: []library.ID{11}}},
		Collections: []memory.SnapshotCollection{
			{
				ID:   10,
				Name: "Platform",
				SubCollections: []memory.SnapshotSubCollection{
					{ID: 100, Name: "1. Kubernetes", Documents: []library.Document{doc(1002, "Nodes", "a changed"), doc(1000, "1 Cluster sizing", "b")}},
				},
			},
			{
				ID:   11,
				Name: "Empty Chapters Holding",
				SubCollections: []memory.SnapshotSubCollection{
					{ID: 101, Name: "[From 10] Old drafts"},
				},
			},
		},
	}
}

func TestSnapshots(t *testing.T) {
	cs := New().Snapshots(before(), after())

	require.Len(t, cs.Groupings, 1)
	assert.Equal(t, ChangeTypeUpdate, cs.Groupings[0].Type)
	assert.Equal(t, []FieldChange{{Field: FieldCollections, Old: "", New: "11"}}, cs.Groupings[0].Changes)

	require.Len(t, cs.Containers, 2)
	renamed := cs.Containers[0]
	assert.Equal(t, library.ID(11), renamed.ID)
	assert.Equal(t, ChangeTypeAdd, renamed.Type)
	moved := cs.Containers[1]
	assert.Equal(t, library.ID(101), moved.ID)
	assert.Equal(t, ChangeTypeUpdate, moved.Type)
	assert.Equal(t, []FieldChange{
		{Field: FieldName, Old: "Old drafts", New: "[From 10] Old drafts"},
		{Field: FieldParent, Old: "10", New: "11"},
	}, moved.Changes)

	require.Len(t, cs.Documents, 2)
	assert.Equal(t, library.ID(1000), cs.Documents[0].ID)
	assert.Equal(t, []FieldChange{{Field: FieldLocation, Old: "10", New: "100"}}, cs.Documents[0].Changes)
	assert.Equal(t, library.ID(1001), cs.Documents[1].ID)
	assert.Equal(t, ChangeTypeRemove, cs.Documents[1].Type)

	assert.Equal(t, Summary{Added: 1, Updated: 3, Removed: 1, Moved: 1}, cs.Summary)
	assert.Equal(t, "1 added, 3 updated, 1 removed, 1 documents moved", cs.String())
	assert.Len(t, cs.All(), 5)
}

func TestSnapshotsWithContent(t *testing.T) {
	cs := New(WithContent(true)).Snapshots(before(), after())

	var nodes *Change
	for i := range cs.Documents {
		if cs.Documents[i].ID == 1002 {
			nodes = &cs.Documents[i]
		}
	}
	require.NotNil(t, nodes)
	assert.Equal(t, []FieldChange{{Field: FieldContent, Old: "1 bytes", New: "9 bytes"}}, nodes.Changes)
}

func TestIgnoredFields(t *testing.T) {
	cs := New(WithIgnoredFields(FieldName, FieldCollections)).Snapshots(before(), after())

	assert.Empty(t, cs.Groupings)
	require.Len(t, cs.Containers, 2)
	assert.Equal(t, []FieldChange{{Field: FieldParent, Old: "10", New: "11"}}, cs.Containers[1].Changes)
}

func TestIdenticalSnapshots(t *testing.T) {
	cs := New(WithContent(true)).Snapshots(before(), before())
	assert.True(t, cs.IsEmpty())
	assert.Equal(t, "No changes detected", cs.String())
}

func TestGroupingOrderIgnored(t *testing.T) {
	a := &memory.Snapshot{Groupings: []library.Grouping{{ID: 1, Name: "S", CollectionIDs: []library.ID{2, 1}}}}
	b := &memory.Snapshot{Groupings: []library.Grouping{{ID: 1, Name: "S", CollectionIDs: []library.ID{1, 2}}}}
	assert.True(t, New().Snapshots(a, b).IsEmpty())
}

func TestNilSnapshot(t *testing.T) {
	cs := New().Snapshots(nil, before())
	assert.Equal(t, Summary{Added: 7}, cs.Summary)
}
