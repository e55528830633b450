package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
)

func seed(t *testing.T) (*Store, library.ID, library.ID, library.ID) {
	t.Helper()
	s := New()
	book := s.AddCollection(1, "Engineering")
	ch := s.AddSubCollection(10, book, "1. Basics")
	s.AddDocument(library.Document{ID: 100, Title: "Intro", ContainerID: ch})
	s.AddDocument(library.Document{ID: 101, Title: "Loose", CollectionID: book})
	return s, book, ch, 101
}

func TestCollectionContents(t *testing.T) {
	s, book, ch, loose := seed(t)
	ctx := context.Background()

	c, err := s.Collection(ctx, book)
	require.NoError(t, err)
	require.Len(t, c.Children, 1)
	assert.Equal(t, ch, c.Children[0].ID)
	assert.Equal(t, []library.DocumentRef{{ID: 100, Title: "Intro"}}, c.Children[0].Documents)
	assert.Equal(t, []library.DocumentRef{{ID: loose, Title: "Loose"}}, c.Documents)

	doc, err := s.Document(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, book, doc.CollectionID)
	assert.Equal(t, library.FormatHTML, doc.Content.Format)
}

func TestMoveDocument(t *testing.T) {
	s, book, _, loose := seed(t)
	ctx := context.Background()
	target, err := s.CreateSubCollection(ctx, book, "2. Advanced", "")
	require.NoError(t, err)

	require.NoError(t, s.MoveDocument(ctx, loose, target.ID))
	owner, ok := s.DocumentLocation(loose)
	require.True(t, ok)
	assert.Equal(t, target.ID, owner)

	err = s.MoveDocument(ctx, 999, target.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateSubCollectionRejectsDuplicateName(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := s.AddCollection(0, "A")
	b := s.AddCollection(0, "B")
	s.AddSubCollection(0, b, "Notes")
	ch := s.AddSubCollection(0, a, "Notes")

	err := s.UpdateSubCollection(ctx, ch, library.ContainerUpdate{ParentID: b})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	require.NoError(t, s.UpdateSubCollection(ctx, ch, library.ContainerUpdate{ParentID: b, Name: "[From 1] Notes"}))
	parent, name, _ := s.SubCollectionParent(ch)
	assert.Equal(t, b, parent)
	assert.Equal(t, "[From 1] Notes", name)
}

func TestFaultInjection(t *testing.T) {
	s, _, ch, loose := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")
	s.Fail(OpMoveDocument, loose, 2, boom)

	assert.ErrorIs(t, s.MoveDocument(ctx, loose, ch), boom)
	assert.ErrorIs(t, s.MoveDocument(ctx, loose, ch), boom)
	assert.NoError(t, s.MoveDocument(ctx, loose, ch))
	assert.Equal(t, 3, s.Calls(OpMoveDocument))
}

func TestSearchByTitleIsLoose(t *testing.T) {
	s, _, _, _ := seed(t)
	hits, err := s.SearchByTitle(context.Background(), "intro")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, library.KindDocument, hits[0].Kind)
}

func TestSetGroupingCollectionsSorts(t *testing.T) {
	s := New()
	g := s.AddGrouping(0, "Shelf")
	require.NoError(t, s.SetGroupingCollections(context.Background(), g, []library.ID{9, 3, 5}))
	got, err := s.Grouping(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, []library.ID{3, 5, 9}, got.CollectionIDs)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, book, ch, loose := seed(t)
	s.AddGrouping(50, "Shelf", book)
	ctx := context.Background()

	snap, err := Capture(ctx, s)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, WriteSnapshot(path, snap))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	owner, ok := loaded.DocumentLocation(100)
	require.True(t, ok)
	assert.Equal(t, ch, owner)
	owner, ok = loaded.DocumentLocation(loose)
	require.True(t, ok)
	assert.Equal(t, book, owner)

	g, err := loaded.Grouping(ctx, 50)
	require.NoError(t, err)
	assert.True(t, g.Has(book))

	// new ids never collide with seeded ones
	created, err := loaded.CreateCollection(ctx, "New", "")
	require.NoError(t, err)
	assert.Greater(t, int64(created.ID), int64(101))
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.yaml"))
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}
