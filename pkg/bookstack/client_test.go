package bookstack

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/internal/bookstacktest"
	"github.com/agentstation/librarian/internal/transport"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
)

func loadTestdata[T any](t *testing.T, name string) T {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestBookConversion(t *testing.T) {
	book := loadTestdata[bookResponse](t, "book.json")
	c := book.toContainer()

	assert.Equal(t, library.ID(12), c.ID)
	assert.Equal(t, library.KindCollection, c.Kind)
	require.Len(t, c.Children, 2)
	assert.Equal(t, "3.1 EtherNet/IP", c.Children[0].Name)
	assert.Equal(t, library.ID(12), c.Children[0].ParentID)
	assert.Len(t, c.Children[0].Documents, 1)
	assert.True(t, c.Children[1].Empty())
	assert.False(t, c.Children[1].Unlisted)
	assert.Equal(t, []library.DocumentRef{{ID: 305, Title: "New Page"}}, c.Documents)
}

func TestBookConversionWithoutPageList(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		unlisted bool
		empty    bool
	}{
		{"key absent", `{"id":1,"contents":[{"id":5,"type":"chapter","name":"C"}]}`, true, false},
		{"null", `{"id":1,"contents":[{"id":5,"type":"chapter","name":"C","pages":null}]}`, true, false},
		{"empty list", `{"id":1,"contents":[{"id":5,"type":"chapter","name":"C","pages":[]}]}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var book bookResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &book))
			c := book.toContainer()
			require.Len(t, c.Children, 1)
			assert.Equal(t, tt.unlisted, c.Children[0].Unlisted)
			assert.Equal(t, tt.empty, c.Children[0].Empty())
		})
	}

	var ch chapterResponse
	require.NoError(t, json.Unmarshal([]byte(`{"id":5,"book_id":1,"name":"C"}`), &ch))
	assert.False(t, ch.toContainer().Empty())
}

func TestPageConversionPrefersRawHTML(t *testing.T) {
	page := loadTestdata[pageResponse](t, "page.json")
	doc := page.toDocument()

	assert.Equal(t, library.ID(40), doc.ContainerID)
	assert.Equal(t, library.ID(40), doc.Owner())
	assert.Equal(t, library.FormatHTML, doc.Content.Format)
	assert.Equal(t, "<h1>Switch</h1><p>Raw</p>", doc.Content.Text)
	assert.Equal(t, []library.Tag{{Name: "vendor", Value: "Stratix"}, {Name: "reviewed"}}, doc.Tags)
	assert.Equal(t, 2024, doc.CreatedAt.Year())

	page.Markdown = "# Switch"
	assert.Equal(t, library.FormatMarkdown, page.toDocument().Content.Format)
}

type noSleep struct{ waits []time.Duration }

func (n *noSleep) Sleep(_ context.Context, d time.Duration) error {
	n.waits = append(n.waits, d)
	return nil
}

func newFakeClient(t *testing.T, store *memory.Store) (*Client, *bookstacktest.Server, *noSleep) {
	t.Helper()
	srv := bookstacktest.New(t, store, bookstacktest.WithToken("tid:tsecret"))
	sleeper := &noSleep{}
	tc, err := transport.New(transport.Config{
		BaseURL:     srv.APIURL(),
		TokenID:     "tid",
		TokenSecret: "tsecret",
		MinInterval: -1,
	}, transport.WithSleeper(sleeper))
	require.NoError(t, err)
	return New(tc), srv, sleeper
}

func seedStore() *memory.Store {
	s := memory.New()
	book := s.AddCollection(1, "Engineering")
	ch := s.AddSubCollection(2, book, "1. Basics")
	s.AddDocument(library.Document{ID: 3, Title: "Intro", ContainerID: ch, Tags: []library.Tag{{Name: "status", Value: "draft"}}})
	s.AddDocument(library.Document{ID: 4, Title: "New Page", CollectionID: book})
	s.AddGrouping(5, "1. Onboarding", book)
	return s
}

func TestRepositoryReads(t *testing.T) {
	c, _, _ := newFakeClient(t, seedStore())
	ctx := context.Background()

	groupings, err := c.Groupings(ctx)
	require.NoError(t, err)
	require.Len(t, groupings, 1)
	g, err := c.Grouping(ctx, groupings[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []library.ID{1}, g.CollectionIDs)

	books, err := c.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)

	book, err := c.Collection(ctx, 1)
	require.NoError(t, err)
	require.Len(t, book.Children, 1)
	assert.Equal(t, "1. Basics", book.Children[0].Name)
	assert.Equal(t, []library.DocumentRef{{ID: 4, Title: "New Page"}}, book.Documents)

	ch, err := c.SubCollection(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, library.ID(1), ch.ParentID)

	doc, err := c.Document(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Intro", doc.Title)
	assert.Equal(t, []library.Tag{{Name: "status", Value: "draft"}}, doc.Tags)

	hits, err := c.SearchByTitle(ctx, "New Page")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, library.KindDocument, hits[0].Kind)
}

func TestRepositoryWrites(t *testing.T) {
	store := seedStore()
	c, srv, _ := newFakeClient(t, store)
	ctx := context.Background()

	holding, err := c.CreateCollection(ctx, "Empty Chapters Holding", "Holding area")
	require.NoError(t, err)
	assert.NotZero(t, holding.ID)

	inbox, err := c.CreateSubCollection(ctx, 1, "00. Inbox (Unsorted)", "")
	require.NoError(t, err)

	require.NoError(t, c.MoveDocument(ctx, 4, inbox.ID))
	owner, _ := store.DocumentLocation(4)
	assert.Equal(t, inbox.ID, owner)

	require.NoError(t, c.UpdateSubCollection(ctx, 2, library.ContainerUpdate{ParentID: holding.ID}))
	parent, _, _ := store.SubCollectionParent(2)
	assert.Equal(t, holding.ID, parent)

	require.NoError(t, c.SetGroupingCollections(ctx, 5, []library.ID{holding.ID, 1}))
	g, err := store.Grouping(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []library.ID{1, holding.ID}, g.CollectionIDs)

	require.NoError(t, c.DeleteDocument(ctx, 4))
	_, found := store.DocumentLocation(4)
	assert.False(t, found)

	assert.Contains(t, srv.Requests(), "DELETE /api/pages/4")
}

func TestRepositoryNotFound(t *testing.T) {
	c, _, _ := newFakeClient(t, seedStore())
	_, err := c.Document(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, errors.StatusCode(err))
}

func TestRepositoryConflictOnRelocate(t *testing.T) {
	store := seedStore()
	other := store.AddCollection(10, "Holding")
	store.AddSubCollection(11, other, "1. Basics")
	c, _, _ := newFakeClient(t, store)

	err := c.UpdateSubCollection(context.Background(), 2, library.ContainerUpdate{ParentID: other})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.False(t, errors.IsTransient(err))
}

func TestRepositoryRetriesThrottledCalls(t *testing.T) {
	c, srv, sleeper := newFakeClient(t, seedStore())
	srv.Throttle(2, 3)

	_, err := c.Collection(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, sleeper.waits)
	assert.Len(t, srv.Requests(), 3)
}

func TestRepositoryWrongTokenFails(t *testing.T) {
	srv := bookstacktest.New(t, seedStore(), bookstacktest.WithToken("right:token"))
	tc, err := transport.New(transport.Config{BaseURL: srv.APIURL(), TokenID: "wrong", TokenSecret: "token", MinInterval: -1})
	require.NoError(t, err)

	_, err = New(tc).Collections(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
}

func TestListAllPaginates(t *testing.T) {
	store := memory.New()
	for i := 0; i < pageSize+3; i++ {
		store.AddCollection(0, "Book")
	}
	c, srv, _ := newFakeClient(t, store)

	books, err := c.Collections(context.Background())
	require.NoError(t, err)
	assert.Len(t, books, pageSize+3)
	assert.Len(t, srv.Requests(), 2)
}

func TestSearchByTitlePaginates(t *testing.T) {
	store := memory.New()
	store.AddCollection(1, "Engineering")
	for i := 0; i < 2*searchPageSize+5; i++ {
		store.AddDocument(library.Document{Title: "Test", CollectionID: 1})
	}
	c, srv, _ := newFakeClient(t, store)

	hits, err := c.SearchByTitle(context.Background(), "Test")
	require.NoError(t, err)
	assert.Len(t, hits, 2*searchPageSize+5)
	assert.Equal(t, []string{"GET /api/search", "GET /api/search", "GET /api/search"}, srv.Requests())

	seen := map[library.ID]bool{}
	for _, h := range hits {
		assert.False(t, seen[h.ID], "hit %d returned twice", h.ID)
		seen[h.ID] = true
	}
}
