// Package memory provides an in-memory library.Repository. It backs offline
// dry-runs against a YAML snapshot and is the fake remote used in tests,
// including fault injection for individual write operations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
)

// Operation names used for call counting and fault injection.
const (
	OpGroupings              = "groupings"
	OpGrouping               = "grouping"
	OpCollections            = "collections"
	OpCollection             = "collection"
	OpSubCollection          = "sub-collection"
	OpDocument               = "document"
	OpSearch                 = "search"
	OpCreateCollection       = "create-collection"
	OpCreateSubCollection    = "create-sub-collection"
	OpMoveDocument           = "move-document"
	OpUpdateSubCollection    = "update-sub-collection"
	OpDeleteDocument         = "delete-document"
	OpSetGroupingCollections = "set-grouping-collections"
)

type fault struct {
	remaining int
	err       error
}

type node struct {
	id          library.ID
	name        string
	description string
	parent      library.ID
}

// Store is an in-memory library. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	nextID library.ID

	groupings   map[library.ID]*library.Grouping
	collections map[library.ID]*node
	chapters    map[library.ID]*node
	documents   map[library.ID]*library.Document

	// insertion order, which is also listing order
	groupingOrder   []library.ID
	collectionOrder []library.ID
	chapterOrder    []library.ID
	documentOrder   []library.ID

	calls  map[string]int
	faults map[string]*fault

	// StrictNames rejects reparenting or renaming a sub-collection onto a
	// name already used in the target collection.
	StrictNames bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		groupings:   make(map[library.ID]*library.Grouping),
		collections: make(map[library.ID]*node),
		chapters:    make(map[library.ID]*node),
		documents:   make(map[library.ID]*library.Document),
		calls:       make(map[string]int),
		faults:      make(map[string]*fault),
		StrictNames: true,
	}
}

var _ library.Repository = (*Store)(nil)

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Fail makes the next times invocations of op on id return err.
// id 0 matches any target.
func (s *Store) Fail(op string, id library.ID, times int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[faultKey(op, id)] = &fault{remaining: times, err: err}
}

func faultKey(op string, id library.ID) string {
	return fmt.Sprintf("%s/%d", op, id)
}

// enter records the call and returns an injected fault, if any. Caller holds mu.
func (s *Store) enter(op string, id library.ID) error {
	s.calls[op]++
	for _, key := range []string{faultKey(op, id), faultKey(op, 0)} {
		if f, ok := s.faults[key]; ok && f.remaining > 0 {
			f.remaining--
			return f.err
		}
	}
	return nil
}

func (s *Store) allocate(id library.ID) library.ID {
	if id == 0 {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return id
}

// AddGrouping seeds a grouping and returns its id.
func (s *Store) AddGrouping(id library.ID, name string, collectionIDs ...library.ID) library.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = s.allocate(id)
	s.groupings[id] = &library.Grouping{ID: id, Name: name, CollectionIDs: append([]library.ID(nil), collectionIDs...)}
	s.groupingOrder = append(s.groupingOrder, id)
	return id
}

// AddCollection seeds a collection and returns its id.
func (s *Store) AddCollection(id library.ID, name string) library.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCollection(id, name, "")
}

func (s *Store) addCollection(id library.ID, name, description string) library.ID {
	id = s.allocate(id)
	s.collections[id] = &node{id: id, name: name, description: description}
	s.collectionOrder = append(s.collectionOrder, id)
	return id
}

// AddSubCollection seeds a sub-collection. Duplicate names are allowed.
func (s *Store) AddSubCollection(id, collectionID library.ID, name string) library.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addChapter(id, collectionID, name, "")
}

func (s *Store) addChapter(id, collectionID library.ID, name, description string) library.ID {
	id = s.allocate(id)
	s.chapters[id] = &node{id: id, name: name, description: description, parent: collectionID}
	s.chapterOrder = append(s.chapterOrder, id)
	return id
}

// AddDocument seeds a document. ContainerID 0 places it directly in the collection;
// a non-zero ContainerID with no CollectionID inherits the sub-collection's parent.
func (s *Store) AddDocument(doc library.Document) library.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = s.allocate(doc.ID)
	if doc.ContainerID != 0 && doc.CollectionID == 0 {
		if ch, ok := s.chapters[doc.ContainerID]; ok {
			doc.CollectionID = ch.parent
		}
	}
	if doc.Content.Format == "" {
		doc.Content.Format = library.FormatHTML
	}
	d := doc
	s.documents[d.ID] = &d
	s.documentOrder = append(s.documentOrder, d.ID)
	return d.ID
}

// DocumentLocation returns the current owner of a document, for assertions.
func (s *Store) DocumentLocation(id library.ID) (library.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		return 0, false
	}
	return d.Owner(), true
}

// SubCollectionParent returns the collection a sub-collection sits in, and its name.
func (s *Store) SubCollectionParent(id library.ID) (library.ID, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[id]
	if !ok {
		return 0, "", false
	}
	return ch.parent, ch.name, true
}

// Groupings implements library.Reader.
func (s *Store) Groupings(_ context.Context) ([]library.Grouping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGroupings, 0); err != nil {
		return nil, err
	}
	out := make([]library.Grouping, 0, len(s.groupingOrder))
	for _, id := range s.groupingOrder {
		g := s.groupings[id]
		out = append(out, library.Grouping{ID: g.ID, Name: g.Name})
	}
	return out, nil
}

// Grouping implements library.Reader.
func (s *Store) Grouping(_ context.Context, id library.ID) (*library.Grouping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGrouping, id); err != nil {
		return nil, err
	}
	g, ok := s.groupings[id]
	if !ok {
		return nil, errors.NewNotFoundError("grouping", id.String())
	}
	cp := *g
	cp.CollectionIDs = append([]library.ID(nil), g.CollectionIDs...)
	return &cp, nil
}

// Collections implements library.Reader.
func (s *Store) Collections(_ context.Context) ([]library.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCollections, 0); err != nil {
		return nil, err
	}
	out := make([]library.Container, 0, len(s.collectionOrder))
	for _, id := range s.collectionOrder {
		c := s.collections[id]
		out = append(out, library.Container{ID: c.id, Name: c.name, Description: c.description, Kind: library.KindCollection})
	}
	return out, nil
}

// Collection implements library.Reader.
func (s *Store) Collection(_ context.Context, id library.ID) (*library.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCollection, id); err != nil {
		return nil, err
	}
	c, ok := s.collections[id]
	if !ok {
		return nil, errors.NewNotFoundError("collection", id.String())
	}
	out := &library.Container{ID: c.id, Name: c.name, Description: c.description, Kind: library.KindCollection}
	for _, chID := range s.chapterOrder {
		ch := s.chapters[chID]
		if ch.parent != id {
			continue
		}
		out.Children = append(out.Children, s.chapterView(ch))
	}
	for _, docID := range s.documentOrder {
		d := s.documents[docID]
		if d.CollectionID == id && d.ContainerID == 0 {
			out.Documents = append(out.Documents, library.DocumentRef{ID: d.ID, Title: d.Title})
		}
	}
	return out, nil
}

func (s *Store) chapterView(ch *node) library.Container {
	view := library.Container{
		ID:          ch.id,
		Name:        ch.name,
		Description: ch.description,
		Kind:        library.KindSubCollection,
		ParentID:    ch.parent,
	}
	for _, docID := range s.documentOrder {
		d := s.documents[docID]
		if d.ContainerID == ch.id {
			view.Documents = append(view.Documents, library.DocumentRef{ID: d.ID, Title: d.Title})
		}
	}
	return view
}

// SubCollection implements library.Reader.
func (s *Store) SubCollection(_ context.Context, id library.ID) (*library.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSubCollection, id); err != nil {
		return nil, err
	}
	ch, ok := s.chapters[id]
	if !ok {
		return nil, errors.NewNotFoundError("sub-collection", id.String())
	}
	view := s.chapterView(ch)
	return &view, nil
}

// Document implements library.Reader.
func (s *Store) Document(_ context.Context, id library.ID) (*library.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDocument, id); err != nil {
		return nil, err
	}
	d, ok := s.documents[id]
	if !ok {
		return nil, errors.NewNotFoundError("document", id.String())
	}
	cp := *d
	cp.Tags = append([]library.Tag(nil), d.Tags...)
	return &cp, nil
}

// SearchByTitle implements library.Reader with a case-insensitive substring
// match over every node, which is looser than an exact match just like the
// real service's text search.
func (s *Store) SearchByTitle(_ context.Context, title string) ([]library.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSearch, 0); err != nil {
		return nil, err
	}
	needle := strings.ToLower(title)
	var hits []library.SearchHit
	for _, id := range s.collectionOrder {
		if c := s.collections[id]; strings.Contains(strings.ToLower(c.name), needle) {
			hits = append(hits, library.SearchHit{ID: id, Kind: library.KindCollection, Name: c.name})
		}
	}
	for _, id := range s.chapterOrder {
		if ch := s.chapters[id]; strings.Contains(strings.ToLower(ch.name), needle) {
			hits = append(hits, library.SearchHit{ID: id, Kind: library.KindSubCollection, Name: ch.name})
		}
	}
	for _, id := range s.documentOrder {
		if d := s.documents[id]; strings.Contains(strings.ToLower(d.Title), needle) {
			hits = append(hits, library.SearchHit{ID: id, Kind: library.KindDocument, Name: d.Title})
		}
	}
	return hits, nil
}

// CreateCollection implements library.Writer.
func (s *Store) CreateCollection(_ context.Context, name, description string) (*library.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateCollection, 0); err != nil {
		return nil, err
	}
	id := s.addCollection(0, name, description)
	return &library.Container{ID: id, Name: name, Description: description, Kind: library.KindCollection}, nil
}

// CreateSubCollection implements library.Writer.
func (s *Store) CreateSubCollection(_ context.Context, collectionID library.ID, name, description string) (*library.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateSubCollection, collectionID); err != nil {
		return nil, err
	}
	if _, ok := s.collections[collectionID]; !ok {
		return nil, errors.NewNotFoundError("collection", collectionID.String())
	}
	id := s.addChapter(0, collectionID, name, description)
	return &library.Container{ID: id, Name: name, Description: description, Kind: library.KindSubCollection, ParentID: collectionID}, nil
}

// MoveDocument implements library.Writer.
func (s *Store) MoveDocument(_ context.Context, documentID, subCollectionID library.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpMoveDocument, documentID); err != nil {
		return err
	}
	d, ok := s.documents[documentID]
	if !ok {
		return errors.NewNotFoundError("document", documentID.String())
	}
	ch, ok := s.chapters[subCollectionID]
	if !ok {
		return errors.NewNotFoundError("sub-collection", subCollectionID.String())
	}
	d.ContainerID = ch.id
	d.CollectionID = ch.parent
	return nil
}

// UpdateSubCollection implements library.Writer.
func (s *Store) UpdateSubCollection(_ context.Context, id library.ID, update library.ContainerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateSubCollection, id); err != nil {
		return err
	}
	ch, ok := s.chapters[id]
	if !ok {
		return errors.NewNotFoundError("sub-collection", id.String())
	}
	parent, name := ch.parent, ch.name
	if update.ParentID != 0 {
		if _, ok := s.collections[update.ParentID]; !ok {
			return errors.NewNotFoundError("collection", update.ParentID.String())
		}
		parent = update.ParentID
	}
	if update.Name != "" {
		name = update.Name
	}
	if s.StrictNames {
		for _, otherID := range s.chapterOrder {
			other := s.chapters[otherID]
			if otherID != id && other.parent == parent && other.name == name {
				return errors.NewStaleStateError("update", "sub-collection", id.String(),
					fmt.Errorf("name %q already used in collection %d", name, parent))
			}
		}
	}
	ch.parent, ch.name = parent, name
	for _, d := range s.documents {
		if d.ContainerID == id {
			d.CollectionID = parent
		}
	}
	return nil
}

// DeleteDocument implements library.Writer.
func (s *Store) DeleteDocument(_ context.Context, id library.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDeleteDocument, id); err != nil {
		return err
	}
	if _, ok := s.documents[id]; !ok {
		return errors.NewNotFoundError("document", id.String())
	}
	delete(s.documents, id)
	for i, docID := range s.documentOrder {
		if docID == id {
			s.documentOrder = append(s.documentOrder[:i], s.documentOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SetGroupingCollections implements library.Writer.
func (s *Store) SetGroupingCollections(_ context.Context, groupingID library.ID, collectionIDs []library.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSetGroupingCollections, groupingID); err != nil {
		return err
	}
	g, ok := s.groupings[groupingID]
	if !ok {
		return errors.NewNotFoundError("grouping", groupingID.String())
	}
	ids := append([]library.ID(nil), collectionIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	g.CollectionIDs = ids
	return nil
}
