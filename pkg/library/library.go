// Package library defines the hierarchical document model librarian
// reconciles: groupings hold collections, collections hold sub-collections
// and direct documents, sub-collections hold documents only.
//
// In BookStack terms a grouping is a shelf, a collection is a book, a
// sub-collection is a chapter and a document is a page.
package library

import (
	"strconv"
	"time"
)

// ID identifies any node in the remote library.
type ID int64

// PendingID is returned in dry-run mode for containers that would be created.
// It must never reach a write call.
const PendingID ID = -1

// Pending reports whether id is the dry-run placeholder.
func (id ID) Pending() bool {
	return id == PendingID
}

// String implements fmt.Stringer.
func (id ID) String() string {
	if id.Pending() {
		return "(pending)"
	}
	return strconv.FormatInt(int64(id), 10)
}

// Kind distinguishes the two container levels.
type Kind string

const (
	// KindCollection is a top-level container (a book).
	KindCollection Kind = "book"
	// KindSubCollection is a container nested one level below a collection (a chapter).
	KindSubCollection Kind = "chapter"
	// KindDocument is a leaf (a page); only used for search hits.
	KindDocument Kind = "page"
)

// Container is a collection or sub-collection.
type Container struct {
	ID          ID            `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        Kind          `json:"kind" yaml:"kind"`
	ParentID    ID            `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Children    []Container   `json:"children,omitempty" yaml:"children,omitempty"`
	Documents   []DocumentRef `json:"documents,omitempty" yaml:"documents,omitempty"`

	// Unlisted is set when the service returned the container without a
	// document list, so its contents are unknown.
	Unlisted bool `json:"unlisted,omitempty" yaml:"unlisted,omitempty"`
}

// Empty reports whether the container is known to have no direct documents.
// Nested sub-collections are not considered. An unlisted container is never
// empty.
func (c Container) Empty() bool {
	return !c.Unlisted && len(c.Documents) == 0
}

// ChildByName returns the first direct child with the given name.
// Names are not unique, so order decides.
func (c Container) ChildByName(name string) (Container, bool) {
	for _, child := range c.Children {
		if child.Name == name {
			return child, true
		}
	}
	return Container{}, false
}

// DocumentRef is the summary of a document as listed by its container.
type DocumentRef struct {
	ID    ID     `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// ContentFormat is the markup a document body is stored in.
type ContentFormat string

const (
	// FormatHTML marks HTML bodies.
	FormatHTML ContentFormat = "html"
	// FormatMarkdown marks markdown bodies.
	FormatMarkdown ContentFormat = "markdown"
)

// Content is an opaque document body.
type Content struct {
	Format ContentFormat `json:"format" yaml:"format"`
	Text   string        `json:"text" yaml:"text"`
}

// Tag is a name/value label on a document.
type Tag struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Document is a leaf content item.
type Document struct {
	ID           ID        `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Slug         string    `json:"slug,omitempty" yaml:"slug,omitempty"`
	CollectionID ID        `json:"collection_id" yaml:"collection_id"`
	ContainerID  ID        `json:"container_id,omitempty" yaml:"container_id,omitempty"` // 0 when held directly by the collection
	Content      Content   `json:"content" yaml:"content"`
	Tags         []Tag     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Draft        bool      `json:"draft,omitempty" yaml:"draft,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Owner returns the single container the document belongs to.
func (d Document) Owner() ID {
	if d.ContainerID != 0 {
		return d.ContainerID
	}
	return d.CollectionID
}

// Grouping is a top-level grouping of collections (a shelf).
type Grouping struct {
	ID            ID     `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	CollectionIDs []ID   `json:"collection_ids,omitempty" yaml:"collection_ids,omitempty"`
}

// Has reports whether the grouping lists the collection.
func (g Grouping) Has(id ID) bool {
	for _, c := range g.CollectionIDs {
		if c == id {
			return true
		}
	}
	return false
}

// SearchHit is one result of a title search.
type SearchHit struct {
	ID   ID     `json:"id"`
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

// ContainerUpdate describes a reparent and/or rename. Zero fields are left unchanged.
type ContainerUpdate struct {
	ParentID ID
	Name     string
}
