package bookstack

import (
	"time"

	"github.com/agentstation/librarian/pkg/library"
)

// Response structures for the BookStack REST API.
type listResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

type shelfResponse struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Books []refResponse `json:"books"`
}

type refResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type bookResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Contents    []contentResponse `json:"contents"`
}

// contentResponse is one entry of a book's contents: a chapter with its
// pages, or a page sitting directly in the book.
type contentResponse struct {
	ID    int64          `json:"id"`
	Type  string         `json:"type"`
	Name  string         `json:"name"`
	Pages *[]refResponse `json:"pages"`
}

type chapterResponse struct {
	ID          int64          `json:"id"`
	BookID      int64          `json:"book_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Pages       *[]refResponse `json:"pages"`
}

type pageResponse struct {
	ID        int64         `json:"id"`
	BookID    int64         `json:"book_id"`
	ChapterID int64         `json:"chapter_id"`
	Name      string        `json:"name"`
	Slug      string        `json:"slug"`
	HTML      string        `json:"html"`
	RawHTML   string        `json:"raw_html"`
	Markdown  string        `json:"markdown"`
	Draft     bool          `json:"draft"`
	Tags      []tagResponse `json:"tags"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type tagResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type searchHitResponse struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Request bodies.
type createBookRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type createChapterRequest struct {
	BookID      int64  `json:"book_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type updateChapterRequest struct {
	BookID int64  `json:"book_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

type movePageRequest struct {
	ChapterID int64 `json:"chapter_id"`
}

type shelfBooksRequest struct {
	Books []int64 `json:"books"`
}

// refs converts a page list. listed is false when the key was absent or null.
func refs(in *[]refResponse) (out []library.DocumentRef, listed bool) {
	if in == nil {
		return nil, false
	}
	for _, r := range *in {
		out = append(out, library.DocumentRef{ID: library.ID(r.ID), Title: r.Name})
	}
	return out, true
}

func (b bookResponse) toContainer() *library.Container {
	c := &library.Container{
		ID:          library.ID(b.ID),
		Name:        b.Name,
		Description: b.Description,
		Kind:        library.KindCollection,
	}
	for _, item := range b.Contents {
		switch item.Type {
		case "chapter":
			docs, listed := refs(item.Pages)
			c.Children = append(c.Children, library.Container{
				ID:        library.ID(item.ID),
				Name:      item.Name,
				Kind:      library.KindSubCollection,
				ParentID:  c.ID,
				Documents: docs,
				Unlisted:  !listed,
			})
		case "page":
			c.Documents = append(c.Documents, library.DocumentRef{ID: library.ID(item.ID), Title: item.Name})
		}
	}
	return c
}

func (ch chapterResponse) toContainer() *library.Container {
	docs, listed := refs(ch.Pages)
	return &library.Container{
		ID:          library.ID(ch.ID),
		Name:        ch.Name,
		Description: ch.Description,
		Kind:        library.KindSubCollection,
		ParentID:    library.ID(ch.BookID),
		Documents:   docs,
		Unlisted:    !listed,
	}
}

// toDocument picks the body in order of preference: markdown, raw_html, html.
func (p pageResponse) toDocument() *library.Document {
	doc := &library.Document{
		ID:           library.ID(p.ID),
		Title:        p.Name,
		Slug:         p.Slug,
		CollectionID: library.ID(p.BookID),
		ContainerID:  library.ID(p.ChapterID),
		Draft:        p.Draft,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	switch {
	case p.Markdown != "":
		doc.Content = library.Content{Format: library.FormatMarkdown, Text: p.Markdown}
	case p.RawHTML != "":
		doc.Content = library.Content{Format: library.FormatHTML, Text: p.RawHTML}
	default:
		doc.Content = library.Content{Format: library.FormatHTML, Text: p.HTML}
	}
	for _, t := range p.Tags {
		doc.Tags = append(doc.Tags, library.Tag{Name: t.Name, Value: t.Value})
	}
	return doc
}

func kindOf(apiType string) (library.Kind, bool) {
	switch apiType {
	case "book":
		return library.KindCollection, true
	case "chapter":
		return library.KindSubCollection, true
	case "page":
		return library.KindDocument, true
	}
	return "", false
}
