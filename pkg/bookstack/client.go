// Package bookstack implements library.Repository over the BookStack REST API.
package bookstack

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/agentstation/librarian/internal/transport"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
)

// pageSize is the largest listing page BookStack accepts.
const pageSize = 500

// searchPageSize is the largest page the search endpoint accepts.
const searchPageSize = 100

// Caller issues one remote call. *transport.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, method, path string, body any) (*transport.Response, error)
}

// Client implements library.Repository for BookStack.
type Client struct {
	api Caller
}

var _ library.Repository = (*Client)(nil)

// New creates a BookStack repository on top of api.
func New(api Caller) *Client {
	return &Client{api: api}
}

// get decodes a GET response; an empty body is reported as ErrNoContent.
func (c *Client) get(ctx context.Context, path string, target any) error {
	resp, err := c.api.Call(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	return resp.Decode(target)
}

// send issues a write and decodes the body when target is non-nil and a body came back.
func (c *Client) send(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.api.Call(ctx, method, path, body)
	if err != nil {
		return err
	}
	if target == nil || resp.Empty() {
		return nil
	}
	return resp.Decode(target)
}

// listAll walks a paginated listing endpoint.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for offset := 0; ; offset += pageSize {
		var page listResponse[T]
		if err := c.get(ctx, fmt.Sprintf("%s?count=%d&offset=%d", path, pageSize, offset), &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if len(page.Data) < pageSize || (page.Total > 0 && len(all) >= page.Total) {
			return all, nil
		}
	}
}

// Groupings implements library.Reader. Listing does not include books.
func (c *Client) Groupings(ctx context.Context) ([]library.Grouping, error) {
	shelves, err := listAll[refResponse](ctx, c, "/shelves")
	if err != nil {
		return nil, errors.WrapResource("list", "shelves", "", err)
	}
	out := make([]library.Grouping, 0, len(shelves))
	for _, s := range shelves {
		out = append(out, library.Grouping{ID: library.ID(s.ID), Name: s.Name})
	}
	return out, nil
}

// Grouping implements library.Reader.
func (c *Client) Grouping(ctx context.Context, id library.ID) (*library.Grouping, error) {
	var shelf shelfResponse
	if err := c.get(ctx, fmt.Sprintf("/shelves/%d", id), &shelf); err != nil {
		return nil, errors.WrapResource("get", "shelf", id.String(), err)
	}
	g := &library.Grouping{ID: library.ID(shelf.ID), Name: shelf.Name}
	for _, b := range shelf.Books {
		g.CollectionIDs = append(g.CollectionIDs, library.ID(b.ID))
	}
	return g, nil
}

// Collections implements library.Reader.
func (c *Client) Collections(ctx context.Context) ([]library.Container, error) {
	books, err := listAll[bookResponse](ctx, c, "/books")
	if err != nil {
		return nil, errors.WrapResource("list", "books", "", err)
	}
	out := make([]library.Container, 0, len(books))
	for _, b := range books {
		out = append(out, library.Container{
			ID:          library.ID(b.ID),
			Name:        b.Name,
			Description: b.Description,
			Kind:        library.KindCollection,
		})
	}
	return out, nil
}

// Collection implements library.Reader.
func (c *Client) Collection(ctx context.Context, id library.ID) (*library.Container, error) {
	var book bookResponse
	if err := c.get(ctx, fmt.Sprintf("/books/%d", id), &book); err != nil {
		return nil, errors.WrapResource("get", "book", id.String(), err)
	}
	return book.toContainer(), nil
}

// SubCollection implements library.Reader.
func (c *Client) SubCollection(ctx context.Context, id library.ID) (*library.Container, error) {
	var ch chapterResponse
	if err := c.get(ctx, fmt.Sprintf("/chapters/%d", id), &ch); err != nil {
		return nil, errors.WrapResource("get", "chapter", id.String(), err)
	}
	return ch.toContainer(), nil
}

// Document implements library.Reader.
func (c *Client) Document(ctx context.Context, id library.ID) (*library.Document, error) {
	var p pageResponse
	if err := c.get(ctx, fmt.Sprintf("/pages/%d", id), &p); err != nil {
		return nil, errors.WrapResource("get", "page", id.String(), err)
	}
	return p.toDocument(), nil
}

// SearchByTitle implements library.Reader. Results are whatever the service's
// full-text search returns; callers filter for exact names.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]library.SearchHit, error) {
	var hits []library.SearchHit
	seen := 0
	for page := 1; ; page++ {
		var res listResponse[searchHitResponse]
		path := fmt.Sprintf("/search?query=%s&page=%d&count=%d", url.QueryEscape(title), page, searchPageSize)
		if err := c.get(ctx, path, &res); err != nil {
			return nil, errors.WrapResource("search", "pages", title, err)
		}
		for _, item := range res.Data {
			kind, ok := kindOf(item.Type)
			if !ok {
				continue
			}
			hits = append(hits, library.SearchHit{ID: library.ID(item.ID), Kind: kind, Name: item.Name})
		}
		seen += len(res.Data)
		if len(res.Data) < searchPageSize || (res.Total > 0 && seen >= res.Total) {
			return hits, nil
		}
	}
}

// CreateCollection implements library.Writer.
func (c *Client) CreateCollection(ctx context.Context, name, description string) (*library.Container, error) {
	var created bookResponse
	if err := c.send(ctx, "POST", "/books", createBookRequest{Name: name, Description: description}, &created); err != nil {
		return nil, errors.WrapResource("create", "book", name, err)
	}
	if created.ID == 0 {
		return nil, errors.WrapResource("create", "book", name, errors.ErrNoContent)
	}
	return &library.Container{ID: library.ID(created.ID), Name: name, Description: description, Kind: library.KindCollection}, nil
}

// CreateSubCollection implements library.Writer.
func (c *Client) CreateSubCollection(ctx context.Context, collectionID library.ID, name, description string) (*library.Container, error) {
	body := createChapterRequest{BookID: int64(collectionID), Name: name, Description: description}
	var created chapterResponse
	if err := c.send(ctx, "POST", "/chapters", body, &created); err != nil {
		return nil, errors.WrapResource("create", "chapter", name, err)
	}
	if created.ID == 0 {
		return nil, errors.WrapResource("create", "chapter", name, errors.ErrNoContent)
	}
	return &library.Container{
		ID:          library.ID(created.ID),
		Name:        name,
		Description: description,
		Kind:        library.KindSubCollection,
		ParentID:    collectionID,
	}, nil
}

// MoveDocument implements library.Writer.
func (c *Client) MoveDocument(ctx context.Context, documentID, subCollectionID library.ID) error {
	path := fmt.Sprintf("/pages/%d", documentID)
	if err := c.send(ctx, "PUT", path, movePageRequest{ChapterID: int64(subCollectionID)}, nil); err != nil {
		return errors.WrapResource("move", "page", documentID.String(), err)
	}
	return nil
}

// UpdateSubCollection implements library.Writer.
func (c *Client) UpdateSubCollection(ctx context.Context, id library.ID, update library.ContainerUpdate) error {
	path := fmt.Sprintf("/chapters/%d", id)
	body := updateChapterRequest{BookID: int64(update.ParentID), Name: update.Name}
	if err := c.send(ctx, "PUT", path, body, nil); err != nil {
		return errors.WrapResource("update", "chapter", id.String(), err)
	}
	return nil
}

// DeleteDocument implements library.Writer.
func (c *Client) DeleteDocument(ctx context.Context, id library.ID) error {
	if err := c.send(ctx, "DELETE", fmt.Sprintf("/pages/%d", id), nil, nil); err != nil {
		return errors.WrapResource("delete", "page", id.String(), err)
	}
	return nil
}

// SetGroupingCollections implements library.Writer. The list is sent sorted.
func (c *Client) SetGroupingCollections(ctx context.Context, groupingID library.ID, collectionIDs []library.ID) error {
	ids := make([]int64, 0, len(collectionIDs))
	for _, id := range collectionIDs {
		ids = append(ids, int64(id))
	}
	slices.Sort(ids)
	if err := c.send(ctx, "PUT", fmt.Sprintf("/shelves/%d", groupingID), shelfBooksRequest{Books: ids}, nil); err != nil {
		return errors.WrapResource("update", "shelf", groupingID.String(), err)
	}
	return nil
}
