// Package bookstacktest runs a fake BookStack REST API over a memory store
// so the HTTP client, repository and reconciliation stages can be tested
// end to end without a real instance.
package bookstacktest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
)

// Server is a fake BookStack instance.
type Server struct {
	*httptest.Server

	store  *memory.Store
	token  string
	script script

	mu       sync.Mutex
	requests []string
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Token <token>" on every request.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// New starts a fake server backed by store and closes it when t ends.
func New(t testing.TB, store *memory.Store, opts ...Option) *Server {
	t.Helper()
	s := &Server{store: store}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// APIURL is the base URL clients should use.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// Store returns the backing store.
func (s *Server) Store() *memory.Store {
	return s.store
}

// Throttle makes the next times requests answer 429 with the given Retry-After seconds (0 omits the header).
func (s *Server) Throttle(times, retryAfter int) {
	s.script.push(http.StatusTooManyRequests, retryAfter, times)
}

// FailNext makes the next times requests answer with status.
func (s *Server) FailNext(status, times int) {
	s.script.push(status, 0, times)
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record, s.auth, s.throttle)

	r.Route("/api", func(r chi.Router) {
		r.Get("/shelves", s.handleListShelves)
		r.Get("/shelves/{id}", s.handleGetShelf)
		r.Put("/shelves/{id}", s.handleUpdateShelf)
		r.Get("/books", s.handleListBooks)
		r.Post("/books", s.handleCreateBook)
		r.Get("/books/{id}", s.handleGetBook)
		r.Post("/chapters", s.handleCreateChapter)
		r.Get("/chapters/{id}", s.handleGetChapter)
		r.Put("/chapters/{id}", s.handleUpdateChapter)
		r.Get("/pages/{id}", s.handleGetPage)
		r.Put("/pages/{id}", s.handleUpdatePage)
		r.Delete("/pages/{id}", s.handleDeletePage)
		r.Get("/search", s.handleSearch)
	})
	return r
}

func idParam(w http.ResponseWriter, r *http.Request) (library.ID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return library.ID(id), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type ref struct {
	ID   library.ID `json:"id"`
	Name string     `json:"name"`
}

type listing struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// paginate applies BookStack's count/offset query parameters.
func paginate[T any](r *http.Request, items []T) listing {
	total := len(items)
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = 100
	}
	if offset > total {
		offset = total
	}
	end := offset + count
	if end > total {
		end = total
	}
	return listing{Data: items[offset:end], Total: total}
}

func (s *Server) handleListShelves(w http.ResponseWriter, r *http.Request) {
	groupings, err := s.store.Groupings(r.Context())
	if err != nil {
		failFromError(w, err)
		return
	}
	out := make([]ref, 0, len(groupings))
	for _, g := range groupings {
		out = append(out, ref{ID: g.ID, Name: g.Name})
	}
	ok(w, paginate(r, out))
}

func (s *Server) handleGetShelf(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	g, err := s.store.Grouping(r.Context(), id)
	if err != nil {
		failFromError(w, err)
		return
	}
	books := make([]ref, 0, len(g.CollectionIDs))
	for _, bookID := range g.CollectionIDs {
		book := ref{ID: bookID}
		if c, err := s.store.Collection(r.Context(), bookID); err == nil {
			book.Name = c.Name
		}
		books = append(books, book)
	}
	ok(w, map[string]any{"id": g.ID, "name": g.Name, "books": books})
}

func (s *Server) handleUpdateShelf(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	var body struct {
		Books []library.ID `json:"books"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.store.SetGroupingCollections(r.Context(), id, body.Books); err != nil {
		failFromError(w, err)
		return
	}
	s.handleGetShelf(w, r)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.Collections(r.Context())
	if err != nil {
		failFromError(w, err)
		return
	}
	type bookSummary struct {
		ID          library.ID `json:"id"`
		Name        string     `json:"name"`
		Description string     `json:"description"`
	}
	out := make([]bookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, bookSummary{ID: b.ID, Name: b.Name, Description: b.Description})
	}
	ok(w, paginate(r, out))
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Name == "" {
		fail(w, http.StatusUnprocessableEntity, "The name field is required.")
		return
	}
	c, err := s.store.CreateCollection(r.Context(), body.Name, body.Description)
	if err != nil {
		failFromError(w, err)
		return
	}
	ok(w, map[string]any{"id": c.ID, "name": c.Name, "description": c.Description})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	c, err := s.store.Collection(r.Context(), id)
	if err != nil {
		failFromError(w, err)
		return
	}
	contents := make([]map[string]any, 0, len(c.Children)+len(c.Documents))
	for _, ch := range c.Children {
		contents = append(contents, map[string]any{
			"id": ch.ID, "type": "chapter", "name": ch.Name, "pages": pageRefs(ch.Documents),
		})
	}
	for _, d := range c.Documents {
		contents = append(contents, map[string]any{"id": d.ID, "type": "page", "name": d.Title})
	}
	ok(w, map[string]any{"id": c.ID, "name": c.Name, "description": c.Description, "contents": contents})
}

func pageRefs(docs []library.DocumentRef) []ref {
	out := make([]ref, 0, len(docs))
	for _, d := range docs {
		out = append(out, ref{ID: d.ID, Name: d.Title})
	}
	return out
}

func (s *Server) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BookID      library.ID `json:"book_id"`
		Name        string     `json:"name"`
		Description string     `json:"description"`
	}
	if !decode(w, r, &body) {
		return
	}
	ch, err := s.store.CreateSubCollection(r.Context(), body.BookID, body.Name, body.Description)
	if err != nil {
		failFromError(w, err)
		return
	}
	ok(w, map[string]any{"id": ch.ID, "book_id": ch.ParentID, "name": ch.Name, "description": ch.Description})
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	ch, err := s.store.SubCollection(r.Context(), id)
	if err != nil {
		failFromError(w, err)
		return
	}
	ok(w, map[string]any{
		"id": ch.ID, "book_id": ch.ParentID, "name": ch.Name,
		"description": ch.Description, "pages": pageRefs(ch.Documents),
	})
}

func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	var body struct {
		BookID library.ID `json:"book_id"`
		Name   string     `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.store.UpdateSubCollection(r.Context(), id, library.ContainerUpdate{ParentID: body.BookID, Name: body.Name}); err != nil {
		failFromError(w, err)
		return
	}
	s.handleGetChapter(w, r)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	d, err := s.store.Document(r.Context(), id)
	if err != nil {
		failFromError(w, err)
		return
	}
	page := map[string]any{
		"id": d.ID, "book_id": d.CollectionID, "chapter_id": d.ContainerID,
		"name": d.Title, "slug": d.Slug, "draft": d.Draft,
		"html": "", "raw_html": "", "markdown": "",
	}
	if d.Content.Format == library.FormatMarkdown {
		page["markdown"] = d.Content.Text
	} else {
		page["html"] = d.Content.Text
		page["raw_html"] = d.Content.Text
	}
	tags := make([]map[string]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		tags = append(tags, map[string]string{"name": t.Name, "value": t.Value})
	}
	page["tags"] = tags
	ok(w, page)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	var body struct {
		ChapterID library.ID `json:"chapter_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.store.MoveDocument(r.Context(), id, body.ChapterID); err != nil {
		failFromError(w, err)
		return
	}
	s.handleGetPage(w, r)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(w, r)
	if !valid {
		return
	}
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		failFromError(w, err)
		return
	}
	noContent(w)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	hits, err := s.store.SearchByTitle(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		failFromError(w, err)
		return
	}
	type hit struct {
		ID   library.ID `json:"id"`
		Type string     `json:"type"`
		Name string     `json:"name"`
	}
	out := make([]hit, 0, len(hits))
	for _, h := range hits {
		out = append(out, hit{ID: h.ID, Type: string(h.Kind), Name: h.Name})
	}
	ok(w, searchPage(r, out))
}

// searchPage applies the search endpoint's page/count query parameters.
func searchPage[T any](r *http.Request, items []T) listing {
	total := len(items)
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = 100
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	start := min((page-1)*count, total)
	end := min(start+count, total)
	return listing{Data: items[start:end], Total: total}
}
