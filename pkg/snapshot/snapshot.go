// Package snapshot inventories the documents parked in inbox
// sub-collections so they can be reviewed and sorted by hand.
package snapshot

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/markup"
)

// Snapshot is the inbox inventory of a library.
type Snapshot struct {
	GeneratedAt    time.Time    `json:"generated_at"`
	InboxName      string       `json:"inbox_name"`
	Collections    []Collection `json:"collections"`
	TotalDocuments int          `json:"total_documents"`
}

// Collection is one collection that has an inbox.
type Collection struct {
	ID             library.ID      `json:"collection_id"`
	Name           string          `json:"collection_name"`
	InboxID        library.ID      `json:"inbox_id"`
	SubCollections []SubCollection `json:"sub_collections"`
	Documents      []Document      `json:"documents"`
}

// SubCollection summarises a sibling of the inbox, as a sorting target.
type SubCollection struct {
	ID            library.ID `json:"id"`
	Name          string     `json:"name"`
	DocumentCount int        `json:"document_count"`
}

// Document is the reviewable summary of one inbox document.
type Document struct {
	ID         library.ID            `json:"id"`
	Title      string                `json:"title"`
	Slug       string                `json:"slug,omitempty"`
	Draft      bool                  `json:"draft"`
	CreatedAt  time.Time             `json:"created_at,omitzero"`
	UpdatedAt  time.Time             `json:"updated_at,omitzero"`
	Format     library.ContentFormat `json:"format"`
	Headings   []string              `json:"headings"`
	TextSample string                `json:"text_sample"`
	Tags       []library.Tag         `json:"tags"`
}

// Builder reads inbox contents from a repository.
type Builder struct {
	repo        library.Reader
	inbox       string
	maxHeadings int
	sampleLen   int
	now         func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithInboxName sets the inbox sub-collection name.
func WithInboxName(name string) Option {
	return func(b *Builder) { b.inbox = name }
}

// WithLimits sets the heading count and text sample length.
func WithLimits(maxHeadings, sampleLen int) Option {
	return func(b *Builder) {
		b.maxHeadings = maxHeadings
		b.sampleLen = sampleLen
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder.
func NewBuilder(repo library.Reader, opts ...Option) *Builder {
	b := &Builder{
		repo:        repo,
		inbox:       constants.DefaultInboxName,
		maxHeadings: constants.MaxHeadings,
		sampleLen:   constants.TextSampleLength,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build walks every collection and summarises the documents of its first
// inbox sub-collection. Collections without an inbox are omitted.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{GeneratedAt: b.now().UTC(), InboxName: b.inbox, Collections: []Collection{}}

	collections, err := b.repo.Collections(ctx)
	if err != nil {
		return nil, err
	}
	for _, summary := range collections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full, err := b.repo.Collection(ctx, summary.ID)
		if err != nil {
			return nil, err
		}
		inbox, ok := full.ChildByName(b.inbox)
		if !ok {
			continue
		}

		entry := Collection{ID: full.ID, Name: full.Name, InboxID: inbox.ID, Documents: []Document{}}
		for _, ch := range full.Children {
			if ch.ID == inbox.ID {
				continue
			}
			entry.SubCollections = append(entry.SubCollections, SubCollection{ID: ch.ID, Name: ch.Name, DocumentCount: len(ch.Documents)})
		}
		for _, ref := range inbox.Documents {
			doc, err := b.repo.Document(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			entry.Documents = append(entry.Documents, b.summarise(doc))
		}
		snap.TotalDocuments += len(entry.Documents)
		snap.Collections = append(snap.Collections, entry)
	}
	return snap, nil
}

func (b *Builder) summarise(doc *library.Document) Document {
	headings := markup.Headings(doc.Content, b.maxHeadings)
	if headings == nil {
		headings = []string{}
	}
	tags := doc.Tags
	if tags == nil {
		tags = []library.Tag{}
	}
	return Document{
		ID:         doc.ID,
		Title:      doc.Title,
		Slug:       doc.Slug,
		Draft:      doc.Draft,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
		Format:     doc.Content.Format,
		Headings:   headings,
		TextSample: Truncate(markup.Text(doc.Content), b.sampleLen),
		Tags:       tags,
	}
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
