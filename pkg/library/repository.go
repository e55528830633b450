package library

import "context"

// Reader is the read side of the remote library.
type Reader interface {
	// Groupings lists groupings; CollectionIDs may be unpopulated.
	Groupings(ctx context.Context) ([]Grouping, error)
	// Grouping fetches one grouping with its ordered collection list.
	Grouping(ctx context.Context, id ID) (*Grouping, error)
	// Collections lists collections without contents.
	Collections(ctx context.Context) ([]Container, error)
	// Collection fetches a collection with its sub-collections (each with
	// documents) and its direct documents.
	Collection(ctx context.Context, id ID) (*Container, error)
	// SubCollection fetches a sub-collection with its documents.
	SubCollection(ctx context.Context, id ID) (*Container, error)
	// Document fetches a document including its body and tags.
	Document(ctx context.Context, id ID) (*Document, error)
	// SearchByTitle runs the service's text search for title.
	SearchByTitle(ctx context.Context, title string) ([]SearchHit, error)
}

// Writer is the write side of the remote library.
type Writer interface {
	CreateCollection(ctx context.Context, name, description string) (*Container, error)
	CreateSubCollection(ctx context.Context, collectionID ID, name, description string) (*Container, error)
	// MoveDocument reparents a document into a sub-collection.
	MoveDocument(ctx context.Context, documentID, subCollectionID ID) error
	UpdateSubCollection(ctx context.Context, id ID, update ContainerUpdate) error
	DeleteDocument(ctx context.Context, id ID) error
	SetGroupingCollections(ctx context.Context, groupingID ID, collectionIDs []ID) error
}

// Repository is the full remote boundary consumed by the reconciliation stages.
type Repository interface {
	Reader
	Writer
}
