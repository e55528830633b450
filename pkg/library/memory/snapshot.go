package memory

import (
	"context"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
)

// Snapshot is the YAML form of a whole library. Collections nest their
// sub-collections; documents nest under their owner.
type Snapshot struct {
	Groupings   []library.Grouping   `yaml:"groupings,omitempty"`
	Collections []SnapshotCollection `yaml:"collections"`
}

// SnapshotCollection is one collection with its contents.
type SnapshotCollection struct {
	ID             library.ID              `yaml:"id"`
	Name           string                  `yaml:"name"`
	Description    string                  `yaml:"description,omitempty"`
	SubCollections []SnapshotSubCollection `yaml:"sub_collections,omitempty"`
	Documents      []library.Document      `yaml:"documents,omitempty"`
}

// SnapshotSubCollection is one sub-collection with its documents.
type SnapshotSubCollection struct {
	ID          library.ID         `yaml:"id"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Documents   []library.Document `yaml:"documents,omitempty"`
}

// FromSnapshot builds a store from a snapshot, keeping its ids and order.
func FromSnapshot(snap *Snapshot) *Store {
	s := New()
	for _, c := range snap.Collections {
		s.mu.Lock()
		collectionID := s.addCollection(c.ID, c.Name, c.Description)
		s.mu.Unlock()
		for _, ch := range c.SubCollections {
			s.mu.Lock()
			chapterID := s.addChapter(ch.ID, collectionID, ch.Name, ch.Description)
			s.mu.Unlock()
			for _, d := range ch.Documents {
				d.CollectionID, d.ContainerID = collectionID, chapterID
				s.AddDocument(d)
			}
		}
		for _, d := range c.Documents {
			d.CollectionID, d.ContainerID = collectionID, 0
			s.AddDocument(d)
		}
	}
	for _, g := range snap.Groupings {
		s.AddGrouping(g.ID, g.Name, g.CollectionIDs...)
	}
	return s
}

// ReadSnapshot parses a YAML snapshot file.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &snap, nil
}

// LoadSnapshot reads a YAML snapshot file into a new store.
func LoadSnapshot(path string) (*Store, error) {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return FromSnapshot(snap), nil
}

// Capture reads every grouping, collection and document from r.
func Capture(ctx context.Context, r library.Reader) (*Snapshot, error) {
	snap := &Snapshot{}

	groupings, err := r.Groupings(ctx)
	if err != nil {
		return nil, errors.WrapResource("list", "groupings", "", err)
	}
	for _, g := range groupings {
		full, err := r.Grouping(ctx, g.ID)
		if err != nil {
			return nil, errors.WrapResource("get", "grouping", g.ID.String(), err)
		}
		snap.Groupings = append(snap.Groupings, *full)
	}

	collections, err := r.Collections(ctx)
	if err != nil {
		return nil, errors.WrapResource("list", "collections", "", err)
	}
	for _, c := range collections {
		full, err := r.Collection(ctx, c.ID)
		if err != nil {
			return nil, errors.WrapResource("get", "collection", c.ID.String(), err)
		}
		sc := SnapshotCollection{ID: full.ID, Name: full.Name, Description: full.Description}
		for _, ch := range full.Children {
			if ch.Unlisted {
				listed, err := r.SubCollection(ctx, ch.ID)
				if err != nil {
					return nil, errors.WrapResource("get", "sub-collection", ch.ID.String(), err)
				}
				ch.Documents = listed.Documents
			}
			ssc := SnapshotSubCollection{ID: ch.ID, Name: ch.Name, Description: ch.Description}
			for _, ref := range ch.Documents {
				doc, err := r.Document(ctx, ref.ID)
				if err != nil {
					return nil, errors.WrapResource("get", "document", ref.ID.String(), err)
				}
				ssc.Documents = append(ssc.Documents, *doc)
			}
			sc.SubCollections = append(sc.SubCollections, ssc)
		}
		for _, ref := range full.Documents {
			doc, err := r.Document(ctx, ref.ID)
			if err != nil {
				return nil, errors.WrapResource("get", "document", ref.ID.String(), err)
			}
			sc.Documents = append(sc.Documents, *doc)
		}
		snap.Collections = append(snap.Collections, sc)
	}
	return snap, nil
}

// WriteSnapshot writes snap as YAML to path.
func WriteSnapshot(path string, snap *Snapshot) error {
	data, err := yaml.MarshalWithOptions(snap, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
