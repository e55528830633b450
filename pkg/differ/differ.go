package differ

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
)

// Compared field names.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldParent      = "parent"
	FieldTitle       = "title"
	FieldLocation    = "location"
	FieldContent     = "content"
	FieldCollections = "collections"
)

// Differ compares library snapshots.
type Differ struct {
	content bool
	ignore  map[string]bool
}

// New creates a Differ. Document bodies are not compared by default.
func New(opts ...Option) *Differ {
	d := &Differ{ignore: make(map[string]bool)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type containerState struct {
	kind        library.Kind
	name        string
	description string
	parent      library.ID
}

type documentState struct {
	title   string
	owner   library.ID
	content string
}

type index struct {
	groupings  map[library.ID]library.Grouping
	containers map[library.ID]containerState
	documents  map[library.ID]documentState
}

// Document locations come from where the snapshot nests them, not from
// the documents' own fields.
func indexSnapshot(snap *memory.Snapshot) index {
	idx := index{
		groupings:  make(map[library.ID]library.Grouping),
		containers: make(map[library.ID]containerState),
		documents:  make(map[library.ID]documentState),
	}
	if snap == nil {
		return idx
	}
	for _, g := range snap.Groupings {
		idx.groupings[g.ID] = g
	}
	addDocs := func(owner library.ID, docs []library.Document) {
		for _, doc := range docs {
			idx.documents[doc.ID] = documentState{title: doc.Title, owner: owner, content: doc.Content.Text}
		}
	}
	for _, c := range snap.Collections {
		idx.containers[c.ID] = containerState{kind: library.KindCollection, name: c.Name, description: c.Description}
		addDocs(c.ID, c.Documents)
		for _, sc := range c.SubCollections {
			idx.containers[sc.ID] = containerState{kind: library.KindSubCollection, name: sc.Name, description: sc.Description, parent: c.ID}
			addDocs(sc.ID, sc.Documents)
		}
	}
	return idx
}

// Snapshots compares before with after.
func (d *Differ) Snapshots(before, after *memory.Snapshot) *Changeset {
	old, cur := indexSnapshot(before), indexSnapshot(after)
	cs := &Changeset{
		Groupings:  diffMaps(old.groupings, cur.groupings, d.grouping),
		Containers: diffMaps(old.containers, cur.containers, d.container),
		Documents:  diffMaps(old.documents, cur.documents, d.document),
	}
	cs.summarize()
	return cs
}

// compare returns field changes between two versions of an item together
// with its description.
type compare[T any] func(id library.ID, old, cur T) (library.Kind, string, []FieldChange)

func diffMaps[T any](old, cur map[library.ID]T, cmpFn compare[T]) []Change {
	var out []Change
	for id, c := range cur {
		o, ok := old[id]
		if !ok {
			kind, name, _ := cmpFn(id, c, c)
			out = append(out, Change{Type: ChangeTypeAdd, Kind: kind, ID: id, Name: name})
			continue
		}
		if kind, name, changes := cmpFn(id, o, c); len(changes) > 0 {
			out = append(out, Change{Type: ChangeTypeUpdate, Kind: kind, ID: id, Name: name, Changes: changes})
		}
	}
	for id, o := range old {
		if _, ok := cur[id]; !ok {
			kind, name, _ := cmpFn(id, o, o)
			out = append(out, Change{Type: ChangeTypeRemove, Kind: kind, ID: id, Name: name})
		}
	}
	slices.SortFunc(out, func(a, b Change) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (d *Differ) field(changes []FieldChange, name, old, cur string) []FieldChange {
	if old == cur || d.ignore[name] {
		return changes
	}
	return append(changes, FieldChange{Field: name, Old: old, New: cur})
}

func (d *Differ) grouping(_ library.ID, old, cur library.Grouping) (library.Kind, string, []FieldChange) {
	var changes []FieldChange
	changes = d.field(changes, FieldName, old.Name, cur.Name)
	changes = d.field(changes, FieldCollections, idList(old.CollectionIDs), idList(cur.CollectionIDs))
	return KindGrouping, cur.Name, changes
}

func (d *Differ) container(_ library.ID, old, cur containerState) (library.Kind, string, []FieldChange) {
	var changes []FieldChange
	changes = d.field(changes, FieldName, old.name, cur.name)
	changes = d.field(changes, FieldDescription, old.description, cur.description)
	changes = d.field(changes, FieldParent, idString(old.parent), idString(cur.parent))
	return cur.kind, cur.name, changes
}

func (d *Differ) document(_ library.ID, old, cur documentState) (library.Kind, string, []FieldChange) {
	var changes []FieldChange
	changes = d.field(changes, FieldTitle, old.title, cur.title)
	changes = d.field(changes, FieldLocation, old.owner.String(), cur.owner.String())
	if d.content && old.content != cur.content && !d.ignore[FieldContent] {
		changes = append(changes, FieldChange{
			Field: FieldContent,
			Old:   strconv.Itoa(len(old.content)) + " bytes",
			New:   strconv.Itoa(len(cur.content)) + " bytes",
		})
	}
	return library.KindDocument, cur.title, changes
}

// idList renders ids in sorted order so shelf order changes are ignored.
func idList(ids []library.ID) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

func idString(id library.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
