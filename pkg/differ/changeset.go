// Package differ compares two library snapshots and reports what changed
// between them: containers created, renamed or reparented, documents moved
// or deleted, shelves whose book lists changed.
package differ

import (
	"fmt"
	"strings"

	"github.com/agentstation/librarian/pkg/library"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates an item was added.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates an item was updated.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates an item was removed.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange is one changed field of an updated item.
type FieldChange struct {
	Field string `json:"field" yaml:"field"`
	Old   string `json:"old" yaml:"old"`
	New   string `json:"new" yaml:"new"`
}

func (f FieldChange) String() string {
	return fmt.Sprintf("%s: %q -> %q", f.Field, f.Old, f.New)
}

// Change is one added, updated or removed item.
type Change struct {
	Type    ChangeType    `json:"type" yaml:"type"`
	Kind    library.Kind  `json:"kind" yaml:"kind"`
	ID      library.ID    `json:"id" yaml:"id"`
	Name    string        `json:"name" yaml:"name"`
	Changes []FieldChange `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// KindGrouping labels shelf changes; the library model has no container
// kind for them.
const KindGrouping library.Kind = "shelf"

// Summary counts changes by type.
type Summary struct {
	Added   int `json:"added" yaml:"added"`
	Updated int `json:"updated" yaml:"updated"`
	Removed int `json:"removed" yaml:"removed"`
	Moved   int `json:"moved" yaml:"moved"`
}

// Total returns the number of changed items.
func (s Summary) Total() int {
	return s.Added + s.Updated + s.Removed
}

// Changeset is every change between two snapshots, shelves first, then
// containers, then documents, each ordered by id.
type Changeset struct {
	Groupings  []Change `json:"groupings,omitempty" yaml:"groupings,omitempty"`
	Containers []Change `json:"containers,omitempty" yaml:"containers,omitempty"`
	Documents  []Change `json:"documents,omitempty" yaml:"documents,omitempty"`
	Summary    Summary  `json:"summary" yaml:"summary"`
}

// All returns every change in display order.
func (c *Changeset) All() []Change {
	out := make([]Change, 0, len(c.Groupings)+len(c.Containers)+len(c.Documents))
	out = append(out, c.Groupings...)
	out = append(out, c.Containers...)
	return append(out, c.Documents...)
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return c.Summary.Total() == 0
}

func (c *Changeset) summarize() {
	c.Summary = Summary{}
	for _, ch := range c.All() {
		switch ch.Type {
		case ChangeTypeAdd:
			c.Summary.Added++
		case ChangeTypeUpdate:
			c.Summary.Updated++
		case ChangeTypeRemove:
			c.Summary.Removed++
		}
	}
	for _, ch := range c.Documents {
		for _, f := range ch.Changes {
			if f.Field == FieldLocation {
				c.Summary.Moved++
			}
		}
	}
}

// String returns a one-line summary.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}
	var parts []string
	if c.Summary.Added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", c.Summary.Added))
	}
	if c.Summary.Updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", c.Summary.Updated))
	}
	if c.Summary.Removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", c.Summary.Removed))
	}
	if c.Summary.Moved > 0 {
		parts = append(parts, fmt.Sprintf("%d documents moved", c.Summary.Moved))
	}
	return strings.Join(parts, ", ")
}
