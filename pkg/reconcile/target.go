package reconcile

import (
	"fmt"
	"sort"

	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
)

type targetKind uint8

const (
	explicitTarget targetKind = iota + 1
	namedTarget
)

// Target is where a document should end up: either an existing
// sub-collection by id, or a sub-collection named within a collection that
// is created on demand.
type Target struct {
	kind        targetKind
	id          library.ID
	scope       library.ID
	name        string
	description string
}

// Explicit targets an existing sub-collection.
func Explicit(id library.ID) Target {
	return Target{kind: explicitTarget, id: id}
}

// Named targets the sub-collection called name inside collection scope.
func Named(scope library.ID, name, description string) Target {
	return Target{kind: namedTarget, scope: scope, name: name, description: description}
}

// IsNamed reports whether the target must be resolved by name.
func (t Target) IsNamed() bool {
	return t.kind == namedTarget
}

// ID returns the sub-collection id of an explicit target.
func (t Target) ID() library.ID {
	return t.id
}

// Scope returns the collection a named target lives in.
func (t Target) Scope() library.ID {
	return t.scope
}

// Name returns the sub-collection name of a named target.
func (t Target) Name() string {
	return t.name
}

// Description returns the description used when creating a named target.
func (t Target) Description() string {
	return t.description
}

// String implements fmt.Stringer.
func (t Target) String() string {
	switch t.kind {
	case explicitTarget:
		return fmt.Sprintf("#%d", t.id)
	case namedTarget:
		return fmt.Sprintf("%d/%q", t.scope, t.name)
	}
	return "(invalid target)"
}

func (t Target) validate() error {
	switch t.kind {
	case explicitTarget:
		if t.id <= 0 {
			return errors.NewValidationError("target", t.id, "explicit target id must be positive")
		}
	case namedTarget:
		if t.scope <= 0 {
			return errors.NewValidationError("target.scope", t.scope, "named target needs a collection id")
		}
		if t.name == "" {
			return errors.NewValidationError("target.name", t.name, "named target needs a name")
		}
	default:
		return errors.NewValidationError("target", t, "target is neither explicit nor named")
	}
	return nil
}

// Assignment pairs a document with its desired target.
type Assignment struct {
	DocumentID library.ID
	Target     Target
	// Reason is carried into the report, e.g. the classifier's reason.
	Reason string
}

// Catalog is the desired placement for a set of documents.
type Catalog struct {
	assignments []Assignment
	index       map[library.ID]int
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[library.ID]int)}
}

// Assign adds an assignment. A document may be assigned only once.
func (c *Catalog) Assign(documentID library.ID, target Target, reason string) error {
	if documentID <= 0 {
		return errors.NewValidationError("document", documentID, "document id must be positive")
	}
	if err := target.validate(); err != nil {
		return err
	}
	if _, dup := c.index[documentID]; dup {
		return errors.NewValidationError("document", documentID, "document assigned more than once")
	}
	c.index[documentID] = len(c.assignments)
	c.assignments = append(c.assignments, Assignment{DocumentID: documentID, Target: target, Reason: reason})
	return nil
}

// Len returns the number of assignments.
func (c *Catalog) Len() int {
	return len(c.assignments)
}

// Lookup returns the assignment for a document.
func (c *Catalog) Lookup(documentID library.ID) (Assignment, bool) {
	i, ok := c.index[documentID]
	if !ok {
		return Assignment{}, false
	}
	return c.assignments[i], true
}

// Sorted returns the assignments ordered by document id.
func (c *Catalog) Sorted() []Assignment {
	out := append([]Assignment(nil), c.assignments...)
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}
