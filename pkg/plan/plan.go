// Package plan loads the organizational plan: which documents go where,
// which sub-collections to create for them, and which grouping each
// collection belongs on. The plan is data; the reconcile engine stays free
// of any particular library's identifiers.
package plan

import (
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/reconcile"
)

// ContainerSpec names a sub-collection to create on demand.
type ContainerSpec struct {
	Collection  library.ID `yaml:"collection"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
}

// Placement sends a batch of documents to either a named container spec
// (by key) or an existing sub-collection id. Exactly one must be set.
type Placement struct {
	Documents     []library.ID `yaml:"documents"`
	Container     string       `yaml:"container,omitempty"`
	SubCollection library.ID   `yaml:"sub_collection,omitempty"`
	Note          string       `yaml:"note,omitempty"`
}

// Shelving maps collection names to grouping names.
type Shelving struct {
	// Fallback grouping for collections not listed; empty uses the holding grouping.
	Default     string            `yaml:"default,omitempty"`
	Collections map[string]string `yaml:"collections,omitempty"`
}

// Plan is the parsed plan file.
type Plan struct {
	Containers map[string]ContainerSpec `yaml:"containers,omitempty"`
	Placements []Placement              `yaml:"placements,omitempty"`
	Shelving   Shelving                 `yaml:"shelving,omitempty"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates plan YAML.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.UnmarshalWithOptions(data, &p, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.WrapParse("yaml", "plan", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks container references and duplicate documents.
func (p *Plan) Validate() error {
	keys := make([]string, 0, len(p.Containers))
	for key := range p.Containers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		spec := p.Containers[key]
		if spec.Collection <= 0 {
			return errors.NewValidationError("containers."+key+".collection", spec.Collection, "must be a positive collection id")
		}
		if spec.Name == "" {
			return errors.NewValidationError("containers."+key+".name", spec.Name, "is required")
		}
	}

	seen := make(map[library.ID]int)
	for i, pl := range p.Placements {
		field := fmt.Sprintf("placements[%d]", i)
		switch {
		case pl.Container != "" && pl.SubCollection != 0:
			return errors.NewValidationError(field, pl, "set either container or sub_collection, not both")
		case pl.Container == "" && pl.SubCollection == 0:
			return errors.NewValidationError(field, pl, "container or sub_collection is required")
		case pl.Container != "":
			if _, ok := p.Containers[pl.Container]; !ok {
				return errors.NewValidationError(field+".container", pl.Container, "unknown container key")
			}
		}
		for _, doc := range pl.Documents {
			if prev, dup := seen[doc]; dup {
				return errors.NewValidationError(field+".documents", doc,
					fmt.Sprintf("document already placed by placements[%d]", prev))
			}
			seen[doc] = i
		}
	}
	return nil
}

// Catalog converts the placements into a reconcile catalog.
func (p *Plan) Catalog() (*reconcile.Catalog, error) {
	c := reconcile.NewCatalog()
	for _, pl := range p.Placements {
		target := reconcile.Explicit(pl.SubCollection)
		reason := "plan:explicit"
		if pl.Container != "" {
			spec := p.Containers[pl.Container]
			target = reconcile.Named(spec.Collection, spec.Name, spec.Description)
			reason = "plan:" + pl.Container
		}
		for _, doc := range pl.Documents {
			if err := c.Assign(doc, target, reason); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// GroupingFor returns the grouping name a collection should be shelved on,
// falling back to the plan default and then to fallback.
func (s Shelving) GroupingFor(collectionName, fallback string) string {
	if name, ok := s.Collections[collectionName]; ok && name != "" {
		return name
	}
	if s.Default != "" {
		return s.Default
	}
	return fallback
}
