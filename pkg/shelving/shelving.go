// Package shelving puts collections that no grouping lists onto one.
package shelving

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/logging"
	"github.com/agentstation/librarian/pkg/report"
)

// Stage is the report stage name.
const Stage = "shelve"

// Counter names recorded on the report.
const (
	CounterShelved = "shelved"
	CounterFailed  = "failed"
)

// Rules chooses a grouping name for a collection.
type Rules interface {
	GroupingFor(collectionName, fallback string) string
}

// Map is a fixed collection name to grouping name table.
type Map map[string]string

// GroupingFor implements Rules.
func (m Map) GroupingFor(collectionName, fallback string) string {
	if name, ok := m[collectionName]; ok && name != "" {
		return name
	}
	return fallback
}

// Shelver assigns unshelved collections to groupings.
type Shelver struct {
	repo       library.Repository
	rules      Rules
	fallback   string
	reportOpts []report.Option
}

// Option configures a Shelver.
type Option func(*Shelver)

// WithRules sets the grouping rules. Without rules everything goes to the fallback.
func WithRules(r Rules) Option {
	return func(s *Shelver) {
		s.rules = r
	}
}

// WithFallback sets the grouping used when no rule matches.
func WithFallback(name string) Option {
	return func(s *Shelver) {
		s.fallback = name
	}
}

// WithReportOptions passes options to the report.
func WithReportOptions(opts ...report.Option) Option {
	return func(s *Shelver) {
		s.reportOpts = append(s.reportOpts, opts...)
	}
}

// New creates a Shelver.
func New(repo library.Repository, opts ...Option) *Shelver {
	s := &Shelver{
		repo:     repo,
		rules:    Map(nil),
		fallback: constants.DefaultHoldingGrouping,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Unshelved returns the collections no grouping lists, in id order.
func (s *Shelver) Unshelved(ctx context.Context) ([]library.Container, error) {
	groupings, err := s.repo.Groupings(ctx)
	if err != nil {
		return nil, err
	}
	shelved := make(map[library.ID]bool)
	for _, g := range groupings {
		full, err := s.repo.Grouping(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range full.CollectionIDs {
			shelved[id] = true
		}
	}

	collections, err := s.repo.Collections(ctx)
	if err != nil {
		return nil, err
	}
	var out []library.Container
	for _, c := range collections {
		if !shelved[c.ID] {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b library.Container) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Run shelves every unshelved collection. A collection whose grouping does
// not exist is recorded as a failure and skipped.
func (s *Shelver) Run(ctx context.Context, mode report.Mode) (*report.Report, error) {
	rep := report.New(Stage, mode, s.reportOpts...)
	defer rep.Seal()
	_ = rep.Count(CounterShelved, 0)
	_ = rep.Count(CounterFailed, 0)
	logger := logging.FromContext(ctx)

	unshelved, err := s.Unshelved(ctx)
	if err != nil {
		_ = rep.Fail(report.Failure{Kind: report.KindShelveCollection, Error: err.Error()})
		return rep, err
	}
	groupings, err := s.repo.Groupings(ctx)
	if err != nil {
		_ = rep.Fail(report.Failure{Kind: report.KindShelveCollection, Error: err.Error()})
		return rep, err
	}
	byName := make(map[string]library.ID, len(groupings))
	for _, g := range groupings {
		if _, seen := byName[g.Name]; !seen {
			byName[g.Name] = g.ID
		}
	}
	// dry-run additions, so later collections see earlier ones
	planned := make(map[library.ID][]library.ID)

	for _, c := range unshelved {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		name := s.rules.GroupingFor(c.Name, s.fallback)
		action := report.Action{Kind: report.KindShelveCollection, Subject: c.ID, Name: c.Name, Reason: name}

		groupingID, ok := byName[name]
		if !ok {
			s.failed(rep, action, 0, fmt.Errorf("grouping %q not found", name))
			continue
		}
		action.To = groupingID

		grouping, err := s.repo.Grouping(ctx, groupingID)
		if err != nil {
			s.failed(rep, action, groupingID, err)
			continue
		}
		current := append(append([]library.ID(nil), grouping.CollectionIDs...), planned[groupingID]...)
		if slices.Contains(current, c.ID) {
			action.Outcome = report.NoOp
			_ = rep.Add(action)
			continue
		}
		ids := append(current, c.ID)
		slices.Sort(ids)

		if mode.Applies() {
			if err := s.repo.SetGroupingCollections(ctx, groupingID, ids); err != nil {
				s.failed(rep, action, groupingID, err)
				continue
			}
		} else {
			planned[groupingID] = append(planned[groupingID], c.ID)
		}
		action.Outcome = report.Changed
		_ = rep.Add(action)
		_ = rep.Count(CounterShelved, 1)
		logger.Debug().Str("collection", c.Name).Str("grouping", name).Msg("shelved collection")
	}
	return rep, nil
}

func (s *Shelver) failed(rep *report.Report, action report.Action, grouping library.ID, err error) {
	action.Outcome = report.Failed
	action.Error = err.Error()
	_ = rep.Add(action)
	_ = rep.Fail(report.Failure{
		Kind:    report.KindShelveCollection,
		Subject: action.Subject,
		Name:    action.Name,
		Parent:  grouping,
		Error:   err.Error(),
	})
	_ = rep.Count(CounterFailed, 1)
}
