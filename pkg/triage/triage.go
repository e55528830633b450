// Package triage routes documents held directly by a collection into one
// of its sub-collections, falling back to an inbox sub-collection.
package triage

import (
	"context"

	"github.com/agentstation/librarian/pkg/classify"
	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/logging"
	"github.com/agentstation/librarian/pkg/reconcile"
	"github.com/agentstation/librarian/pkg/report"
)

// Stage is the report stage name.
const Stage = "triage"

// Counter names recorded on the report, in addition to the engine's.
const (
	CounterAssigned = "assigned"
	CounterInboxed  = "inboxed"
)

// InboxDescription is set on inbox sub-collections created by triage.
const InboxDescription = "Catch-all for pages that were created directly in the book."

// Stats summarises a triage plan.
type Stats struct {
	Collections int `json:"collections"`
	Assigned    int `json:"assigned"`
	Inboxed     int `json:"inboxed"`
}

// Triager builds and executes triage catalogs.
type Triager struct {
	repo       library.Repository
	classifier *classify.Classifier
	inbox      string
	skip       map[library.ID]bool
	reportOpts []report.Option
}

// Option configures a Triager.
type Option func(*Triager)

// WithClassifier replaces the default classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(t *Triager) {
		t.classifier = c
	}
}

// WithInboxName sets the name of the fallback sub-collection.
func WithInboxName(name string) Option {
	return func(t *Triager) {
		t.inbox = name
	}
}

// WithSkip excludes collections, such as the holding collection.
func WithSkip(ids ...library.ID) Option {
	return func(t *Triager) {
		for _, id := range ids {
			t.skip[id] = true
		}
	}
}

// WithReportOptions passes options to the report.
func WithReportOptions(opts ...report.Option) Option {
	return func(t *Triager) {
		t.reportOpts = append(t.reportOpts, opts...)
	}
}

// New creates a Triager.
func New(repo library.Repository, opts ...Option) *Triager {
	t := &Triager{
		repo:  repo,
		inbox: constants.DefaultInboxName,
		skip:  make(map[library.ID]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.classifier == nil {
		t.classifier = classify.New(nil)
	}
	return t
}

// Plan classifies every direct document. The inbox is not a candidate, and
// is only targeted, by name, when something has to go there.
func (t *Triager) Plan(ctx context.Context) (*reconcile.Catalog, Stats, error) {
	var stats Stats
	catalog := reconcile.NewCatalog()

	collections, err := t.repo.Collections(ctx)
	if err != nil {
		return nil, stats, err
	}
	for _, summary := range collections {
		if t.skip[summary.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		collection, err := t.repo.Collection(ctx, summary.ID)
		if err != nil {
			return nil, stats, err
		}
		if len(collection.Documents) == 0 {
			continue
		}
		stats.Collections++

		candidates := make([]classify.Candidate, 0, len(collection.Children))
		for _, ch := range collection.Children {
			if ch.Name == t.inbox {
				continue
			}
			candidates = append(candidates, t.classifier.Candidate(ch.ID, ch.Name))
		}

		for _, doc := range collection.Documents {
			res := t.classifier.Classify(doc.Title, candidates)
			target := reconcile.Explicit(res.ID)
			reason := res.Reason
			if res.Matched {
				stats.Assigned++
			} else {
				target = reconcile.Named(collection.ID, t.inbox, InboxDescription)
				reason = "inbox:" + res.Reason
				stats.Inboxed++
			}
			if err := catalog.Assign(doc.ID, target, reason); err != nil {
				return nil, stats, err
			}
		}
	}
	return catalog, stats, nil
}

// Run plans and executes triage through a fresh reconcile engine.
func (t *Triager) Run(ctx context.Context, mode report.Mode) (*report.Report, error) {
	rep := report.New(Stage, mode, t.reportOpts...)
	defer rep.Seal()

	catalog, stats, err := t.Plan(ctx)
	if err != nil {
		_ = rep.Fail(report.Failure{Kind: report.KindMoveDocument, Error: err.Error()})
		return rep, err
	}
	_ = rep.Count(CounterAssigned, stats.Assigned)
	_ = rep.Count(CounterInboxed, stats.Inboxed)
	logging.FromContext(ctx).Info().
		Int("collections", stats.Collections).
		Int("assigned", stats.Assigned).
		Int("inboxed", stats.Inboxed).
		Msg("triage planned")

	return rep, reconcile.NewEngine(t.repo).Execute(ctx, rep, catalog, mode)
}
