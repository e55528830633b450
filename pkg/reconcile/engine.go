// Package reconcile moves documents into their planned sub-collections.
//
// The Engine creates named sub-collections at most once per run, treats a
// document already in place as a no-op, and in dry-run mode never writes:
// containers that would be created resolve to library.PendingID and the
// moves that depend on them are reported as pending. Re-running an applied
// catalog produces no further changes.
//
// An Engine holds per-run caches and is not safe for concurrent use.
package reconcile

import (
	"context"
	"fmt"

	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/logging"
	"github.com/agentstation/librarian/pkg/report"
)

// Stage is the report stage name for a reconcile run.
const Stage = "reconcile"

// Counter names recorded on the report.
const (
	CounterMoved   = "moved"
	CounterSkipped = "skipped"
	CounterFailed  = "failed"
	CounterCreated = "created"
)

type containerKey struct {
	scope library.ID
	name  string
}

// Engine resolves and applies a Catalog against a repository.
type Engine struct {
	repo library.Repository

	// resolved (scope, name) pairs, including dry-run placeholders
	memo map[containerKey]library.ID
	// first sub-collection id per name, one lookup per scope
	children map[library.ID]map[string]library.ID

	reportOpts []report.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithReportOptions passes options to every report the engine creates.
func WithReportOptions(opts ...report.Option) Option {
	return func(e *Engine) {
		e.reportOpts = append(e.reportOpts, opts...)
	}
}

// NewEngine creates an engine with empty caches.
func NewEngine(repo library.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		memo:     make(map[containerKey]library.ID),
		children: make(map[library.ID]map[string]library.ID),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnsureContainer returns the id of the sub-collection called name in
// collection scope, creating it in apply mode when it does not exist. In
// dry-run mode a missing sub-collection yields library.PendingID, which must
// not be passed to any write. When several sub-collections share the name
// the first one listed wins.
func (e *Engine) EnsureContainer(ctx context.Context, scope library.ID, name, description string, mode report.Mode) (library.ID, error) {
	id, _, err := e.ensure(ctx, scope, name, description, mode)
	return id, err
}

// ensure also reports whether this call created the container.
func (e *Engine) ensure(ctx context.Context, scope library.ID, name, description string, mode report.Mode) (library.ID, bool, error) {
	key := containerKey{scope: scope, name: name}
	if id, ok := e.memo[key]; ok {
		return id, false, nil
	}

	names, err := e.childNames(ctx, scope)
	if err != nil {
		return 0, false, err
	}
	if id, ok := names[name]; ok {
		e.memo[key] = id
		return id, false, nil
	}

	if !mode.Applies() {
		e.memo[key] = library.PendingID
		return library.PendingID, false, nil
	}

	created, err := e.repo.CreateSubCollection(ctx, scope, name, description)
	if err != nil {
		return 0, false, err
	}
	names[name] = created.ID
	e.memo[key] = created.ID
	logging.FromContext(ctx).Info().
		Int64("collection_id", int64(scope)).
		Int64("sub_collection_id", int64(created.ID)).
		Str("name", name).
		Msg("created sub-collection")
	return created.ID, true, nil
}

func (e *Engine) childNames(ctx context.Context, scope library.ID) (map[string]library.ID, error) {
	if names, ok := e.children[scope]; ok {
		return names, nil
	}
	collection, err := e.repo.Collection(ctx, scope)
	if err != nil {
		return nil, err
	}
	names := make(map[string]library.ID, len(collection.Children))
	for _, ch := range collection.Children {
		if ch.Name == "" {
			continue
		}
		if _, dup := names[ch.Name]; !dup {
			names[ch.Name] = ch.ID
		}
	}
	e.children[scope] = names
	return names, nil
}

// MoveDocument places a document in sub-collection target. It re-reads the
// document first; when it is already there the result is an unchanged no-op.
// In dry-run mode it reports the move it would make without writing.
//
// Passing library.PendingID is a programming error and panics.
func (e *Engine) MoveDocument(ctx context.Context, documentID, target library.ID, mode report.Mode) (bool, report.Action, error) {
	if target.Pending() {
		panic(fmt.Sprintf("reconcile: move of document %d to a container that does not exist yet", documentID))
	}
	action := report.Action{Kind: report.KindMoveDocument, Subject: documentID, To: target}

	doc, err := e.repo.Document(ctx, documentID)
	if err != nil {
		action.Outcome = report.Failed
		action.Error = err.Error()
		return false, action, err
	}
	action.Name = doc.Title
	action.From = doc.ContainerID

	if doc.ContainerID == target {
		action.Outcome = report.NoOp
		return false, action, nil
	}

	if mode.Applies() {
		if err := e.repo.MoveDocument(ctx, documentID, target); err != nil {
			action.Outcome = report.Failed
			action.Error = err.Error()
			return false, action, err
		}
	}
	action.Outcome = report.Changed
	return true, action, nil
}

type resolution struct {
	id  library.ID
	err error
}

// Run resolves every named target, then moves each document in order of
// document id. Item failures are recorded and do not stop the run; the
// returned error is non-nil only when ctx is done, and the report is
// sealed and complete up to that point either way.
func (e *Engine) Run(ctx context.Context, catalog *Catalog, mode report.Mode) (*report.Report, error) {
	rep := report.New(Stage, mode, e.reportOpts...)
	defer rep.Seal()
	return rep, e.Execute(ctx, rep, catalog, mode)
}

// Execute applies catalog, recording into rep without sealing it.
func (e *Engine) Execute(ctx context.Context, rep *report.Report, catalog *Catalog, mode report.Mode) error {
	logger := logging.FromContext(ctx)
	for _, name := range []string{CounterMoved, CounterSkipped, CounterFailed, CounterCreated} {
		_ = rep.Count(name, 0)
	}

	assignments := catalog.Sorted()
	resolved := make(map[containerKey]resolution)

	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !a.Target.IsNamed() {
			continue
		}
		key := containerKey{scope: a.Target.Scope(), name: a.Target.Name()}
		if _, done := resolved[key]; done {
			continue
		}
		id, created, err := e.ensure(ctx, key.scope, key.name, a.Target.Description(), mode)
		resolved[key] = resolution{id: id, err: err}

		action := report.Action{Kind: report.KindCreateContainer, Subject: id, Name: key.name, From: key.scope}
		switch {
		case err != nil:
			action.Outcome = report.Failed
			action.Error = err.Error()
			_ = rep.Fail(report.Failure{Kind: report.KindCreateContainer, Name: key.name, Parent: key.scope, Error: err.Error()})
			logger.Warn().Err(err).Str("name", key.name).Int64("collection_id", int64(key.scope)).Msg("could not resolve sub-collection")
		case created:
			action.Outcome = report.Changed
			_ = rep.Count(CounterCreated, 1)
		case id.Pending():
			action.Outcome = report.Pending
			action.Reason = "would create"
		default:
			action.Outcome = report.NoOp
		}
		_ = rep.Add(action)
	}

	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := a.Target.ID()
		if a.Target.IsNamed() {
			res := resolved[containerKey{scope: a.Target.Scope(), name: a.Target.Name()}]
			if res.err != nil {
				msg := fmt.Sprintf("target %s unresolved: %v", a.Target, res.err)
				_ = rep.Add(report.Action{Kind: report.KindMoveDocument, Subject: a.DocumentID, Outcome: report.Failed, Reason: a.Reason, Error: msg})
				_ = rep.Fail(report.Failure{Kind: report.KindMoveDocument, Subject: a.DocumentID, Error: msg})
				_ = rep.Count(CounterFailed, 1)
				continue
			}
			target = res.id
		}

		if target.Pending() {
			_ = rep.Add(report.Action{
				Kind:    report.KindMoveDocument,
				Subject: a.DocumentID,
				To:      library.PendingID,
				Outcome: report.Pending,
				Reason:  joinReason(a.Reason, "(create chapter)"),
			})
			_ = rep.Count(CounterSkipped, 1)
			continue
		}

		changed, action, err := e.MoveDocument(ctx, a.DocumentID, target, mode)
		action.Reason = a.Reason
		_ = rep.Add(action)
		switch {
		case err != nil:
			_ = rep.Fail(report.Failure{Kind: report.KindMoveDocument, Subject: a.DocumentID, Name: action.Name, Parent: action.From, Error: err.Error()})
			_ = rep.Count(CounterFailed, 1)
			logger.Warn().Err(err).Int64("document_id", int64(a.DocumentID)).Msg("move failed")
		case changed:
			_ = rep.Count(CounterMoved, 1)
		default:
			_ = rep.Count(CounterSkipped, 1)
		}
	}

	logger.Info().
		Int("moved", rep.Counter(CounterMoved)).
		Int("skipped", rep.Counter(CounterSkipped)).
		Int("failed", rep.Counter(CounterFailed)).
		Msg("reconcile finished")
	return nil
}

func joinReason(reason, note string) string {
	if reason == "" {
		return note
	}
	return reason + " " + note
}
