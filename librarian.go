// Package librarian reorganizes a hierarchical document library in place.
//
// A Librarian runs one or more stages against a library.Repository: shelve
// unlisted collections, triage documents held directly by collections, sweep
// empty sub-collections into a holding area, and delete empty placeholder
// documents. Every stage defaults to dry-run through report.Mode and yields
// a sealed report.Report.
package librarian

import (
	"context"
	"fmt"

	"github.com/agentstation/librarian/pkg/classify"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/junk"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/logging"
	"github.com/agentstation/librarian/pkg/reconcile"
	"github.com/agentstation/librarian/pkg/report"
	"github.com/agentstation/librarian/pkg/shelving"
	"github.com/agentstation/librarian/pkg/snapshot"
	"github.com/agentstation/librarian/pkg/sweep"
	"github.com/agentstation/librarian/pkg/triage"
)

// Run is the outcome of one Organize or single-stage call.
type Run struct {
	ID      string           `json:"run_id"`
	Mode    report.Mode      `json:"mode"`
	Reports []*report.Report `json:"reports"`
}

// Librarian runs organize stages against one repository.
type Librarian struct {
	repo library.Repository
	cfg  *config
	hooks
}

// New creates a Librarian.
func New(repo library.Repository, opts ...Option) (*Librarian, error) {
	if repo == nil {
		return nil, errInvalidOption("repository", "is required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &Librarian{repo: repo, cfg: cfg}, nil
}

// Repository returns the repository the librarian works on.
func (l *Librarian) Repository() library.Repository {
	return l.repo
}

// Classifier returns a classifier using the configured vocabulary.
func (l *Librarian) Classifier() *classify.Classifier {
	return classify.New(l.cfg.vocabulary)
}

// Organize runs the enabled stages in order: shelve, triage, sweep, junk.
// A failing stage is recorded and the next one still runs; the returned
// error joins every stage error. Only cancellation stops the run early.
func (l *Librarian) Organize(ctx context.Context, mode report.Mode) (*Run, error) {
	return l.organize(ctx, l.cfg.stages, mode)
}

func (l *Librarian) organize(ctx context.Context, s Stages, mode report.Mode) (*Run, error) {
	run := l.newRun(mode)
	opts := l.reportOptions(run)
	var errs []error

	stage := func(name string, fn func(context.Context) (*report.Report, error)) bool {
		stageCtx := logging.WithRun(ctx, run.ID, name, string(mode))
		rep, err := fn(stageCtx)
		if rep != nil {
			run.Reports = append(run.Reports, rep)
			l.stageDone(rep)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			logging.FromContext(stageCtx).Warn().Err(err).Msg("stage failed")
		}
		return ctx.Err() == nil
	}

	if s.Shelve && !stage(shelving.Stage, func(ctx context.Context) (*report.Report, error) {
		return l.shelver(opts).Run(ctx, mode)
	}) {
		return run, joinWithCancel(ctx, errs)
	}

	if s.Triage && !stage(triage.Stage, func(ctx context.Context) (*report.Report, error) {
		var skip []library.ID
		// read-only lookup: the holding collection is never triaged
		if area, err := l.sweeper(opts).EnsureHoldingArea(ctx, l.cfg.holding, report.DryRun); err == nil && !area.CollectionID.Pending() {
			skip = append(skip, area.CollectionID)
		}
		return l.triager(opts, skip...).Run(ctx, mode)
	}) {
		return run, joinWithCancel(ctx, errs)
	}

	if s.Sweep && !stage(sweep.Stage, func(ctx context.Context) (*report.Report, error) {
		return l.sweeper(opts).Run(ctx, l.cfg.holding, mode)
	}) {
		return run, joinWithCancel(ctx, errs)
	}

	if s.Junk {
		stage(junk.Stage, func(ctx context.Context) (*report.Report, error) {
			return l.detector(opts).Run(ctx, mode)
		})
	}
	return run, joinWithCancel(ctx, errs)
}

// Reconcile applies an explicit catalog of document assignments.
func (l *Librarian) Reconcile(ctx context.Context, catalog *reconcile.Catalog, mode report.Mode) (*Run, error) {
	return l.single(ctx, reconcile.Stage, mode, func(ctx context.Context, opts []report.Option) (*report.Report, error) {
		return reconcile.NewEngine(l.repo, reconcile.WithReportOptions(opts...)).Run(ctx, catalog, mode)
	})
}

// Triage runs only the triage stage.
func (l *Librarian) Triage(ctx context.Context, mode report.Mode) (*Run, error) {
	return l.only(ctx, Stages{Triage: true}, mode)
}

// Sweep runs only the sweep stage.
func (l *Librarian) Sweep(ctx context.Context, mode report.Mode) (*Run, error) {
	return l.only(ctx, Stages{Sweep: true}, mode)
}

// Junk runs only the junk stage.
func (l *Librarian) Junk(ctx context.Context, mode report.Mode) (*Run, error) {
	return l.only(ctx, Stages{Junk: true}, mode)
}

// Shelve runs only the shelving stage.
func (l *Librarian) Shelve(ctx context.Context, mode report.Mode) (*Run, error) {
	return l.only(ctx, Stages{Shelve: true}, mode)
}

// Snapshot inventories the inbox sub-collections.
func (l *Librarian) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	return snapshot.NewBuilder(l.repo,
		snapshot.WithInboxName(l.cfg.inbox),
		snapshot.WithClock(l.cfg.now),
	).Build(ctx)
}

func (l *Librarian) only(ctx context.Context, stages Stages, mode report.Mode) (*Run, error) {
	return l.organize(ctx, stages, mode)
}

func (l *Librarian) single(ctx context.Context, name string, mode report.Mode, fn func(context.Context, []report.Option) (*report.Report, error)) (*Run, error) {
	run := l.newRun(mode)
	ctx = logging.WithRun(ctx, run.ID, name, string(mode))
	rep, err := fn(ctx, l.reportOptions(run))
	if rep != nil {
		run.Reports = append(run.Reports, rep)
		l.stageDone(rep)
	}
	return run, err
}

func (l *Librarian) newRun(mode report.Mode) *Run {
	id := l.cfg.runID
	if id == "" {
		id = report.NewRunID(l.cfg.now())
	}
	return &Run{ID: id, Mode: mode}
}

func (l *Librarian) reportOptions(run *Run) []report.Option {
	return []report.Option{report.WithRunID(run.ID), report.WithClock(l.cfg.now)}
}

func (l *Librarian) shelver(opts []report.Option) *shelving.Shelver {
	sopts := []shelving.Option{
		shelving.WithFallback(l.cfg.holding.GroupingName),
		shelving.WithReportOptions(opts...),
	}
	if l.cfg.rules != nil {
		sopts = append(sopts, shelving.WithRules(l.cfg.rules))
	}
	return shelving.New(l.repo, sopts...)
}

func (l *Librarian) triager(opts []report.Option, skip ...library.ID) *triage.Triager {
	return triage.New(l.repo,
		triage.WithClassifier(l.Classifier()),
		triage.WithInboxName(l.cfg.inbox),
		triage.WithSkip(skip...),
		triage.WithReportOptions(opts...),
	)
}

func (l *Librarian) sweeper(opts []report.Option) *sweep.Sweeper {
	return sweep.New(l.repo, sweep.WithReportOptions(opts...))
}

func (l *Librarian) detector(opts []report.Option) *junk.Detector {
	jopts := []junk.Option{junk.WithThreshold(l.cfg.threshold), junk.WithReportOptions(opts...)}
	if len(l.cfg.junkTitles) > 0 {
		jopts = append(jopts, junk.WithTitles(l.cfg.junkTitles...))
	}
	return junk.New(l.repo, jopts...)
}

func joinWithCancel(ctx context.Context, errs []error) error {
	if err := ctx.Err(); err != nil {
		errs = append(errs, errors.Join(errors.ErrCanceled, err))
	}
	return errors.Join(errs...)
}

func errInvalidOption(field, msg string) error {
	return errors.NewValidationError(field, nil, msg)
}
