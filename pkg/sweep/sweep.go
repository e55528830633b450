// Package sweep parks empty sub-collections in a holding collection.
//
// A sub-collection qualifies when it holds no documents directly. Each one
// is reparented into the holding collection; if that fails (typically a
// name collision) it is retried once under a name tagged with its former
// collection id. A second failure is recorded and the sweep moves on.
package sweep

import (
	"context"
	"fmt"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/logging"
	"github.com/agentstation/librarian/pkg/report"
)

// Stage is the report stage name.
const Stage = "sweep"

// Counter names recorded on the report.
const (
	CounterMoved   = "moved"
	CounterRenamed = "renamed"
	CounterFailed  = "failed"
)

// HoldingConfig names the holding grouping and collection.
type HoldingConfig struct {
	GroupingName   string
	CollectionName string
	Description    string
}

// DefaultHoldingConfig returns the standard holding names.
func DefaultHoldingConfig() HoldingConfig {
	return HoldingConfig{
		GroupingName:   constants.DefaultHoldingGrouping,
		CollectionName: constants.DefaultHoldingCollection,
		Description:    "Holding area for empty placeholder chapters.",
	}
}

// HoldingArea is the resolved holding location.
type HoldingArea struct {
	GroupingID   library.ID
	CollectionID library.ID // PendingID in dry-run when it would be created
	Created      bool
	Listed       bool // added to the holding grouping by this call
}

// RenamedName is the name used on the retry after a failed relocation.
func RenamedName(formerCollection library.ID, name string) string {
	return fmt.Sprintf("[From %d] %s", formerCollection, name)
}

// Sweeper runs the sweep against a repository.
type Sweeper struct {
	repo       library.Repository
	reportOpts []report.Option
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithReportOptions passes options to every report the sweeper creates.
func WithReportOptions(opts ...report.Option) Option {
	return func(s *Sweeper) {
		s.reportOpts = append(s.reportOpts, opts...)
	}
}

// New creates a Sweeper.
func New(repo library.Repository, opts ...Option) *Sweeper {
	s := &Sweeper{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureHoldingArea finds the holding grouping, which must exist, and the
// holding collection, creating it in apply mode when absent. The collection
// is added to the grouping if it is not already listed there.
func (s *Sweeper) EnsureHoldingArea(ctx context.Context, cfg HoldingConfig, mode report.Mode) (HoldingArea, error) {
	var area HoldingArea

	groupings, err := s.repo.Groupings(ctx)
	if err != nil {
		return area, err
	}
	for _, g := range groupings {
		if g.Name == cfg.GroupingName {
			area.GroupingID = g.ID
			break
		}
	}
	if area.GroupingID == 0 {
		return area, errors.NewNotFoundError("holding grouping", cfg.GroupingName)
	}

	collections, err := s.repo.Collections(ctx)
	if err != nil {
		return area, err
	}
	for _, c := range collections {
		if c.Name == cfg.CollectionName {
			area.CollectionID = c.ID
			break
		}
	}

	if area.CollectionID == 0 {
		if !mode.Applies() {
			area.CollectionID = library.PendingID
			return area, nil
		}
		created, err := s.repo.CreateCollection(ctx, cfg.CollectionName, cfg.Description)
		if err != nil {
			return area, err
		}
		area.CollectionID = created.ID
		area.Created = true
	}

	grouping, err := s.repo.Grouping(ctx, area.GroupingID)
	if err != nil {
		return area, err
	}
	if grouping.Has(area.CollectionID) {
		return area, nil
	}
	area.Listed = true
	if !mode.Applies() {
		return area, nil
	}
	ids := append(append([]library.ID(nil), grouping.CollectionIDs...), area.CollectionID)
	if err := s.repo.SetGroupingCollections(ctx, area.GroupingID, ids); err != nil {
		return area, err
	}
	return area, nil
}

// Run ensures the holding area and sweeps into it. The report is returned
// sealed even when the holding area cannot be resolved.
func (s *Sweeper) Run(ctx context.Context, cfg HoldingConfig, mode report.Mode) (*report.Report, error) {
	rep := s.newReport(mode)
	defer rep.Seal()

	area, err := s.EnsureHoldingArea(ctx, cfg, mode)
	if err != nil {
		_ = rep.Add(report.Action{Kind: report.KindCreateContainer, Name: cfg.CollectionName, Outcome: report.Failed, Error: err.Error()})
		_ = rep.Fail(report.Failure{Kind: report.KindCreateContainer, Name: cfg.CollectionName, Error: err.Error()})
		return rep, err
	}
	create := report.Action{Kind: report.KindCreateContainer, Subject: area.CollectionID, Name: cfg.CollectionName, Outcome: report.NoOp}
	switch {
	case area.Created:
		create.Outcome = report.Changed
	case area.CollectionID.Pending():
		create.Outcome = report.Pending
		create.Reason = "would create"
	}
	_ = rep.Add(create)
	if area.Listed {
		_ = rep.Add(report.Action{
			Kind:    report.KindShelveCollection,
			Subject: area.CollectionID,
			Name:    cfg.CollectionName,
			To:      area.GroupingID,
			Outcome: report.Changed,
		})
	}

	return rep, s.sweepInto(ctx, rep, area.CollectionID, mode)
}

// Sweep relocates every empty sub-collection outside holding into it.
func (s *Sweeper) Sweep(ctx context.Context, holding library.ID, mode report.Mode) (*report.Report, error) {
	rep := s.newReport(mode)
	defer rep.Seal()
	return rep, s.sweepInto(ctx, rep, holding, mode)
}

func (s *Sweeper) newReport(mode report.Mode) *report.Report {
	rep := report.New(Stage, mode, s.reportOpts...)
	for _, name := range []string{CounterMoved, CounterRenamed, CounterFailed} {
		_ = rep.Count(name, 0)
	}
	return rep
}

func (s *Sweeper) sweepInto(ctx context.Context, rep *report.Report, holding library.ID, mode report.Mode) error {
	if mode.Applies() && holding.Pending() {
		panic("sweep: apply-mode sweep into a holding collection that does not exist")
	}
	logger := logging.FromContext(ctx)

	collections, err := s.repo.Collections(ctx)
	if err != nil {
		_ = rep.Fail(report.Failure{Kind: report.KindRelocateContainer, Error: err.Error()})
		return err
	}

	for _, summary := range collections {
		if summary.ID == holding {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		collection, err := s.repo.Collection(ctx, summary.ID)
		if err != nil {
			_ = rep.Fail(report.Failure{Kind: report.KindRelocateContainer, Subject: summary.ID, Name: summary.Name, Error: err.Error()})
			logger.Warn().Err(err).Int64("collection_id", int64(summary.ID)).Msg("could not read collection")
			continue
		}
		for _, ch := range collection.Children {
			if ch.Unlisted {
				logger.Debug().Int64("sub_collection_id", int64(ch.ID)).Msg("page list missing, not sweeping")
				continue
			}
			if !ch.Empty() {
				continue
			}
			s.relocate(ctx, rep, collection.ID, ch, holding, mode)
		}
	}

	logger.Info().
		Int("moved", rep.Counter(CounterMoved)).
		Int("renamed", rep.Counter(CounterRenamed)).
		Int("failed", rep.Counter(CounterFailed)).
		Msg("sweep finished")
	return nil
}

func (s *Sweeper) relocate(ctx context.Context, rep *report.Report, from library.ID, ch library.Container, holding library.ID, mode report.Mode) {
	action := report.Action{
		Kind:    report.KindRelocateContainer,
		Subject: ch.ID,
		Name:    ch.Name,
		From:    from,
		To:      holding,
		Outcome: report.Changed,
	}
	if !mode.Applies() {
		_ = rep.Add(action)
		_ = rep.Count(CounterMoved, 1)
		return
	}

	err := s.repo.UpdateSubCollection(ctx, ch.ID, library.ContainerUpdate{ParentID: holding})
	if err == nil {
		_ = rep.Add(action)
		_ = rep.Count(CounterMoved, 1)
		return
	}

	renamed := RenamedName(from, ch.Name)
	logging.FromContext(ctx).Debug().Err(err).
		Int64("sub_collection_id", int64(ch.ID)).
		Str("renamed", renamed).
		Msg("relocation failed, retrying renamed")

	retryErr := s.repo.UpdateSubCollection(ctx, ch.ID, library.ContainerUpdate{ParentID: holding, Name: renamed})
	if retryErr == nil {
		action.Reason = "renamed: " + renamed
		_ = rep.Add(action)
		_ = rep.Count(CounterMoved, 1)
		_ = rep.Count(CounterRenamed, 1)
		return
	}

	action.Outcome = report.Failed
	action.Error = retryErr.Error()
	_ = rep.Add(action)
	_ = rep.Fail(report.Failure{
		Kind:    report.KindRelocateContainer,
		Subject: ch.ID,
		Name:    ch.Name,
		Parent:  from,
		Error:   retryErr.Error(),
	})
	_ = rep.Count(CounterFailed, 1)
}
