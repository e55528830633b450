// Package junk finds placeholder documents that were never filled in and
// deletes them.
package junk

import (
	"context"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/agentstation/librarian/internal/matcher"
	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/logging"
	"github.com/agentstation/librarian/pkg/markup"
	"github.com/agentstation/librarian/pkg/report"
)

// Stage is the report stage name.
const Stage = "junk"

// Counter names recorded on the report.
const (
	CounterDeleted = "deleted"
	CounterKept    = "kept"
	CounterFailed  = "failed"
)

// DefaultTitles are the placeholder titles the editor assigns to new pages.
var DefaultTitles = []string{"New Page", "Test"}

// IsEffectivelyEmpty reports whether stripped text is shorter than threshold
// characters.
func IsEffectivelyEmpty(text string, threshold int) bool {
	return utf8.RuneCountInString(text) < threshold
}

// Detector searches for and removes empty placeholder documents.
type Detector struct {
	repo       library.Repository
	titles     []string
	threshold  int
	reportOpts []report.Option
}

// Option configures a Detector.
type Option func(*Detector)

// WithTitles replaces the placeholder titles.
func WithTitles(titles ...string) Option {
	return func(d *Detector) {
		d.titles = titles
	}
}

// WithThreshold sets the minimum text length of a kept document.
func WithThreshold(n int) Option {
	return func(d *Detector) {
		d.threshold = n
	}
}

// WithReportOptions passes options to the report.
func WithReportOptions(opts ...report.Option) Option {
	return func(d *Detector) {
		d.reportOpts = append(d.reportOpts, opts...)
	}
}

// New creates a Detector.
func New(repo library.Repository, opts ...Option) *Detector {
	d := &Detector{
		repo:      repo,
		titles:    DefaultTitles,
		threshold: constants.EmptyTextThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Candidates returns the ids of documents whose whole title matches
// pattern, sorted and without duplicates. Patterns are exact titles, globs
// such as "Copy of *" or "re:" expressions; search matching is loose, so
// hits are filtered here.
func (d *Detector) Candidates(ctx context.Context, pattern string) ([]library.ID, error) {
	m, err := matcher.New(pattern)
	if err != nil {
		return nil, errors.NewValidationError("title", pattern, err.Error())
	}
	hits, err := d.repo.SearchByTitle(ctx, m.Query())
	if err != nil {
		return nil, err
	}
	var ids []library.ID
	for _, h := range hits {
		if h.Kind == library.KindDocument && m.Match(h.Name) {
			ids = append(ids, h.ID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Run checks every placeholder document and deletes the empty ones in apply
// mode. Per-item errors are recorded and never stop the run.
func (d *Detector) Run(ctx context.Context, mode report.Mode) (*report.Report, error) {
	rep := report.New(Stage, mode, d.reportOpts...)
	defer rep.Seal()
	for _, name := range []string{CounterDeleted, CounterKept, CounterFailed} {
		_ = rep.Count(name, 0)
	}
	logger := logging.FromContext(ctx)

	seen := make(map[library.ID]bool)
	for _, title := range d.titles {
		ids, err := d.Candidates(ctx, title)
		if err != nil {
			_ = rep.Fail(report.Failure{Kind: report.KindDeleteDocument, Name: title, Error: err.Error()})
			_ = rep.Count(CounterFailed, 1)
			logger.Warn().Err(err).Str("title", title).Msg("placeholder search failed")
			continue
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			d.check(ctx, rep, id, title, mode)
		}
	}

	logger.Info().
		Int("deleted", rep.Counter(CounterDeleted)).
		Int("kept", rep.Counter(CounterKept)).
		Msg("junk scan finished")
	return rep, nil
}

func (d *Detector) check(ctx context.Context, rep *report.Report, id library.ID, title string, mode report.Mode) {
	action := report.Action{Kind: report.KindDeleteDocument, Subject: id, Name: title}

	doc, err := d.repo.Document(ctx, id)
	if err != nil {
		d.failed(rep, action, 0, err)
		return
	}
	action.From = doc.Owner()
	action.Name = doc.Title

	text := markup.Text(doc.Content)
	chars := utf8.RuneCountInString(text)
	if !IsEffectivelyEmpty(text, d.threshold) {
		action.Outcome = report.NoOp
		action.Reason = fmt.Sprintf("non-empty:%d chars", chars)
		_ = rep.Add(action)
		_ = rep.Count(CounterKept, 1)
		return
	}

	if mode.Applies() {
		if err := d.repo.DeleteDocument(ctx, id); err != nil {
			d.failed(rep, action, doc.Owner(), err)
			return
		}
	}
	action.Outcome = report.Changed
	action.Reason = fmt.Sprintf("empty:%d chars", chars)
	_ = rep.Add(action)
	_ = rep.Count(CounterDeleted, 1)
}

func (d *Detector) failed(rep *report.Report, action report.Action, parent library.ID, err error) {
	action.Outcome = report.Failed
	action.Error = err.Error()
	_ = rep.Add(action)
	_ = rep.Fail(report.Failure{
		Kind:    report.KindDeleteDocument,
		Subject: action.Subject,
		Name:    action.Name,
		Parent:  parent,
		Error:   err.Error(),
	})
	_ = rep.Count(CounterFailed, 1)
}
