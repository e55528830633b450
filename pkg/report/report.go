// Package report records what a run did, or would do in dry-run mode.
// A Report is append-only while the run is in progress and immutable once
// sealed; every attempted action appears exactly once with its outcome.
package report

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
)

// ErrSealed is returned when appending to a sealed report.
var ErrSealed = errors.New("report is sealed")

// Mode selects between simulating and performing changes.
type Mode string

const (
	// DryRun reads remote state and reports intended changes without writing.
	DryRun Mode = "dry-run"
	// Apply performs the changes.
	Apply Mode = "apply"
)

// ModeFor maps the --apply flag onto a Mode.
func ModeFor(apply bool) Mode {
	if apply {
		return Apply
	}
	return DryRun
}

// Applies reports whether writes are allowed.
func (m Mode) Applies() bool {
	return m == Apply
}

// Kind is the type of attempted operation.
type Kind string

// Action kinds.
const (
	KindCreateContainer   Kind = "create-container"
	KindMoveDocument      Kind = "move-document"
	KindRelocateContainer Kind = "relocate-container"
	KindDeleteDocument    Kind = "delete-document"
	KindShelveCollection  Kind = "shelve-collection"
)

// Outcome tags an action.
type Outcome string

// Outcomes.
const (
	Changed Outcome = "changed"
	NoOp    Outcome = "no-op"
	Failed  Outcome = "failed"
	// Pending marks an action that depends on a container a dry-run would create.
	Pending Outcome = "pending"
)

// Action is one attempted operation with its before and after state.
type Action struct {
	Kind    Kind       `json:"kind" yaml:"kind"`
	Subject library.ID `json:"subject" yaml:"subject"`
	Name    string     `json:"name,omitempty" yaml:"name,omitempty"`
	From    library.ID `json:"from,omitempty" yaml:"from,omitempty"`
	To      library.ID `json:"to,omitempty" yaml:"to,omitempty"`
	Outcome Outcome    `json:"outcome" yaml:"outcome"`
	Reason  string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error   string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failure carries enough detail to retry an item manually.
type Failure struct {
	Kind    Kind       `json:"kind" yaml:"kind"`
	Subject library.ID `json:"subject" yaml:"subject"`
	Name    string     `json:"name,omitempty" yaml:"name,omitempty"`
	Parent  library.ID `json:"parent,omitempty" yaml:"parent,omitempty"`
	Error   string     `json:"error" yaml:"error"`
}

// Summary counts actions by outcome plus stage-specific counters.
type Summary struct {
	Changed  int            `json:"changed" yaml:"changed"`
	NoOp     int            `json:"no_op" yaml:"no_op"`
	Failed   int            `json:"failed" yaml:"failed"`
	Pending  int            `json:"pending" yaml:"pending"`
	Counters map[string]int `json:"counters,omitempty" yaml:"counters,omitempty"`
}

// Report is the structured record of one stage of a run.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Stage      string    `json:"stage" yaml:"stage"`
	Mode       Mode      `json:"mode" yaml:"mode"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Actions    []Action  `json:"actions" yaml:"actions"`
	Summary    Summary   `json:"summary" yaml:"summary"`
	Failures   []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`

	mu     sync.Mutex
	sealed bool
	now    func() time.Time
}

// Option configures a Report.
type Option func(*Report)

// WithRunID tags the report with a run identifier.
func WithRunID(id string) Option {
	return func(r *Report) {
		r.RunID = id
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Report) {
		r.now = now
	}
}

// New starts a report for stage.
func New(stage string, mode Mode, opts ...Option) *Report {
	r := &Report{
		Stage:   stage,
		Mode:    mode,
		Actions: []Action{},
		Summary: Summary{Counters: map[string]int{}},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.StartedAt = r.now().UTC()
	return r
}

// Add appends an action and updates the outcome counts.
func (r *Report) Add(a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	r.Actions = append(r.Actions, a)
	switch a.Outcome {
	case Changed:
		r.Summary.Changed++
	case NoOp:
		r.Summary.NoOp++
	case Failed:
		r.Summary.Failed++
	case Pending:
		r.Summary.Pending++
	}
	return nil
}

// Fail records a failure entry. It does not add an action.
func (r *Report) Fail(f Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	r.Failures = append(r.Failures, f)
	return nil
}

// Count adds delta to a named counter.
func (r *Report) Count(name string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	r.Summary.Counters[name] += delta
	return nil
}

// Counter returns a named counter.
func (r *Report) Counter(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Summary.Counters[name]
}

// Seal stamps the finish time and freezes the report. Sealing twice is a no-op.
func (r *Report) Seal() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed {
		r.FinishedAt = r.now().UTC()
		r.sealed = true
	}
	return r
}

// Sealed reports whether the report is frozen.
func (r *Report) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Changes returns the actions with outcome Changed.
func (r *Report) Changes() []Action {
	return r.filter(Changed)
}

// FailedActions returns the actions with outcome Failed.
func (r *Report) FailedActions() []Action {
	return r.filter(Failed)
}

func (r *Report) filter(o Outcome) []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Action
	for _, a := range r.Actions {
		if a.Outcome == o {
			out = append(out, a)
		}
	}
	return out
}

// Duration is the wall time between start and seal.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// String returns a one-line human-readable summary.
func (r *Report) String() string {
	parts := []string{
		fmt.Sprintf("%d changed", r.Summary.Changed),
		fmt.Sprintf("%d no-op", r.Summary.NoOp),
		fmt.Sprintf("%d failed", r.Summary.Failed),
	}
	if r.Summary.Pending > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", r.Summary.Pending))
	}
	names := make([]string, 0, len(r.Summary.Counters))
	for name := range r.Summary.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, r.Summary.Counters[name]))
	}
	prefix := r.Stage
	if r.Mode == DryRun {
		prefix += " (dry run)"
	}
	return prefix + ": " + strings.Join(parts, ", ")
}
