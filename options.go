package librarian

import (
	"time"

	"github.com/agentstation/librarian/pkg/classify"
	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/shelving"
	"github.com/agentstation/librarian/pkg/sweep"
)

// Option configures a Librarian.
type Option func(*config) error

// Stages selects the steps Organize runs. The zero value runs nothing;
// AllStages runs everything.
type Stages struct {
	Shelve bool
	Triage bool
	Sweep  bool
	Junk   bool
}

// AllStages enables every organize step.
var AllStages = Stages{Shelve: true, Triage: true, Sweep: true, Junk: true}

type config struct {
	stages     Stages
	holding    sweep.HoldingConfig
	inbox      string
	vocabulary *classify.Vocabulary
	rules      shelving.Rules
	junkTitles []string
	threshold  int
	now        func() time.Time
	runID      string
}

func defaultConfig() *config {
	return &config{
		stages:    AllStages,
		holding:   sweep.DefaultHoldingConfig(),
		inbox:     constants.DefaultInboxName,
		threshold: constants.EmptyTextThreshold,
		now:       time.Now,
	}
}

// WithStages limits Organize to the given steps.
func WithStages(s Stages) Option {
	return func(c *config) error {
		c.stages = s
		return nil
	}
}

// WithHolding sets the holding grouping and collection names.
func WithHolding(h sweep.HoldingConfig) Option {
	return func(c *config) error {
		if h.GroupingName == "" || h.CollectionName == "" {
			return errInvalidOption("holding", "grouping and collection names are required")
		}
		c.holding = h
		return nil
	}
}

// WithInboxName sets the triage fallback sub-collection name.
func WithInboxName(name string) Option {
	return func(c *config) error {
		if name == "" {
			return errInvalidOption("inbox", "name is required")
		}
		c.inbox = name
		return nil
	}
}

// WithVocabulary sets the classifier word lists.
func WithVocabulary(v *classify.Vocabulary) Option {
	return func(c *config) error {
		c.vocabulary = v
		return nil
	}
}

// WithShelvingRules sets how unshelved collections pick a grouping.
func WithShelvingRules(r shelving.Rules) Option {
	return func(c *config) error {
		c.rules = r
		return nil
	}
}

// WithJunk overrides the placeholder titles and the minimum text length.
func WithJunk(threshold int, titles ...string) Option {
	return func(c *config) error {
		if threshold <= 0 {
			return errInvalidOption("junk threshold", "must be positive")
		}
		c.threshold = threshold
		c.junkTitles = titles
		return nil
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(c *config) error {
		c.runID = id
		return nil
	}
}

// WithClock sets the time source for reports and run ids.
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		c.now = now
		return nil
	}
}
