// Package filtering narrows the match entries of a job before they are ranked.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/resume-ranker/internal/records"
)

// Filter is one predicate stage over match entries. A disabled filter stays in
// the chain so Describe can report why it was skipped.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, entries []*records.MatchEntry) ([]*records.MatchEntry, Step, error)
}

// Step counts what a single filter removed.
type Step struct {
	Name    string `json:"name"`
	Initial int    `json:"initial"`
	Dropped int    `json:"dropped"`
	Left    int    `json:"left"`
}

type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// Filtering applies an ordered chain of filters and remembers the counts of
// its last run.
type Filtering struct {
	filters []Filter
	steps   []Step
	logger  *zap.Logger
}

func New(filters []Filter, logger *zap.Logger) *Filtering {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filtering{filters: filters, logger: logger}
}

// RunFilters validates every enabled filter and only then applies them in
// order. The input slice is not modified.
func (f *Filtering) RunFilters(ctx context.Context, entries []*records.MatchEntry) ([]*records.MatchEntry, error) {
	for _, flt := range f.filters {
		if !flt.IsEnabled() {
			continue
		}
		if err := flt.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", flt.Name(), err)
		}
	}

	f.steps = f.steps[:0]
	for _, flt := range f.filters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !flt.IsEnabled() {
			f.logger.Debug("filter disabled", zap.String("name", flt.Name()), zap.String("reason", f.status(flt).Reason))
			continue
		}

		next, step, err := flt.Apply(ctx, entries)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", flt.Name(), err)
		}
		step.Name = flt.Name()
		f.steps = append(f.steps, step)

		f.logger.Info("filter step",
			zap.String("name", step.Name),
			zap.Int("initial", step.Initial),
			zap.Int("dropped", step.Dropped),
			zap.Int("left", step.Left),
		)
		entries = next
	}

	return entries, nil
}

// Steps returns the per-filter counts of the last RunFilters call.
func (f *Filtering) Steps() []Step {
	return append([]Step(nil), f.steps...)
}

func (f *Filtering) Describe() []Status {
	statuses := make([]Status, 0, len(f.filters))
	for _, flt := range f.filters {
		statuses = append(statuses, f.status(flt))
	}
	return statuses
}

func (f *Filtering) status(flt Filter) Status {
	if p, ok := flt.(statusProvider); ok {
		return p.Status()
	}
	return Status{Name: flt.Name(), Enabled: flt.IsEnabled()}
}

// keep returns the entries matching pred in a new slice.
func keep(entries []*records.MatchEntry, pred func(*records.MatchEntry) bool) ([]*records.MatchEntry, Step) {
	initial := len(entries)
	out := make([]*records.MatchEntry, 0, initial)
	for _, e := range entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out, Step{Initial: initial, Dropped: initial - len(out), Left: len(out)}
}
