// Package pipeline implements the ordered transformation-option chain
// applied to a job's FileNamePool.
package pipeline

import (
	"github.com/afd-project/afd/internal/afdlog"
	"github.com/afd-project/afd/internal/pool"
	"github.com/pkg/errors"
)

// Step is one configured transformation option. Steps are applied in
// configuration order.
type Step interface {
	// Name identifies the option for logging and production-log lines.
	Name() string
	// Apply runs the option over p. Implementations that rename or
	// add/remove files must call p.Restore(); implementations that only
	// touch file contents in place call p.Recount(), keeping the pool's
	// running size in agreement with what's actually on disk.
	Apply(p *pool.Pool) error
}

// ProductionLogLine is one diffed line emitted after a pipeline run:
// {created, preserved, removed}.
type ProductionLogLine struct {
	Input  string
	Output string
	Op     string
	RC     int
}

const (
	opCreated   = "created"
	opPreserved = "preserved"
	opRemoved   = "removed"
)

// Run applies steps to p in order, recomputing the pool after every step
// that could have mutated names or membership, then diffs the pre/post
// name sets for the production log: recompute explicitly, don't track
// incrementally through the chain.
func Run(p *pool.Pool, steps []Step) ([]ProductionLogLine, error) {
	before := p.Names()

	for _, step := range steps {
		if err := step.Apply(p); err != nil {
			afdlog.Errorf(p.Dir, "option %q failed: %v", step.Name(), err)
			return nil, errors.Wrapf(err, "option %q", step.Name())
		}
	}

	after := p.Names()
	return diffNames(before, after), nil
}

// diffNames implements the three production-log line kinds by comparing
// the pool's name set before and after the whole chain ran.
func diffNames(before, after map[string]struct{}) []ProductionLogLine {
	var lines []ProductionLogLine
	for name := range after {
		if _, existed := before[name]; existed {
			lines = append(lines, ProductionLogLine{Input: name, Output: name, Op: opPreserved})
		} else {
			lines = append(lines, ProductionLogLine{Output: name, Op: opCreated})
		}
	}
	for name := range before {
		if _, still := after[name]; !still {
			lines = append(lines, ProductionLogLine{Input: name, Op: opRemoved})
		}
	}
	return lines
}
