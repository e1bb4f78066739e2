// Package solver derives complete schedule states from duration targets,
// capacity bounds, sequencing and calendar-window rules. It is a
// constraint search over the free cells of the matrix: anchors,
// already-elapsed months and leave placeholders are fixed before search
// begins, so the invariants covering them hold by construction.
package solver

import (
	"context"
	"time"

	"github.com/medrota/rotaplan/core/leave"
	"github.com/medrota/rotaplan/core/logger"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
	"github.com/medrota/rotaplan/core/validate"
)

// Status is the terminal outcome of a resolve.
type Status uint8

const (
	StatusValid Status = iota
	StatusInfeasible
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeout:
		return "timeout"
	}
	return "valid"
}

// CapacityOverride relaxes the occupancy minimum of one station, either
// for a single calendar month or, when Month is zero, for every month.
// Overrides come from callers forcing a schedule through; they are what
// §force-override resolves carry.
type CapacityOverride struct {
	Station model.StationID `json:"station"`
	Month   model.Month     `json:"month,omitempty"`
	Min     int             `json:"min"`
}

// Input carries everything a resolve depends on. The engine owns the
// committed state; the solver only ever reads it and returns a new one.
type Input struct {
	State     *schedule.State
	Rules     *rules.RuleSet
	Targets   []leave.Target
	Anchors   []model.Anchor
	Leaves    []model.LeaveEvent
	Current   model.Month
	Budget    time.Duration
	Overrides []CapacityOverride

	// explainer knobs: constraints removed while probing for a minimal
	// unsatisfiable subset. Never set by callers.
	dropCapacity map[model.StationID]bool
	dropWindow   map[model.StationID]bool
	dropSequence map[int]bool
}

// Result is the outcome of one resolve.
type Result struct {
	Status Status
	// State is a complete matrix satisfying every hard constraint. Nil
	// unless Status is Valid, or Timeout with a feasible matrix found
	// before the budget ran out.
	State *schedule.State
	// Capacity summarizes occupancy of the returned state.
	Capacity []schedule.CapacityCell
	// Conflict is set on Infeasible results.
	Conflict *validate.ConflictReport
	// Relaxed reports that continuity preferences had to be relaxed to
	// find the returned state.
	Relaxed bool
	// Elapsed is the wall-clock search time.
	Elapsed time.Duration
}

// Solver runs resolves. It holds no schedule state and is safe to share
// across sequential resolves of the same program.
type Solver struct {
	log logger.Logger
}

// New returns a solver logging through log.
func New(log logger.Logger) *Solver {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Solver{log: log}
}

// DefaultBudget bounds a resolve when the caller does not supply one.
const DefaultBudget = 10 * time.Second

// Resolve produces a completed state or a terminal diagnosis. The search
// is bounded by in.Budget (and any earlier ctx deadline) and is
// deterministic: identical inputs yield identical outputs.
func (s *Solver) Resolve(ctx context.Context, in Input) Result {
	started := time.Now()
	res := s.run(ctx, in)
	if res.Status == StatusInfeasible && res.Conflict == nil {
		// The search space is exhausted but no pre-check named a cause;
		// probe for a minimal unsatisfiable constraint set.
		res.Conflict = s.explain(ctx, in)
	}
	if res.Status == StatusTimeout {
		s.log.Warnf("resolve timed out after %s without a feasible matrix", time.Since(started))
	}
	res.Elapsed = time.Since(started)
	return res
}

// run executes pre-checks and the search passes. An Infeasible result
// with a nil Conflict means the search proved infeasibility without a
// pre-check naming the cause.
func (s *Solver) run(ctx context.Context, in Input) Result {
	started := time.Now()
	budget := in.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	ctx, cancel := context.WithDeadline(ctx, started.Add(budget))
	defer cancel()

	p, rep := prepare(in)
	if rep != nil {
		return Result{Status: StatusInfeasible, Conflict: rep, Elapsed: time.Since(started)}
	}
	if rep := p.lpPrecheck(); rep != nil {
		return Result{Status: StatusInfeasible, Conflict: rep, Elapsed: time.Since(started)}
	}

	// Continuity is the only soft term: pass 0 demands contiguous
	// blocks, later passes allow progressively more splitting. Hard
	// constraints are identical in every pass. Each pass gets a slice of
	// the budget; a pass that can neither finish nor refute in its slice
	// yields to the next, more permissive one, which tends to close
	// greedily.
	fractions := [...]float64{0.25, 0.55, 1.0}
	var refutedAll bool
	for pass := 0; pass <= passRelaxAll; pass++ {
		passCtx, cancel := context.WithDeadline(ctx,
			started.Add(time.Duration(float64(budget)*fractions[pass])))
		st, ok, done := p.search(passCtx, pass)
		cancel()
		if ok {
			s.log.Debugw("resolve found solution", map[string]any{
				"pass": pass, "elapsed": time.Since(started).String(),
			})
			return Result{
				Status:   StatusValid,
				State:    st,
				Capacity: schedule.TrackState(st).Summary(in.Rules),
				Relaxed:  pass > 0,
				Elapsed:  time.Since(started),
			}
		}
		if pass == passRelaxAll {
			refutedAll = done
		}
	}
	// Infeasibility needs the fully relaxed pass to have exhausted its
	// space; anything less is just the clock running out.
	if refutedAll {
		return Result{Status: StatusInfeasible, Elapsed: time.Since(started)}
	}
	return Result{Status: StatusTimeout, Elapsed: time.Since(started)}
}
