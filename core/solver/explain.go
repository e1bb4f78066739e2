package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/validate"
)

// ExplainBudget bounds the whole conflict-probing phase. Each probe is a
// bounded re-solve, so the explainer degrades to a coarser, non-minimal
// report rather than blowing the resolve deadline.
const ExplainBudget = 2 * time.Second

type probeKind uint8

const (
	probeCapacity probeKind = iota
	probeWindow
	probeSequence
)

// probe is one droppable constraint. Duration targets are never dropped;
// a schedule that skips syllabus months is not a diagnosis anyone wants.
type probe struct {
	kind    probeKind
	station model.StationID
	seq     int
}

// explain runs a deletion-based minimal-unsatisfiable-subset probe: drop
// one constraint at a time and re-solve with a small budget. Constraints
// whose removal leaves the problem infeasible are discarded; the
// survivors are mutually unsatisfiable. Runs only after the search has
// proven infeasibility, so feasible probes pinpoint what binds.
func (s *Solver) explain(ctx context.Context, in Input) *validate.ConflictReport {
	deadline := time.Now().Add(ExplainBudget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	candidates := s.probes(in)
	dropped := make(map[probe]bool)

	// With every droppable constraint removed the problem reduces to
	// duration arithmetic; if that is still infeasible no subset of
	// capacity, window or sequence rules explains anything.
	if res := s.probeRun(ctx, in, candidates, nil, deadline); res.Status == StatusInfeasible {
		return &validate.ConflictReport{
			Reason:  validate.ReasonDurationShortfall,
			Minimal: true,
			Message: "duration targets cannot fit the open months regardless of capacity, window and sequence rules",
		}
	}

	minimal := true
	for _, c := range candidates {
		if time.Until(deadline) < 50*time.Millisecond {
			minimal = false
			break
		}
		dropped[c] = true
		res := s.probeRun(ctx, in, nil, dropped, deadline)
		switch res.Status {
		case StatusInfeasible:
			// Still impossible without it; the constraint is innocent.
		case StatusTimeout:
			minimal = false
			delete(dropped, c)
		default:
			delete(dropped, c)
		}
	}

	var mus []probe
	for _, c := range candidates {
		if !dropped[c] {
			mus = append(mus, c)
		}
	}
	rep := s.report(in, mus)
	rep.Minimal = minimal
	return rep
}

// probes lists every droppable constraint of the rule set, capacity
// bounds first so reports lead with the usual suspect.
func (s *Solver) probes(in Input) []probe {
	var out []probe
	for _, st := range in.Rules.Stations() {
		if in.Rules.IsLeaveStation(st.ID) {
			continue
		}
		if st.MinOccupancy > 0 || st.Bounded() {
			out = append(out, probe{kind: probeCapacity, station: st.ID})
		}
	}
	seen := make(map[model.StationID]bool)
	for _, w := range in.Rules.Windows {
		if !seen[w.Station] {
			seen[w.Station] = true
			out = append(out, probe{kind: probeWindow, station: w.Station})
		}
	}
	for i := range in.Rules.Sequences {
		out = append(out, probe{kind: probeSequence, seq: i})
	}
	return out
}

// probeRun re-solves with the dropped constraints removed and a slice of
// the remaining explainer budget. dropAll is used by the duration-core
// probe to drop every candidate at once.
func (s *Solver) probeRun(ctx context.Context, in Input, dropAll []probe, dropped map[probe]bool, deadline time.Time) Result {
	probeIn := in
	probeIn.dropCapacity = make(map[model.StationID]bool)
	probeIn.dropWindow = make(map[model.StationID]bool)
	probeIn.dropSequence = make(map[int]bool)
	apply := func(c probe) {
		switch c.kind {
		case probeCapacity:
			probeIn.dropCapacity[c.station] = true
		case probeWindow:
			probeIn.dropWindow[c.station] = true
		case probeSequence:
			probeIn.dropSequence[c.seq] = true
		}
	}
	for c := range dropped {
		apply(c)
	}
	for _, c := range dropAll {
		apply(c)
	}

	budget := time.Until(deadline) / 4
	if budget < 100*time.Millisecond {
		budget = 100 * time.Millisecond
	}
	probeIn.Budget = budget
	return s.run(ctx, probeIn)
}

// report renders the surviving constraint set, dominant reason first.
func (s *Solver) report(in Input, mus []probe) *validate.ConflictReport {
	var items []validate.Violation
	for _, c := range mus {
		switch c.kind {
		case probeCapacity:
			st := in.Rules.Station(c.station)
			items = append(items, validate.Violation{
				Reason: validate.ReasonCapacityExceeded, Station: st.ID, StationKey: st.Key,
				Rule: fmt.Sprintf("occupancy bounds [%d,%d] of %s", st.MinOccupancy, st.MaxOccupancy, st.Key),
			})
		case probeWindow:
			st := in.Rules.Station(c.station)
			items = append(items, validate.Violation{
				Reason: validate.ReasonWindowMissed, Station: st.ID, StationKey: st.Key,
				Rule: fmt.Sprintf("calendar window of %s", st.Key),
			})
		case probeSequence:
			seq := in.Rules.Sequences[c.seq]
			before, after := in.Rules.Station(seq.Before), in.Rules.Station(seq.After)
			items = append(items, validate.Violation{
				Reason: validate.ReasonSequenceViolation, Station: seq.After, StationKey: after.Key,
				Rule: fmt.Sprintf("%s must follow %s", after.Key, before.Key),
			})
		}
	}
	if len(items) == 0 {
		return &validate.ConflictReport{
			Reason:  validate.ReasonDurationShortfall,
			Message: "no feasible schedule exists under the current rule set",
		}
	}
	rep := validate.NewConflictReport(items, false)
	rep.Message = "these constraints cannot all be satisfied together"
	return rep
}
