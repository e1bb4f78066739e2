// Package validate evaluates schedule states against the rule catalog.
// Every station rule is a tagged variant over a closed kind set and all
// kinds are dispatched through one evaluator, so adding a rule kind is a
// new case, not a new class.
package validate

import (
	"fmt"

	"github.com/medrota/rotaplan/core/leave"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
)

// RuleKind enumerates the closed set of station rule behaviors.
type RuleKind uint8

const (
	KindDuration RuleKind = iota
	KindCapacity
	KindSequence
	KindWindow
)

// Rule is the tagged variant the evaluator dispatches on.
type Rule struct {
	Kind     RuleKind
	Station  model.StationID   // duration, capacity, window
	Sequence rules.SequenceRule // sequence only
	Window   rules.WindowRule   // window only
}

// Checker validates states against one rule-set version and a set of
// leave-adjusted targets.
type Checker struct {
	rs      *rules.RuleSet
	targets map[string]leave.Target
}

// New builds a checker. Targets missing for a trainee fall back to the
// track base.
func New(rs *rules.RuleSet, targets []leave.Target) *Checker {
	m := make(map[string]leave.Target, len(targets))
	for _, t := range targets {
		m[t.TraineeID] = t
	}
	return &Checker{rs: rs, targets: m}
}

func (c *Checker) target(tr model.Trainee) leave.Target {
	if t, ok := c.targets[tr.ID]; ok {
		return t
	}
	return leave.BaseTarget(tr, c.rs.Leave)
}

// Rules enumerates every rule instance applying to the rule set.
func (c *Checker) Rules() []Rule {
	var out []Rule
	for _, st := range c.rs.Stations() {
		if c.rs.IsLeaveStation(st.ID) {
			continue
		}
		out = append(out, Rule{Kind: KindDuration, Station: st.ID})
		if st.MinOccupancy > 0 || st.Bounded() {
			out = append(out, Rule{Kind: KindCapacity, Station: st.ID})
		}
	}
	for _, seq := range c.rs.Sequences {
		out = append(out, Rule{Kind: KindSequence, Sequence: seq})
	}
	for _, w := range c.rs.Windows {
		out = append(out, Rule{Kind: KindWindow, Station: w.Station, Window: w})
	}
	return out
}

// Check evaluates a completed state against every rule and returns all
// violations found. An empty result is what marks a state Valid.
func (c *Checker) Check(s *schedule.State) []Violation {
	var out []Violation
	out = append(out, c.checkCompleteness(s)...)
	tracker := schedule.TrackState(s)
	for _, r := range c.Rules() {
		out = append(out, c.Eval(r, s, tracker)...)
	}
	return out
}

// Eval evaluates one rule instance against the state. This is the single
// dispatcher for all rule kinds.
func (c *Checker) Eval(r Rule, s *schedule.State, tracker *schedule.Tracker) []Violation {
	switch r.Kind {
	case KindDuration:
		return c.evalDuration(r.Station, s)
	case KindCapacity:
		return c.evalCapacity(r.Station, s, tracker)
	case KindSequence:
		return c.evalSequence(r.Sequence, s)
	case KindWindow:
		return c.evalWindow(r.Window, s)
	}
	return nil
}

func (c *Checker) checkCompleteness(s *schedule.State) []Violation {
	var out []Violation
	for ord := 0; ord < s.NumTrainees(); ord++ {
		tr := s.Trainee(ord)
		for idx := 0; idx < s.Months(ord); idx++ {
			if s.Get(ord, idx) == model.StationNone {
				out = append(out, Violation{
					Reason:    ReasonDurationShortfall,
					TraineeID: tr.ID,
					Month:     tr.MonthAt(idx),
					Rule:      "every month must have exactly one assignment",
				})
			}
		}
	}
	return out
}

func (c *Checker) evalDuration(id model.StationID, s *schedule.State) []Violation {
	st := c.rs.Station(id)
	var out []Violation
	for ord := 0; ord < s.NumTrainees(); ord++ {
		tr := s.Trainee(ord)
		tgt := c.target(tr)
		required := c.rs.DurationTargets(tr.Track, tr.Department, tgt.RotationMonths)[id]
		got, lastMonth := 0, tr.Start
		for idx := 0; idx < s.Months(ord); idx++ {
			if s.Get(ord, idx) == id {
				got++
				lastMonth = tr.MonthAt(idx)
			}
		}
		if got != required {
			out = append(out, Violation{
				Reason:     ReasonDurationShortfall,
				TraineeID:  tr.ID,
				Month:      lastMonth,
				Station:    id,
				StationKey: st.Key,
				Rule:       fmt.Sprintf("%s requires %d months, assigned %d", st.Key, required, got),
			})
		}
	}
	return out
}

func (c *Checker) evalCapacity(id model.StationID, s *schedule.State, tracker *schedule.Tracker) []Violation {
	st := c.rs.Station(id)
	first, last := s.Horizon()
	var out []Violation
	for m := first; m <= last; m++ {
		if s.ActiveAt(m) == 0 {
			continue
		}
		n := tracker.Occupancy(id, m)
		if n < st.MinOccupancy || n > st.MaxOccupancy {
			out = append(out, Violation{
				Reason:     ReasonCapacityExceeded,
				Month:      m,
				Station:    id,
				StationKey: st.Key,
				Rule:       fmt.Sprintf("%s occupancy %d outside [%d,%d]", st.Key, n, st.MinOccupancy, st.MaxOccupancy),
			})
		}
	}
	return out
}

func (c *Checker) evalSequence(seq rules.SequenceRule, s *schedule.State) []Violation {
	before := c.rs.Station(seq.Before)
	after := c.rs.Station(seq.After)
	var out []Violation
	for ord := 0; ord < s.NumTrainees(); ord++ {
		tr := s.Trainee(ord)
		lastBefore, firstAfter := -1, -1
		for idx := 0; idx < s.Months(ord); idx++ {
			switch s.Get(ord, idx) {
			case seq.Before:
				lastBefore = idx
			case seq.After:
				if firstAfter < 0 {
					firstAfter = idx
				}
			}
		}
		if lastBefore < 0 || firstAfter < 0 {
			continue
		}
		broken := firstAfter <= lastBefore
		if seq.Immediate && firstAfter != lastBefore+1 {
			broken = true
		}
		if broken {
			out = append(out, Violation{
				Reason:     ReasonSequenceViolation,
				TraineeID:  tr.ID,
				Month:      tr.MonthAt(firstAfter),
				Station:    seq.After,
				StationKey: after.Key,
				Rule:       fmt.Sprintf("%s must follow %s", after.Key, before.Key),
			})
		}
	}
	return out
}

func (c *Checker) evalWindow(w rules.WindowRule, s *schedule.State) []Violation {
	st := c.rs.Station(w.Station)
	var out []Violation
	for ord := 0; ord < s.NumTrainees(); ord++ {
		tr := s.Trainee(ord)
		total := c.target(tr).TotalMonths
		for idx := 0; idx < s.Months(ord); idx++ {
			if s.Get(ord, idx) != w.Station {
				continue
			}
			m := tr.MonthAt(idx)
			if !w.AllowsMonth(m) || !w.AllowsIndex(idx, total) {
				out = append(out, Violation{
					Reason:     ReasonWindowMissed,
					TraineeID:  tr.ID,
					Month:      m,
					Station:    w.Station,
					StationKey: st.Key,
					Rule:       fmt.Sprintf("%s outside its calendar window", st.Key),
				})
			}
		}
	}
	return out
}

// CheckMove validates a single proposed assignment against the committed
// state without mutating it. A nil report means the move is acceptable.
func (c *Checker) CheckMove(s *schedule.State, a model.Assignment) *ConflictReport {
	ord, ok := s.Ordinal(a.TraineeID)
	if !ok {
		return NewConflictReport([]Violation{{
			Reason: ReasonAnchorConflict,
			Rule:   fmt.Sprintf("unknown trainee %s", a.TraineeID),
		}}, true)
	}
	tr := s.Trainee(ord)
	st := c.rs.Station(a.Station)
	if st.ID == model.StationNone {
		return NewConflictReport([]Violation{{
			Reason: ReasonAnchorConflict, TraineeID: tr.ID,
			Rule: fmt.Sprintf("move references unknown station %d", a.Station),
		}}, true)
	}
	m := tr.MonthAt(a.MonthIndex)

	if a.MonthIndex < 0 || a.MonthIndex >= s.Months(ord) {
		return NewConflictReport([]Violation{{
			Reason: ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
			Station: a.Station, StationKey: st.Key,
			Rule: fmt.Sprintf("month index %d outside %s's program", a.MonthIndex, tr.ID),
		}}, true)
	}
	if s.Immutable(ord, a.MonthIndex) && s.Get(ord, a.MonthIndex) != a.Station {
		return NewConflictReport([]Violation{{
			Reason: ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
			Station: a.Station, StationKey: st.Key,
			Rule: "cannot change an already-elapsed month",
		}}, true)
	}
	for _, anc := range s.Anchors() {
		if anc.TraineeID == a.TraineeID && anc.MonthIndex == a.MonthIndex && anc.Station != a.Station {
			return NewConflictReport([]Violation{{
				Reason: ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
				Station: a.Station, StationKey: st.Key,
				Rule: fmt.Sprintf("cell is anchored to %s", c.rs.Station(anc.Station).Key),
			}}, true)
		}
	}
	if !st.InTrack(tr.Track) || !st.EligibleFor(tr.Department) {
		return NewConflictReport([]Violation{{
			Reason: ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
			Station: a.Station, StationKey: st.Key,
			Rule: fmt.Sprintf("%s is not eligible for %s (department %s)", tr.ID, st.Key, tr.Department),
		}}, true)
	}
	for _, w := range c.rs.WindowsFor(a.Station) {
		if !w.AllowsMonth(m) || !w.AllowsIndex(a.MonthIndex, c.target(tr).TotalMonths) {
			return NewConflictReport([]Violation{{
				Reason: ReasonWindowMissed, TraineeID: tr.ID, Month: m,
				Station: a.Station, StationKey: st.Key,
				Rule: fmt.Sprintf("%s outside its calendar window", st.Key),
			}}, true)
		}
	}
	if rep := c.checkMoveSequence(s, ord, tr, st, m, a); rep != nil {
		return rep
	}
	if st.Bounded() {
		tracker := schedule.TrackState(s)
		n := tracker.Occupancy(a.Station, m)
		if s.Get(ord, a.MonthIndex) != a.Station {
			n++ // the move adds this trainee to the station
		}
		if n > st.MaxOccupancy {
			return NewConflictReport([]Violation{{
				Reason: ReasonCapacityExceeded, TraineeID: tr.ID, Month: m,
				Station: a.Station, StationKey: st.Key,
				Rule: fmt.Sprintf("%s occupancy %d exceeds max %d", st.Key, n, st.MaxOccupancy),
			}}, true)
		}
	}
	return nil
}

// checkMoveSequence rejects a move that contradicts a sequence rule on the
// trainee's committed row: a dependent station placed before a committed
// predecessor month, or a predecessor placed after a committed dependent
// month. The target cell itself is excluded since the move overwrites it.
func (c *Checker) checkMoveSequence(s *schedule.State, ord int, tr model.Trainee, st model.Station, m model.Month, a model.Assignment) *ConflictReport {
	for _, seq := range c.rs.Sequences {
		switch a.Station {
		case seq.After:
			for idx := a.MonthIndex + 1; idx < s.Months(ord); idx++ {
				if s.Get(ord, idx) == seq.Before {
					return NewConflictReport([]Violation{{
						Reason: ReasonSequenceViolation, TraineeID: tr.ID, Month: m,
						Station: a.Station, StationKey: st.Key,
						Rule: fmt.Sprintf("%s must follow %s", st.Key, c.rs.Station(seq.Before).Key),
					}}, true)
				}
			}
		case seq.Before:
			for idx := 0; idx < a.MonthIndex; idx++ {
				if s.Get(ord, idx) == seq.After {
					return NewConflictReport([]Violation{{
						Reason: ReasonSequenceViolation, TraineeID: tr.ID, Month: m,
						Station: a.Station, StationKey: st.Key,
						Rule: fmt.Sprintf("%s must follow %s", c.rs.Station(seq.After).Key, st.Key),
					}}, true)
				}
			}
		}
	}
	return nil
}
