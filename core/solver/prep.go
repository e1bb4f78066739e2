package solver

import (
	"fmt"

	"github.com/medrota/rotaplan/core/leave"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
	"github.com/medrota/rotaplan/core/validate"
)

// problem is the prepared search space: every immutable cell is written
// into base and the remaining duration demand is expressed per trainee
// and station. Search never touches base; each pass clones it.
type problem struct {
	in      Input
	rs      *rules.RuleSet
	roster  []model.Trainee
	targets []leave.Target
	base    *schedule.State

	fixed [][]bool
	// tgt0 is the full duration demand, indexed [ordinal][station id];
	// rem0 is what remains of it after fixed cells are subtracted.
	tgt0 [][]int
	rem0 [][]int
	// allowed holds, per trainee, the admissible month indices of every
	// window-constrained station the trainee still owes.
	allowed []map[model.StationID][]int
	seqs    []rules.SequenceRule
	// firstFixed is the earliest fixed index per (ordinal, station), -1
	// when none. Immediate sequences ending at an anchored block need it.
	firstFixed []map[model.StationID]int

	pending0  map[model.Month]int
	freeTotal int
}

func conflict(reason validate.Reason, v ...validate.Violation) *validate.ConflictReport {
	rep := validate.NewConflictReport(v, true)
	rep.Reason = reason
	return rep
}

// prepare fixes anchors, already-elapsed months and leave placeholders
// into a working state, derives remaining duration demand and fails fast
// on contradictions that no search could resolve.
func prepare(in Input) (*problem, *validate.ConflictReport) {
	if in.State == nil || in.Rules == nil {
		return nil, conflict(validate.ReasonAnchorConflict, validate.Violation{
			Reason: validate.ReasonAnchorConflict,
			Rule:   "resolve requires a committed state and a rule set",
		})
	}
	rs := in.Rules
	roster := in.State.Trainees()

	targets := in.Targets
	if targets == nil {
		var err error
		if targets, err = leave.DeriveAll(roster, in.Leaves, rs.Leave); err != nil {
			return nil, conflict(validate.ReasonDurationShortfall, validate.Violation{
				Reason: validate.ReasonDurationShortfall,
				Rule:   err.Error(),
			})
		}
	}
	if len(targets) != len(roster) {
		return nil, conflict(validate.ReasonDurationShortfall, validate.Violation{
			Reason: validate.ReasonDurationShortfall,
			Rule:   fmt.Sprintf("targets cover %d trainees, roster has %d", len(targets), len(roster)),
		})
	}

	base := in.State.Clone()
	base.SetCurrentMonth(in.Current)
	base.SetAnchors(in.Anchors)

	p := &problem{
		in:         in,
		rs:         rs,
		roster:     roster,
		targets:    targets,
		base:       base,
		fixed:      make([][]bool, len(roster)),
		tgt0:       make([][]int, len(roster)),
		rem0:       make([][]int, len(roster)),
		allowed:    make([]map[model.StationID][]int, len(roster)),
		firstFixed: make([]map[model.StationID]int, len(roster)),
		pending0:   make(map[model.Month]int),
	}

	// Rows take their leave-adjusted length; cells after the boundary are
	// cleared so the search re-derives them, committed past stays.
	for ord, tr := range roster {
		if targets[ord].TraineeID != tr.ID {
			return nil, conflict(validate.ReasonDurationShortfall, validate.Violation{
				Reason: validate.ReasonDurationShortfall, TraineeID: tr.ID,
				Rule: "targets are not in roster order",
			})
		}
		if err := base.Resize(ord, targets[ord].TotalMonths); err != nil {
			return nil, conflict(validate.ReasonDurationShortfall, validate.Violation{
				Reason: validate.ReasonDurationShortfall, TraineeID: tr.ID, Rule: err.Error(),
			})
		}
		p.fixed[ord] = make([]bool, base.Months(ord))
		for idx := 0; idx < base.Months(ord); idx++ {
			if tr.MonthAt(idx) <= in.Current {
				// Recorded history is immutable; unrecorded past months
				// stay open for the search to backfill.
				p.fixed[ord][idx] = base.Get(ord, idx) != model.StationNone
				continue
			}
			_ = base.Set(ord, idx, model.StationNone)
		}
	}

	if rep := p.fixLeaves(); rep != nil {
		return nil, rep
	}
	if rep := p.fixAnchors(); rep != nil {
		return nil, rep
	}
	if rep := p.deriveDemand(); rep != nil {
		return nil, rep
	}
	if rep := p.deriveWindows(); rep != nil {
		return nil, rep
	}

	for i, seq := range rs.Sequences {
		if in.dropSequence[i] {
			continue
		}
		p.seqs = append(p.seqs, seq)
	}

	// Months that are already fully fixed never close during search, so
	// their staffing minimums are verified here.
	if rep := p.checkFixedMonths(); rep != nil {
		return nil, rep
	}
	return p, nil
}

// fixLeaves writes leave placeholders over every month a leave event
// covers. Leave is authoritative over anchors and over recorded history.
func (p *problem) fixLeaves() *validate.ConflictReport {
	for _, ev := range p.in.Leaves {
		ord, ok := p.base.Ordinal(ev.TraineeID)
		if !ok {
			continue
		}
		tr := p.roster[ord]
		sid, ok := p.rs.LeaveStations[ev.Kind]
		if !ok {
			return conflict(validate.ReasonAnchorConflict, validate.Violation{
				Reason: validate.ReasonAnchorConflict, TraineeID: tr.ID, Month: ev.Start,
				Rule: fmt.Sprintf("rule set %s has no placeholder station for %s leave", p.rs.Version, ev.Kind),
			})
		}
		for k := 0; k < ev.Months; k++ {
			m := ev.Start.Add(k)
			idx := tr.IndexOf(m)
			if idx < 0 || idx >= p.base.Months(ord) {
				return conflict(validate.ReasonAnchorConflict, validate.Violation{
					Reason: validate.ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
					Station: sid, StationKey: p.rs.Station(sid).Key,
					Rule: "leave event falls outside the trainee's program",
				})
			}
			if p.fixed[ord][idx] && p.base.Get(ord, idx) != sid {
				return conflict(validate.ReasonAnchorConflict, validate.Violation{
					Reason: validate.ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
					Station: sid, StationKey: p.rs.Station(sid).Key,
					Rule: fmt.Sprintf("leave overlaps recorded assignment %s", p.rs.Station(p.base.Get(ord, idx)).Key),
				})
			}
			_ = p.base.Set(ord, idx, sid)
			p.fixed[ord][idx] = true
		}
	}
	return nil
}

// fixAnchors pins caller-fixed assignments, rejecting any anchor that
// contradicts history, leave, eligibility or another anchor. These are
// checked before search so a bad anchor fails in microseconds, not after
// an exhausted search.
func (p *problem) fixAnchors() *validate.ConflictReport {
	for _, anc := range p.in.Anchors {
		ord, ok := p.base.Ordinal(anc.TraineeID)
		if !ok {
			return conflict(validate.ReasonAnchorConflict, validate.Violation{
				Reason: validate.ReasonAnchorConflict,
				Rule:   fmt.Sprintf("anchor references unknown trainee %s", anc.TraineeID),
			})
		}
		tr := p.roster[ord]
		st := p.rs.Station(anc.Station)
		if st.ID == model.StationNone {
			return conflict(validate.ReasonAnchorConflict, validate.Violation{
				Reason: validate.ReasonAnchorConflict, TraineeID: tr.ID,
				Rule: fmt.Sprintf("anchor references unknown station %d", anc.Station),
			})
		}
		m := tr.MonthAt(anc.MonthIndex)
		if anc.MonthIndex < 0 || anc.MonthIndex >= p.base.Months(ord) {
			return conflict(validate.ReasonAnchorConflict, validate.Violation{
				Reason: validate.ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
				Station: st.ID, StationKey: st.Key,
				Rule: fmt.Sprintf("anchor index %d outside the trainee's program", anc.MonthIndex),
			})
		}
		if p.fixed[ord][anc.MonthIndex] && p.base.Get(ord, anc.MonthIndex) != st.ID {
			return conflict(validate.ReasonAnchorConflict, validate.Violation{
				Reason: validate.ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
				Station: st.ID, StationKey: st.Key,
				Rule: fmt.Sprintf("anchor contradicts fixed assignment %s", p.rs.Station(p.base.Get(ord, anc.MonthIndex)).Key),
			})
		}
		if !st.InTrack(tr.Track) || !st.EligibleFor(tr.Department) {
			return conflict(validate.ReasonAnchorConflict, validate.Violation{
				Reason: validate.ReasonAnchorConflict, TraineeID: tr.ID, Month: m,
				Station: st.ID, StationKey: st.Key,
				Rule: fmt.Sprintf("%s is not eligible for %s (department %s)", tr.ID, st.Key, tr.Department),
			})
		}
		if !p.in.dropWindow[st.ID] {
			for _, w := range p.rs.WindowsFor(st.ID) {
				if !w.AllowsMonth(m) || !w.AllowsIndex(anc.MonthIndex, p.targets[ord].TotalMonths) {
					return conflict(validate.ReasonWindowMissed, validate.Violation{
						Reason: validate.ReasonWindowMissed, TraineeID: tr.ID, Month: m,
						Station: st.ID, StationKey: st.Key,
						Rule: fmt.Sprintf("anchored %s outside its calendar window", st.Key),
					})
				}
			}
		}
		_ = p.base.Set(ord, anc.MonthIndex, st.ID)
		p.fixed[ord][anc.MonthIndex] = true
	}

	// Anchors must not overfill a station's capacity among themselves and
	// the committed past.
	occ := schedule.TrackState(p.base)
	for _, anc := range p.in.Anchors {
		st := p.rs.Station(anc.Station)
		if !st.Bounded() || p.in.dropCapacity[st.ID] {
			continue
		}
		ord, _ := p.base.Ordinal(anc.TraineeID)
		m := p.roster[ord].MonthAt(anc.MonthIndex)
		if n := occ.Occupancy(st.ID, m); n > st.MaxOccupancy {
			return conflict(validate.ReasonAnchorConflict, validate.Violation{
				Reason: validate.ReasonAnchorConflict, TraineeID: anc.TraineeID, Month: m,
				Station: st.ID, StationKey: st.Key,
				Rule: fmt.Sprintf("anchors put %d trainees on %s, max is %d", n, st.Key, st.MaxOccupancy),
			})
		}
	}
	return nil
}

// deriveDemand subtracts fixed cells from the per-station duration
// targets and checks that the free cells exactly absorb the remainder.
func (p *problem) deriveDemand() *validate.ConflictReport {
	n := p.rs.NumStations()
	for ord, tr := range p.roster {
		tmap := p.rs.DurationTargets(tr.Track, tr.Department, p.targets[ord].RotationMonths)
		tgt := make([]int, n+1)
		rem := make([]int, n+1)
		for sid, months := range tmap {
			tgt[sid] = months
			rem[sid] = months
		}
		p.tgt0[ord] = tgt
		p.firstFixed[ord] = make(map[model.StationID]int)
		free, leaveCells := 0, 0
		for idx := 0; idx < p.base.Months(ord); idx++ {
			if !p.fixed[ord][idx] {
				free++
				p.pending0[tr.MonthAt(idx)]++
				continue
			}
			sid := p.base.Get(ord, idx)
			if _, seen := p.firstFixed[ord][sid]; !seen {
				p.firstFixed[ord][sid] = idx
			}
			if p.rs.IsLeaveStation(sid) {
				leaveCells++
				continue
			}
			if rem[sid] <= 0 {
				return conflict(validate.ReasonDurationShortfall, validate.Violation{
					Reason: validate.ReasonDurationShortfall, TraineeID: tr.ID, Month: tr.MonthAt(idx),
					Station: sid, StationKey: p.rs.Station(sid).Key,
					Rule: fmt.Sprintf("fixed assignments exceed the required months of %s", p.rs.Station(sid).Key),
				})
			}
			rem[sid]--
		}
		owed := 0
		for _, months := range rem {
			owed += months
		}
		if free != owed {
			return conflict(validate.ReasonDurationShortfall, validate.Violation{
				Reason: validate.ReasonDurationShortfall, TraineeID: tr.ID, Month: tr.Start,
				Rule: fmt.Sprintf("%d open months cannot absorb %d owed station months (%d leave cells)", free, owed, leaveCells),
			})
		}
		p.rem0[ord] = rem
		p.freeTotal += free
	}
	return nil
}

// deriveWindows precomputes, per trainee, the admissible indices of every
// window-constrained station still owed, and rejects demand that has
// fewer admissible slots than months to place.
func (p *problem) deriveWindows() *validate.ConflictReport {
	for ord, tr := range p.roster {
		p.allowed[ord] = make(map[model.StationID][]int)
		total := p.targets[ord].TotalMonths
		for sid, rem := range p.rem0[ord] {
			id := model.StationID(sid)
			if rem <= 0 || p.in.dropWindow[id] {
				continue
			}
			windows := p.rs.WindowsFor(id)
			if len(windows) == 0 {
				continue
			}
			var slots []int
			for idx := 0; idx < p.base.Months(ord); idx++ {
				if p.fixed[ord][idx] {
					continue
				}
				ok := true
				for _, w := range windows {
					if !w.AllowsMonth(tr.MonthAt(idx)) || !w.AllowsIndex(idx, total) {
						ok = false
						break
					}
				}
				if ok {
					slots = append(slots, idx)
				}
			}
			if len(slots) < rem {
				st := p.rs.Station(id)
				return conflict(validate.ReasonWindowMissed, validate.Violation{
					Reason: validate.ReasonWindowMissed, TraineeID: tr.ID, Month: tr.Start,
					Station: id, StationKey: st.Key,
					Rule: fmt.Sprintf("%s needs %d months but only %d admissible slots remain", st.Key, rem, len(slots)),
				})
			}
			p.allowed[ord][id] = slots
		}
	}
	return nil
}

// checkFixedMonths verifies staffing minimums on future months the search
// will never revisit because every cell in them is already fixed.
func (p *problem) checkFixedMonths() *validate.ConflictReport {
	first, last := p.base.Horizon()
	occ := schedule.TrackState(p.base)
	for m := first; m <= last; m++ {
		if m <= p.in.Current || p.pending0[m] > 0 || p.base.ActiveAt(m) == 0 {
			continue
		}
		for _, st := range p.rs.Stations() {
			min := p.minAt(st.ID, m)
			if min > 0 && occ.Occupancy(st.ID, m) < min {
				return conflict(validate.ReasonCapacityExceeded, validate.Violation{
					Reason: validate.ReasonCapacityExceeded, Month: m,
					Station: st.ID, StationKey: st.Key,
					Rule: fmt.Sprintf("%s is below its minimum of %d and no open cells remain in %s", st.Key, min, m),
				})
			}
		}
	}
	return nil
}

// minAt resolves the effective staffing minimum for a station-month,
// honoring force-override relaxations. Month-specific overrides win over
// blanket ones.
func (p *problem) minAt(id model.StationID, m model.Month) int {
	if p.in.dropCapacity[id] {
		return 0
	}
	min := p.rs.Station(id).MinOccupancy
	for _, ov := range p.in.Overrides {
		if ov.Station != id {
			continue
		}
		if ov.Month == 0 {
			min = ov.Min
		}
	}
	for _, ov := range p.in.Overrides {
		if ov.Station == id && ov.Month == m {
			min = ov.Min
		}
	}
	return min
}

// maxAt resolves the effective occupancy ceiling for a station.
func (p *problem) maxAt(id model.StationID) int {
	if p.in.dropCapacity[id] {
		return model.Unbounded
	}
	return p.rs.Station(id).MaxOccupancy
}
