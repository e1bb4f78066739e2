package solver

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/schedule"
	"github.com/medrota/rotaplan/core/validate"
)

// solveMonthLP checks that one month's open cells can be distributed over
// the candidate stations: find y with 0 <= y_s <= slack_s and sum y = open.
// The objective is constant; only feasibility matters.
func solveMonthLP(slack []float64, open float64) error {
	n := len(slack)
	c := make([]float64, n)
	for i := range c {
		c[i] = 1
	}

	g := mat.NewDense(2*n, n, nil)
	h := make([]float64, 2*n)
	for i, s := range slack {
		g.Set(i, i, 1)
		h[i] = s
		g.Set(n+i, i, -1)
	}

	a := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		a.Set(0, i, 1)
	}
	b := []float64{open}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, _, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	return err
}

// lpSolve points to the function used for the monthly feasibility check.
// It can be overridden in tests to simulate solver failures.
var lpSolve = solveMonthLP

// monthDemand aggregates one calendar month of the prepared problem.
type monthDemand struct {
	open     int
	stations []model.StationID
	lb, ub   []int
}

// lpPrecheck runs a per-month capacity relaxation before any search: for
// every future month, the open cells must be distributable over candidate
// stations within [min, max] occupancy. The relaxation ignores sequencing
// and continuity, so a failure here is a proof of infeasibility and names
// the station-month that cannot be staffed.
func (p *problem) lpPrecheck() *validate.ConflictReport {
	if p.freeTotal == 0 {
		return nil
	}
	first, last := p.base.Horizon()
	fixedOcc := schedule.TrackState(p.base)
	for m := first; m <= last; m++ {
		if p.pending0[m] == 0 {
			continue
		}
		d, rep := p.monthDemand(m, fixedOcc)
		if rep != nil {
			return rep
		}
		if rep := p.checkMonth(m, d); rep != nil {
			return rep
		}
	}
	return nil
}

func (p *problem) monthDemand(m model.Month, fixedOcc *schedule.Tracker) (monthDemand, *validate.ConflictReport) {
	var d monthDemand
	eligible := make(map[model.StationID]int)
	for ord, tr := range p.roster {
		idx := tr.IndexOf(m)
		if idx < 0 || idx >= p.base.Months(ord) || p.fixed[ord][idx] {
			continue
		}
		d.open++
		candidates := 0
		for sid, rem := range p.rem0[ord] {
			id := model.StationID(sid)
			if rem <= 0 || !p.cellAdmits(ord, id, idx) {
				continue
			}
			eligible[id]++
			candidates++
		}
		if candidates == 0 {
			return d, conflict(validate.ReasonWindowMissed, validate.Violation{
				Reason: validate.ReasonWindowMissed, TraineeID: tr.ID, Month: m,
				Rule: fmt.Sprintf("no admissible station left for %s in %s", tr.ID, m),
			})
		}
	}

	ids := make([]model.StationID, 0, len(eligible))
	for id := range eligible {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		occ := fixedOcc.Occupancy(id, m)
		lb := p.minAt(id, m) - occ
		if lb < 0 || m <= p.in.Current {
			lb = 0
		}
		ub := p.maxAt(id) - occ
		if ub > eligible[id] {
			ub = eligible[id]
		}
		if ub < lb {
			st := p.rs.Station(id)
			return d, conflict(validate.ReasonCapacityExceeded, validate.Violation{
				Reason: validate.ReasonCapacityExceeded, Month: m,
				Station: id, StationKey: st.Key,
				Rule: fmt.Sprintf("%s needs %d trainees in %s but at most %d are available", st.Key, lb+occ, m, ub+occ),
			})
		}
		d.stations = append(d.stations, id)
		d.lb = append(d.lb, lb)
		d.ub = append(d.ub, ub)
	}
	return d, nil
}

// cellAdmits reports whether station id may occupy the trainee's cell at
// idx under its calendar windows.
func (p *problem) cellAdmits(ord int, id model.StationID, idx int) bool {
	slots, windowed := p.allowed[ord][id]
	if !windowed {
		return true
	}
	i := sort.SearchInts(slots, idx)
	return i < len(slots) && slots[i] == idx
}

func (p *problem) checkMonth(m model.Month, d monthDemand) *validate.ConflictReport {
	sumLB, sumUB := 0, 0
	for i := range d.stations {
		sumLB += d.lb[i]
		sumUB += d.ub[i]
	}
	if sumLB > d.open {
		items := p.minViolations(m, d)
		rep := validate.NewConflictReport(items, true)
		rep.Reason = validate.ReasonCapacityExceeded
		rep.Message = fmt.Sprintf("staffing minimums in %s require %d trainees, only %d are unassigned", m, sumLB, d.open)
		return rep
	}
	if sumUB < d.open {
		return conflict(validate.ReasonCapacityExceeded, validate.Violation{
			Reason: validate.ReasonCapacityExceeded, Month: m,
			Rule: fmt.Sprintf("stations in %s can absorb %d trainees, %d need placement", m, sumUB, d.open),
		})
	}

	// The interval checks above cover the box-constrained case; the LP
	// stays as the authoritative feasibility proof.
	slack := make([]float64, len(d.stations))
	for i := range d.stations {
		slack[i] = float64(d.ub[i] - d.lb[i])
	}
	if err := lpSolve(slack, float64(d.open-sumLB)); err != nil {
		return conflict(validate.ReasonCapacityExceeded, validate.Violation{
			Reason: validate.ReasonCapacityExceeded, Month: m,
			Rule: fmt.Sprintf("capacity relaxation for %s is infeasible: %v", m, err),
		})
	}
	return nil
}

// minViolations lists every station whose minimum contributes to an
// unmeetable month, so the report shows the whole conflicting set.
func (p *problem) minViolations(m model.Month, d monthDemand) []validate.Violation {
	var items []validate.Violation
	for i, id := range d.stations {
		if d.lb[i] == 0 {
			continue
		}
		st := p.rs.Station(id)
		items = append(items, validate.Violation{
			Reason: validate.ReasonCapacityExceeded, Month: m,
			Station: id, StationKey: st.Key,
			Rule: fmt.Sprintf("%s requires %d more trainees in %s", st.Key, d.lb[i], m),
		})
	}
	return items
}
