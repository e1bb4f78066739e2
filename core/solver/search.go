package solver

import (
	"context"
	"math"
	"sort"

	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/schedule"
)

// Relaxation passes. Hard constraints are identical everywhere; passes
// only loosen how finely station blocks may be split.
const (
	passStrict          = iota // whole blocks, splittable stations may break once
	passRelaxSplittable        // splittable stations break freely
	passRelaxAll               // every station breaks freely
)

type cand struct {
	id      model.StationID
	length  int
	urgency int
}

// searcher is the mutable side of one search pass. Cells are decided in
// chronological order per trainee, ties broken by roster ordinal, so runs
// over identical inputs take identical paths.
type searcher struct {
	p    *problem
	pass int

	st      *schedule.State
	rem     [][]int
	blocks  [][]int
	ptr     []int
	occ     *schedule.Tracker
	pending map[model.Month]int

	nodes       int64
	deadlineHit bool
}

// search runs one pass. It returns the solution if one exists, and
// whether the pass exhausted its space (false means the deadline cut it
// short).
func (p *problem) search(ctx context.Context, pass int) (*schedule.State, bool, bool) {
	s := &searcher{
		p:       p,
		pass:    pass,
		st:      p.base.Clone(),
		rem:     make([][]int, len(p.roster)),
		blocks:  make([][]int, len(p.roster)),
		ptr:     make([]int, len(p.roster)),
		occ:     schedule.TrackState(p.base),
		pending: make(map[model.Month]int, len(p.pending0)),
	}
	for ord := range p.roster {
		s.rem[ord] = append([]int(nil), p.rem0[ord]...)
		s.blocks[ord] = make([]int, p.rs.NumStations()+1)
		s.ptr[ord] = s.advance(ord, 0)
	}
	for m, n := range p.pending0 {
		s.pending[m] = n
	}
	if s.dfs(ctx) {
		return s.st, true, true
	}
	return nil, false, !s.deadlineHit
}

// advance returns the first open index at or after from.
func (s *searcher) advance(ord, from int) int {
	for from < s.st.Months(ord) && s.p.fixed[ord][from] {
		from++
	}
	return from
}

// nextTrainee picks the open cell with the earliest calendar month,
// breaking ties by roster ordinal. -1 means the matrix is complete.
func (s *searcher) nextTrainee() int {
	best, bestMonth := -1, model.Month(math.MaxInt32)
	for ord := range s.p.roster {
		if s.ptr[ord] >= s.st.Months(ord) {
			continue
		}
		if m := s.p.roster[ord].MonthAt(s.ptr[ord]); m < bestMonth {
			best, bestMonth = ord, m
		}
	}
	return best
}

func (s *searcher) dfs(ctx context.Context) bool {
	s.nodes++
	if s.nodes&0xff == 0 {
		select {
		case <-ctx.Done():
			s.deadlineHit = true
			return false
		default:
		}
	}
	ord := s.nextTrainee()
	if ord < 0 {
		return true
	}
	if !s.reachable(ord) {
		return false
	}
	idx := s.ptr[ord]
	for _, c := range s.candidates(ord, idx) {
		undo, ok := s.place(ord, idx, c)
		if ok && s.dfs(ctx) {
			return true
		}
		s.unplace(ord, idx, c, undo)
		if s.deadlineHit {
			return false
		}
	}
	return false
}

// reachable prunes branches where some owed station can no longer fit:
// its admissible slots are spent, or an immediate successor's window
// closes before the predecessor could finish.
func (s *searcher) reachable(ord int) bool {
	idx := s.ptr[ord]
	for sid, rem := range s.rem[ord] {
		if rem <= 0 {
			continue
		}
		id := model.StationID(sid)
		if slots, windowed := s.p.allowed[ord][id]; windowed {
			if len(slots)-sort.SearchInts(slots, idx) < rem {
				return false
			}
		}
		for _, seq := range s.p.seqs {
			if seq.Before != id || !seq.Immediate || s.rem[ord][seq.After] <= 0 {
				continue
			}
			slots, windowed := s.p.allowed[ord][seq.After]
			if !windowed {
				continue
			}
			if len(slots)-sort.SearchInts(slots, idx+rem) < s.rem[ord][seq.After] {
				return false
			}
		}
	}
	return true
}

// segLen measures the contiguous open run starting at idx.
func (s *searcher) segLen(ord, idx int) int {
	n := 0
	for idx+n < s.st.Months(ord) && !s.p.fixed[ord][idx+n] {
		n++
	}
	return n
}

func (s *searcher) blockLimit(id model.StationID) int {
	switch {
	case s.pass >= passRelaxAll:
		return math.MaxInt32
	case s.p.rs.Station(id).Splittable:
		if s.pass >= passRelaxSplittable {
			return math.MaxInt32
		}
		return 2
	default:
		return 1
	}
}

// candidates enumerates the (station, block length) choices for the open
// cell, most constrained station first, longest block first.
func (s *searcher) candidates(ord, idx int) []cand {
	seg := s.segLen(ord, idx)
	var out []cand
	for sid, rem := range s.rem[ord] {
		id := model.StationID(sid)
		limit := s.blockLimit(id)
		if rem <= 0 || s.blocks[ord][sid] >= limit {
			continue
		}
		urg := s.urgency(ord, id, idx)
		for _, l := range s.lengths(id, rem, seg) {
			// A partial block strands its remainder unless another block
			// fits in the budget.
			if l < rem && s.blocks[ord][sid]+2 > limit {
				continue
			}
			if s.canPlace(ord, idx, id, l) {
				out = append(out, cand{id: id, length: l, urgency: urg})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].urgency != out[j].urgency {
			return out[i].urgency < out[j].urgency
		}
		if out[i].id != out[j].id {
			return out[i].id < out[j].id
		}
		return out[i].length > out[j].length
	})
	return out
}

// lengths lists the block sizes worth trying, longest first. Splitting a
// block leaves a remainder that must itself be placeable, so sizes that
// would strand a remainder with no block budget are not offered.
func (s *searcher) lengths(id model.StationID, rem, seg int) []int {
	full := rem
	if full > seg {
		full = seg
	}
	if full <= 0 {
		return nil
	}
	limit := s.blockLimit(id)
	var out []int
	if full == rem {
		out = append(out, full)
	}
	switch {
	case limit == math.MaxInt32:
		for l := full; l >= 1; l-- {
			if l != rem {
				out = append(out, l)
			}
		}
	case s.p.rs.Station(id).Splittable:
		// One split into two parts, neither shorter than two months.
		for l := full; l >= 2; l-- {
			if l != rem && rem-l >= 2 {
				out = append(out, l)
			}
		}
	}
	return out
}

// urgency is the latest index at which the station's remaining months
// could still start. Stations that can wait sort last.
func (s *searcher) urgency(ord int, id model.StationID, idx int) int {
	latest := math.MaxInt32
	rem := s.rem[ord][int(id)]
	if slots, windowed := s.p.allowed[ord][id]; windowed {
		free := slots[sort.SearchInts(slots, idx):]
		if len(free) >= rem {
			latest = free[len(free)-rem]
		}
	}
	for _, seq := range s.p.seqs {
		if seq.Before != id || !seq.Immediate {
			continue
		}
		remAfter := s.rem[ord][seq.After]
		if remAfter <= 0 {
			continue
		}
		slots, windowed := s.p.allowed[ord][seq.After]
		if !windowed {
			continue
		}
		free := slots[sort.SearchInts(slots, idx+rem):]
		if len(free) >= remAfter {
			if l := free[len(free)-remAfter] - rem; l < latest {
				latest = l
			}
		}
	}
	return latest
}

// canPlace checks the hard constraints of laying a block of id over
// [idx, idx+length) for the trainee.
func (s *searcher) canPlace(ord, idx int, id model.StationID, length int) bool {
	tr := s.p.roster[ord]
	for k := 0; k < length; k++ {
		if !s.p.cellAdmits(ord, id, idx+k) {
			return false
		}
		m := tr.MonthAt(idx + k)
		if s.occ.Occupancy(id, m)+1 > s.p.maxAt(id) {
			return false
		}
	}
	completing := length == s.rem[ord][int(id)]
	for _, seq := range s.p.seqs {
		if seq.After == id {
			if s.p.tgt0[ord][seq.Before] > 0 && s.rem[ord][seq.Before] > 0 {
				return false
			}
			if seq.Immediate && !s.hasCellBefore(ord, id, idx) {
				if idx == 0 || s.st.Get(ord, idx-1) != seq.Before {
					return false
				}
			}
		}
		if seq.Before == id && s.p.tgt0[ord][seq.After] > 0 {
			if s.hasCellBefore(ord, seq.After, idx) {
				return false
			}
			fa := s.firstCellFrom(ord, seq.After, idx)
			switch {
			case fa >= 0:
				if idx+length > fa {
					return false
				}
				if seq.Immediate && completing && idx+length != fa {
					return false
				}
			case seq.Immediate && completing && s.rem[ord][seq.After] > 0:
				// The successor block must be able to start right after.
				next := idx + length
				if next >= s.st.Months(ord) || s.p.fixed[ord][next] || !s.p.cellAdmits(ord, seq.After, next) {
					return false
				}
			}
		}
	}
	return true
}

func (s *searcher) hasCellBefore(ord int, id model.StationID, idx int) bool {
	for i := 0; i < idx; i++ {
		if s.st.Get(ord, i) == id {
			return true
		}
	}
	return false
}

// firstCellFrom finds the earliest occurrence of id at or after idx; only
// fixed cells can live there, the search has not reached them yet.
func (s *searcher) firstCellFrom(ord int, id model.StationID, idx int) int {
	for i := idx; i < s.st.Months(ord); i++ {
		if s.st.Get(ord, i) == id {
			return i
		}
	}
	return -1
}

type undoRec struct {
	ptr    int
	closed []model.Month
}

// place lays the block down and reports whether every month it closed
// still meets its staffing minimums. The caller must unplace either way.
func (s *searcher) place(ord, idx int, c cand) (undoRec, bool) {
	tr := s.p.roster[ord]
	u := undoRec{ptr: s.ptr[ord]}
	for k := 0; k < c.length; k++ {
		m := tr.MonthAt(idx + k)
		_ = s.st.Set(ord, idx+k, c.id)
		s.occ.Apply(c.id, m)
		s.pending[m]--
		if s.pending[m] == 0 && m > s.p.in.Current {
			u.closed = append(u.closed, m)
		}
	}
	s.rem[ord][int(c.id)] -= c.length
	s.blocks[ord][int(c.id)]++
	s.ptr[ord] = s.advance(ord, idx+c.length)

	for _, m := range u.closed {
		if !s.minsMet(m) {
			return u, false
		}
	}
	return u, true
}

func (s *searcher) unplace(ord, idx int, c cand, u undoRec) {
	tr := s.p.roster[ord]
	for k := 0; k < c.length; k++ {
		m := tr.MonthAt(idx + k)
		_ = s.st.Set(ord, idx+k, model.StationNone)
		s.occ.Remove(c.id, m)
		s.pending[m]++
	}
	s.rem[ord][int(c.id)] += c.length
	s.blocks[ord][int(c.id)]--
	s.ptr[ord] = u.ptr
}

// minsMet verifies staffing minimums for a month whose last open cell was
// just assigned.
func (s *searcher) minsMet(m model.Month) bool {
	for _, st := range s.p.rs.Stations() {
		if min := s.p.minAt(st.ID, m); min > 0 && s.occ.Occupancy(st.ID, m) < min {
			return false
		}
	}
	return true
}
