package schedule

import (
	"fmt"

	"github.com/medrota/rotaplan/core/model"
)

// State is the assignment matrix for one program roster: a dense
// (trainee ordinal, month index) grid of station ids. Rows have the
// trainee's leave-adjusted length. A committed State is never mutated in
// place; resolves build a clone and swap it in atomically.
type State struct {
	trainees []model.Trainee
	ordinals map[string]int
	cells    [][]model.StationID
	current  model.Month
	anchors  []model.Anchor
}

// New builds an empty state. lengths holds the leave-adjusted total months
// per trainee, in roster order.
func New(trainees []model.Trainee, lengths []int, current model.Month) (*State, error) {
	if len(trainees) != len(lengths) {
		return nil, fmt.Errorf("roster/lengths mismatch: %d vs %d", len(trainees), len(lengths))
	}
	s := &State{
		trainees: append([]model.Trainee(nil), trainees...),
		ordinals: make(map[string]int, len(trainees)),
		cells:    make([][]model.StationID, len(trainees)),
		current:  current,
	}
	for i, tr := range s.trainees {
		if err := tr.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.ordinals[tr.ID]; dup {
			return nil, fmt.Errorf("duplicate trainee id %s", tr.ID)
		}
		s.ordinals[tr.ID] = i
		if lengths[i] <= 0 {
			return nil, fmt.Errorf("trainee %s: non-positive length %d", tr.ID, lengths[i])
		}
		s.cells[i] = make([]model.StationID, lengths[i])
	}
	return s, nil
}

// NumTrainees returns the roster size.
func (s *State) NumTrainees() int { return len(s.trainees) }

// Trainee returns the trainee at the given ordinal.
func (s *State) Trainee(ord int) model.Trainee { return s.trainees[ord] }

// Trainees returns the roster in ordinal order.
func (s *State) Trainees() []model.Trainee { return s.trainees }

// Ordinal resolves a trainee id to its matrix row.
func (s *State) Ordinal(id string) (int, bool) {
	ord, ok := s.ordinals[id]
	return ord, ok
}

// Months returns the row length (leave-adjusted total months) for ord.
func (s *State) Months(ord int) int { return len(s.cells[ord]) }

// Get returns the station at (ord, index); StationNone when the index is
// outside the trainee's row.
func (s *State) Get(ord, index int) model.StationID {
	if index < 0 || index >= len(s.cells[ord]) {
		return model.StationNone
	}
	return s.cells[ord][index]
}

// Set writes one cell.
func (s *State) Set(ord, index int, st model.StationID) error {
	if index < 0 || index >= len(s.cells[ord]) {
		return fmt.Errorf("trainee %s: month index %d out of range", s.trainees[ord].ID, index)
	}
	s.cells[ord][index] = st
	return nil
}

// CurrentMonth is the immutability boundary: cells at or before it must
// match the previously committed state.
func (s *State) CurrentMonth() model.Month { return s.current }

// SetCurrentMonth moves the boundary; used when the caller supplies a new
// "now" for a resolve.
func (s *State) SetCurrentMonth(m model.Month) { s.current = m }

// Immutable reports whether cell (ord, index) falls at or before the
// current-month boundary.
func (s *State) Immutable(ord, index int) bool {
	return s.trainees[ord].MonthAt(index) <= s.current
}

// Anchors returns the caller-fixed assignments.
func (s *State) Anchors() []model.Anchor { return s.anchors }

// SetAnchors replaces the anchor set.
func (s *State) SetAnchors(anchors []model.Anchor) {
	s.anchors = append([]model.Anchor(nil), anchors...)
}

// Horizon returns the first and last calendar months any row covers.
func (s *State) Horizon() (model.Month, model.Month) {
	if len(s.trainees) == 0 {
		return 0, 0
	}
	first := s.trainees[0].Start
	last := s.trainees[0].MonthAt(len(s.cells[0]) - 1)
	for i, tr := range s.trainees[1:] {
		if tr.Start < first {
			first = tr.Start
		}
		if end := tr.MonthAt(len(s.cells[i+1]) - 1); end > last {
			last = end
		}
	}
	return first, last
}

// ActiveAt counts trainees whose row covers calendar month m.
func (s *State) ActiveAt(m model.Month) int {
	n := 0
	for i, tr := range s.trainees {
		idx := tr.IndexOf(m)
		if idx >= 0 && idx < len(s.cells[i]) {
			n++
		}
	}
	return n
}

// Clone deep-copies the matrix; the roster slice is shared since trainees
// are immutable values.
func (s *State) Clone() *State {
	out := &State{
		trainees: s.trainees,
		ordinals: s.ordinals,
		cells:    make([][]model.StationID, len(s.cells)),
		current:  s.current,
		anchors:  append([]model.Anchor(nil), s.anchors...),
	}
	for i, row := range s.cells {
		out.cells[i] = append([]model.StationID(nil), row...)
	}
	return out
}

// Resize grows or shrinks a trainee's row to a new leave-adjusted length,
// preserving existing assignments that still fit.
func (s *State) Resize(ord, months int) error {
	if months <= 0 {
		return fmt.Errorf("trainee %s: non-positive length %d", s.trainees[ord].ID, months)
	}
	row := s.cells[ord]
	if months == len(row) {
		return nil
	}
	next := make([]model.StationID, months)
	copy(next, row)
	s.cells[ord] = next
	return nil
}
