package schedule

import (
	"sort"

	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
)

type occKey struct {
	Station model.StationID
	Month   model.Month
}

// Tracker derives per-(station, calendar month) occupancy from a State.
// Counters are updated incrementally on every cell write so reads are
// O(1); the solver leans on this during search.
type Tracker struct {
	counts map[occKey]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{counts: make(map[occKey]int)}
}

// TrackState builds a tracker over every assigned cell of s.
func TrackState(s *State) *Tracker {
	t := NewTracker()
	for ord := 0; ord < s.NumTrainees(); ord++ {
		tr := s.Trainee(ord)
		for idx := 0; idx < s.Months(ord); idx++ {
			if st := s.Get(ord, idx); st != model.StationNone {
				t.Apply(st, tr.MonthAt(idx))
			}
		}
	}
	return t
}

// Apply records one trainee-month at the station.
func (t *Tracker) Apply(st model.StationID, m model.Month) {
	t.counts[occKey{st, m}]++
}

// Remove reverses a previous Apply.
func (t *Tracker) Remove(st model.StationID, m model.Month) {
	k := occKey{st, m}
	if t.counts[k] > 1 {
		t.counts[k]--
	} else {
		delete(t.counts, k)
	}
}

// Occupancy returns the headcount at (station, month).
func (t *Tracker) Occupancy(st model.StationID, m model.Month) int {
	return t.counts[occKey{st, m}]
}

// CapacityCell is one (station, month) occupancy observation with its
// configured bounds.
type CapacityCell struct {
	Station    model.StationID `json:"station"`
	StationKey string          `json:"station_key"`
	LogicalKey string          `json:"logical_key"`
	Month      model.Month     `json:"month"`
	Count      int             `json:"count"`
	Min        int             `json:"min"`
	Max        int             `json:"max"`
}

// WithinBounds reports whether the observed count respects [min, max].
func (c CapacityCell) WithinBounds() bool {
	return c.Count >= c.Min && c.Count <= c.Max
}

// Summary flattens the tracker into sorted cells, resolving station
// metadata through the rule set. Department variants additionally
// aggregate onto their logical key so shared capacity can be read off
// directly.
func (t *Tracker) Summary(rs *rules.RuleSet) []CapacityCell {
	cells := make([]CapacityCell, 0, len(t.counts))
	for k, n := range t.counts {
		st := rs.Station(k.Station)
		if st.ID == model.StationNone {
			continue
		}
		cells = append(cells, CapacityCell{
			Station:    st.ID,
			StationKey: st.Key,
			LogicalKey: st.LogicalKey,
			Month:      k.Month,
			Count:      n,
			Min:        st.MinOccupancy,
			Max:        st.MaxOccupancy,
		})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Month != cells[j].Month {
			return cells[i].Month < cells[j].Month
		}
		return cells[i].Station < cells[j].Station
	})
	return cells
}
