package rules

import (
	"fmt"
	"time"

	"github.com/medrota/rotaplan/core/model"
)

// SequenceRule orders two station blocks for every trainee that owes both.
// Immediate sequences require the dependent block to start in the month
// directly after the predecessor's last month; otherwise strictly-after is
// enough.
type SequenceRule struct {
	Before    model.StationID
	After     model.StationID
	Immediate bool
}

// WindowRule restricts a station to certain calendar months and to a band
// of trainee-relative month indices. FromEnd bands count backwards from the
// trainee's leave-adjusted completion length, so they move when the ripple
// processor extends a target.
type WindowRule struct {
	Station  model.StationID
	Months   []time.Month // allowed calendar months; empty means any
	MinIndex int
	MaxIndex int
	FromEnd  bool
}

// AllowsIndex reports whether the window admits the given trainee-relative
// index for a trainee of totalMonths leave-adjusted length.
func (w WindowRule) AllowsIndex(index, totalMonths int) bool {
	lo, hi := w.MinIndex, w.MaxIndex
	if w.FromEnd {
		// MinIndex/MaxIndex are months-from-end, MinIndex being closest
		// to graduation.
		lo = totalMonths - w.MaxIndex
		hi = totalMonths - w.MinIndex
	}
	return index >= lo && index <= hi
}

// AllowsMonth reports whether the window admits the calendar month.
func (w WindowRule) AllowsMonth(m model.Month) bool {
	if len(w.Months) == 0 {
		return true
	}
	cal := m.Calendar()
	for _, allowed := range w.Months {
		if cal == allowed {
			return true
		}
	}
	return false
}

// LeavePolicy holds the constants the ripple processor applies.
type LeavePolicy struct {
	// RotationAllotment is the nominal department rotation block, in
	// months, that within-syllabus leave deducts from.
	RotationAllotment int
	// WithinSyllabusCap bounds how much within-syllabus leave may be
	// absorbed by the rotation allotment before the program extends.
	WithinSyllabusCap int
}

// RuleSet is one immutable, versioned snapshot of all station rules. A
// solve binds to exactly one RuleSet for its whole duration.
type RuleSet struct {
	Version   string
	Effective model.Month // first month this version applies to, inclusive

	stations []model.Station // index == StationID; slot 0 is unused
	byKey    map[string]model.StationID

	Sequences []SequenceRule
	Windows   []WindowRule
	Leave     LeavePolicy

	// RotationStation is the station whose duration target is the
	// per-trainee rotation allotment rather than a fixed table value.
	RotationStation model.StationID
	// LeaveStations maps leave kinds to the placeholder stations that
	// occupy matrix cells covered by a leave event.
	LeaveStations map[model.LeaveKind]model.StationID
}

// StationSpec is the construction-time description of a station; IDs are
// assigned by NewRuleSet in declaration order, starting at 1.
type StationSpec struct {
	Key            string
	Name           string
	DurationMonths int
	MinOccupancy   int
	MaxOccupancy   int
	Scope          model.Department
	LogicalKey     string
	Splittable     bool
	ModelAOnly     bool
}

// NewRuleSet builds an immutable rule set from station specs. Sequence and
// window rules reference stations by key and are resolved here.
func NewRuleSet(version string, effective model.Month, specs []StationSpec) (*RuleSet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("rule set %s: no stations", version)
	}
	if len(specs) >= 255 {
		return nil, fmt.Errorf("rule set %s: too many stations", version)
	}
	rs := &RuleSet{
		Version:       version,
		Effective:     effective,
		stations:      make([]model.Station, len(specs)+1),
		byKey:         make(map[string]model.StationID, len(specs)),
		Leave:         LeavePolicy{RotationAllotment: 14, WithinSyllabusCap: 6},
		LeaveStations: make(map[model.LeaveKind]model.StationID),
	}
	for i, sp := range specs {
		id := model.StationID(i + 1)
		if _, dup := rs.byKey[sp.Key]; dup {
			return nil, fmt.Errorf("rule set %s: duplicate station key %q", version, sp.Key)
		}
		logical := sp.LogicalKey
		if logical == "" {
			logical = sp.Key
		}
		maxOcc := sp.MaxOccupancy
		if maxOcc <= 0 {
			maxOcc = model.Unbounded
		}
		rs.stations[id] = model.Station{
			ID:             id,
			Key:            sp.Key,
			Name:           sp.Name,
			DurationMonths: sp.DurationMonths,
			MinOccupancy:   sp.MinOccupancy,
			MaxOccupancy:   maxOcc,
			Scope:          sp.Scope,
			LogicalKey:     logical,
			Splittable:     sp.Splittable,
			ModelAOnly:     sp.ModelAOnly,
		}
		rs.byKey[sp.Key] = id
	}
	return rs, nil
}

// Station returns the station for id; the zero Station for StationNone or
// out-of-range ids.
func (rs *RuleSet) Station(id model.StationID) model.Station {
	if int(id) <= 0 || int(id) >= len(rs.stations) {
		return model.Station{}
	}
	return rs.stations[id]
}

// StationByKey resolves a stable station key to its id in this version.
func (rs *RuleSet) StationByKey(key string) (model.StationID, bool) {
	id, ok := rs.byKey[key]
	return id, ok
}

// Stations returns all stations in id order.
func (rs *RuleSet) Stations() []model.Station {
	return rs.stations[1:]
}

// NumStations returns the number of stations excluding StationNone.
func (rs *RuleSet) NumStations() int { return len(rs.stations) - 1 }

// WindowsFor returns the window rules constraining the given station.
func (rs *RuleSet) WindowsFor(id model.StationID) []WindowRule {
	var out []WindowRule
	for _, w := range rs.Windows {
		if w.Station == id {
			out = append(out, w)
		}
	}
	return out
}

// IsLeaveStation reports whether id is one of the leave placeholders.
func (rs *RuleSet) IsLeaveStation(id model.StationID) bool {
	for _, lid := range rs.LeaveStations {
		if lid == id {
			return true
		}
	}
	return false
}

// DurationTargets returns the required months per station for a trainee of
// the given track and department. rotationMonths is the leave-adjusted
// rotation allotment. Stations outside the trainee's track or department
// get a zero target; assigning them at all is a violation.
func (rs *RuleSet) DurationTargets(track model.Track, dept model.Department, rotationMonths int) map[model.StationID]int {
	targets := make(map[model.StationID]int, rs.NumStations())
	for _, st := range rs.Stations() {
		if st.DurationMonths == 0 && st.ID != rs.RotationStation {
			continue
		}
		if !st.InTrack(track) || !st.EligibleFor(dept) {
			continue
		}
		dur := st.DurationMonths
		if st.ID == rs.RotationStation {
			dur = rotationMonths
		} else if track == model.TrackModelB && st.Key == KeyRotationGeneral {
			// The shorter track trims the generic rotation block by one
			// month so station durations still sum to the track length.
			dur--
		}
		if dur > 0 {
			targets[st.ID] = dur
		}
	}
	return targets
}
