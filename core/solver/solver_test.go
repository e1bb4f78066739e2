package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrota/rotaplan/core/leave"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
	"github.com/medrota/rotaplan/core/validate"
)

func newTrainee(id string, dept model.Department, start model.Month) model.Trainee {
	return model.Trainee{ID: id, Track: model.TrackModelA, Department: dept, Start: start, Active: true}
}

// relaxedMins zeroes every staffing minimum; single-trainee fixtures
// cannot staff a whole hospital.
func relaxedMins(rs *rules.RuleSet) []CapacityOverride {
	var out []CapacityOverride
	for _, st := range rs.Stations() {
		if st.MinOccupancy > 0 {
			out = append(out, CapacityOverride{Station: st.ID, Min: 0})
		}
	}
	return out
}

func stationMonths(s *schedule.State, ord int) map[model.StationID]int {
	counts := make(map[model.StationID]int)
	for idx := 0; idx < s.Months(ord); idx++ {
		counts[s.Get(ord, idx)]++
	}
	return counts
}

func TestResolveSingleTraineeFullSyllabus(t *testing.T) {
	rs := rules.DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{72}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	res := New(nil).Resolve(context.Background(), Input{
		State:     st,
		Rules:     rs,
		Current:   model.MonthOf(2023, time.December),
		Budget:    5 * time.Second,
		Overrides: relaxedMins(rs),
	})
	require.Equal(t, StatusValid, res.Status, "conflict: %v", res.Conflict)
	require.NotNil(t, res.State)

	// Every month assigned, and station totals match the Model A table.
	counts := stationMonths(res.State, 0)
	assert.Zero(t, counts[model.StationNone])
	targets := rs.DurationTargets(tr.Track, tr.Department, rs.Leave.RotationAllotment)
	for sid, want := range targets {
		assert.Equal(t, want, counts[sid], "station %s", rs.Station(sid).Key)
	}

	// Stage A landed on a June inside the 36..54 band, right after the
	// Stage A rotation.
	stageA, _ := rs.StationByKey(rules.KeyStageA)
	rotA, _ := rs.StationByKey(rules.KeyRotationA)
	idx := -1
	for i := 0; i < res.State.Months(0); i++ {
		if res.State.Get(0, i) == stageA {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 36)
	require.LessOrEqual(t, idx, 54)
	assert.Equal(t, time.June, tr.MonthAt(idx).Calendar())
	assert.Equal(t, rotA, res.State.Get(0, idx-1))

	// The full-state validator agrees, staffing minimums aside.
	checker := validate.New(rs, []leave.Target{{TraineeID: "t1", TotalMonths: 72, RotationMonths: 14}})
	for _, v := range checker.Check(res.State) {
		assert.Equal(t, validate.ReasonCapacityExceeded, v.Reason, "unexpected violation: %s", v)
	}
}

func TestResolveInfeasibleMinimumStaffing(t *testing.T) {
	rs, err := rules.NewRuleSet("v1", model.MonthOf(2020, time.January), []rules.StationSpec{
		{Key: "ward", Name: "Ward", DurationMonths: 3},
		{Key: "icu", Name: "ICU", DurationMonths: 2, MinOccupancy: 2, MaxOccupancy: 2},
		{Key: "exam", Name: "Exam", DurationMonths: 1},
	})
	require.NoError(t, err)
	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{6}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	res := New(nil).Resolve(context.Background(), Input{
		State:   st,
		Rules:   rs,
		Targets: []leave.Target{{TraineeID: "t1", TotalMonths: 6, RotationMonths: 14}},
		Current: model.MonthOf(2023, time.December),
		Budget:  time.Second,
	})
	require.Equal(t, StatusInfeasible, res.Status)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, validate.ReasonCapacityExceeded, res.Conflict.Reason)
	assert.Equal(t, "icu", res.Conflict.Items[0].StationKey)
	assert.NotZero(t, res.Conflict.Items[0].Month)
}

func TestResolveAnchorConflictFailsFast(t *testing.T) {
	rs := rules.DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{72}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	hrpB, _ := rs.StationByKey(rules.KeyHRPB)
	started := time.Now()
	res := New(nil).Resolve(context.Background(), Input{
		State:   st,
		Rules:   rs,
		Anchors: []model.Anchor{{Assignment: model.Assignment{TraineeID: "t1", MonthIndex: 10, Station: hrpB}}},
		Current: model.MonthOf(2023, time.December),
		Budget:  10 * time.Second,
	})
	require.Equal(t, StatusInfeasible, res.Status)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, validate.ReasonAnchorConflict, res.Conflict.Reason)
	assert.Equal(t, rules.KeyHRPB, res.Conflict.Items[0].StationKey)
	assert.Equal(t, model.MonthOf(2024, time.November), res.Conflict.Items[0].Month)
	// Rejected before any search ran.
	assert.Less(t, time.Since(started), time.Second)
}

func smallSet(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.NewRuleSet("v1", model.MonthOf(2020, time.January), []rules.StationSpec{
		{Key: "ward", Name: "Ward", DurationMonths: 3, MaxOccupancy: 2},
		{Key: "prep", Name: "Prep", DurationMonths: 2},
		{Key: "exam", Name: "Exam", DurationMonths: 1},
	})
	require.NoError(t, err)
	prep, _ := rs.StationByKey("prep")
	exam, _ := rs.StationByKey("exam")
	rs.Sequences = []rules.SequenceRule{{Before: prep, After: exam, Immediate: true}}
	rs.Windows = []rules.WindowRule{{Station: exam, Months: []time.Month{time.June}, MinIndex: 0, MaxIndex: 5}}
	return rs
}

func smallTargets(ids ...string) []leave.Target {
	out := make([]leave.Target, len(ids))
	for i, id := range ids {
		out[i] = leave.Target{TraineeID: id, TotalMonths: 6, RotationMonths: 14}
	}
	return out
}

func TestResolveHonorsAnchors(t *testing.T) {
	rs := smallSet(t)
	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{6}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	prep, _ := rs.StationByKey("prep")
	exam, _ := rs.StationByKey("exam")
	res := New(nil).Resolve(context.Background(), Input{
		State:   st,
		Rules:   rs,
		Targets: smallTargets("t1"),
		Anchors: []model.Anchor{{Assignment: model.Assignment{TraineeID: "t1", MonthIndex: 0, Station: prep}}},
		Current: model.MonthOf(2023, time.December),
		Budget:  time.Second,
	})
	require.Equal(t, StatusValid, res.Status, "conflict: %v", res.Conflict)
	assert.Equal(t, prep, res.State.Get(0, 0))
	// Exam still lands on June, directly after the second prep month.
	assert.Equal(t, exam, res.State.Get(0, 5))
	assert.Equal(t, prep, res.State.Get(0, 4))
}

func TestResolvePreservesCommittedPast(t *testing.T) {
	rs := smallSet(t)
	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{6}, model.MonthOf(2024, time.March))
	require.NoError(t, err)
	ward, _ := rs.StationByKey("ward")
	for idx := 0; idx < 3; idx++ {
		require.NoError(t, st.Set(0, idx, ward))
	}

	res := New(nil).Resolve(context.Background(), Input{
		State:   st,
		Rules:   rs,
		Targets: smallTargets("t1"),
		Current: model.MonthOf(2024, time.March),
		Budget:  time.Second,
	})
	require.Equal(t, StatusValid, res.Status, "conflict: %v", res.Conflict)
	for idx := 0; idx < 3; idx++ {
		assert.Equal(t, ward, res.State.Get(0, idx))
	}
	// The input state itself is untouched.
	assert.Equal(t, model.StationNone, st.Get(0, 4))
}

func TestResolveLeaveRipple(t *testing.T) {
	rs := rules.DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{72}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	res := New(nil).Resolve(context.Background(), Input{
		State: st,
		Rules: rs,
		Leaves: []model.LeaveEvent{{
			TraineeID: "t1", Start: model.MonthOf(2026, time.March), Months: 8, Kind: model.LeaveWithinSyllabus,
		}},
		Current:   model.MonthOf(2023, time.December),
		Budget:    5 * time.Second,
		Overrides: relaxedMins(rs),
	})
	require.Equal(t, StatusValid, res.Status, "conflict: %v", res.Conflict)

	// 8 months of leave: 6 absorbed by the rotation allotment, 2 extend
	// the program to 74 months.
	require.Equal(t, 74, res.State.Months(0))
	matLeave, _ := rs.StationByKey(rules.KeyMaternityLeave)
	for idx := 26; idx < 34; idx++ {
		assert.Equal(t, matLeave, res.State.Get(0, idx), "index %d", idx)
	}
	dept, _ := rs.StationByKey(rules.KeyDepartment)
	assert.Equal(t, 8, stationMonths(res.State, 0)[dept])
}

func TestResolveDeterministic(t *testing.T) {
	rs, err := rules.NewRuleSet("v1", model.MonthOf(2020, time.January), []rules.StationSpec{
		{Key: "ward", Name: "Ward", DurationMonths: 3, MaxOccupancy: 1},
		{Key: "lab", Name: "Lab", DurationMonths: 3},
	})
	require.NoError(t, err)
	roster := []model.Trainee{
		newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January)),
		newTrainee("t2", model.DepartmentB, model.MonthOf(2024, time.January)),
	}
	input := func() Input {
		st, err := schedule.New(roster, []int{6, 6}, model.MonthOf(2023, time.December))
		require.NoError(t, err)
		return Input{
			State:   st,
			Rules:   rs,
			Targets: smallTargets("t1", "t2"),
			Current: model.MonthOf(2023, time.December),
			Budget:  time.Second,
		}
	}

	first := New(nil).Resolve(context.Background(), input())
	second := New(nil).Resolve(context.Background(), input())
	require.Equal(t, StatusValid, first.Status)
	require.Equal(t, StatusValid, second.Status)
	for ord := 0; ord < 2; ord++ {
		for idx := 0; idx < 6; idx++ {
			assert.Equal(t, first.State.Get(ord, idx), second.State.Get(ord, idx))
		}
	}
	// Ward holds one trainee at a time.
	occ := schedule.TrackState(first.State)
	ward, _ := rs.StationByKey("ward")
	for m := model.MonthOf(2024, time.January); m <= model.MonthOf(2024, time.June); m++ {
		assert.LessOrEqual(t, occ.Occupancy(ward, m), 1)
	}
}

func TestResolveTimeoutKeepsCommitUntouched(t *testing.T) {
	// Ten trainees all need the single-slot exam in the same June; only
	// one can have it. The search cannot refute that in its budget.
	rs, err := rules.NewRuleSet("v1", model.MonthOf(2020, time.January), []rules.StationSpec{
		{Key: "ward", Name: "Ward", DurationMonths: 4},
		{Key: "exam", Name: "Exam", DurationMonths: 1, MaxOccupancy: 1},
		{Key: "lab", Name: "Lab", DurationMonths: 1},
	})
	require.NoError(t, err)
	exam, _ := rs.StationByKey("exam")
	rs.Windows = []rules.WindowRule{{Station: exam, Months: []time.Month{time.June}, MinIndex: 0, MaxIndex: 10}}

	var roster []model.Trainee
	var ids []string
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		roster = append(roster, newTrainee(id, model.DepartmentA, model.MonthOf(2024, time.January)))
		ids = append(ids, id)
	}
	lengths := make([]int, len(roster))
	for i := range lengths {
		lengths[i] = 6
	}
	st, err := schedule.New(roster, lengths, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	res := New(nil).Resolve(context.Background(), Input{
		State:   st,
		Rules:   rs,
		Targets: smallTargets(ids...),
		Current: model.MonthOf(2023, time.December),
		Budget:  300 * time.Millisecond,
	})
	assert.Equal(t, StatusTimeout, res.Status)
	assert.Nil(t, res.State)
	// The committed state is still empty.
	assert.Equal(t, model.StationNone, st.Get(0, 0))
}

func TestResolveExplainsConflictSet(t *testing.T) {
	// Exam may only sit in the first month, but must follow prep: no
	// order satisfies both.
	rs, err := rules.NewRuleSet("v1", model.MonthOf(2020, time.January), []rules.StationSpec{
		{Key: "ward", Name: "Ward", DurationMonths: 3},
		{Key: "prep", Name: "Prep", DurationMonths: 2},
		{Key: "exam", Name: "Exam", DurationMonths: 1},
	})
	require.NoError(t, err)
	prep, _ := rs.StationByKey("prep")
	exam, _ := rs.StationByKey("exam")
	rs.Sequences = []rules.SequenceRule{{Before: prep, After: exam}}
	rs.Windows = []rules.WindowRule{{Station: exam, MinIndex: 0, MaxIndex: 0}}

	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{6}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	res := New(nil).Resolve(context.Background(), Input{
		State:   st,
		Rules:   rs,
		Targets: smallTargets("t1"),
		Current: model.MonthOf(2023, time.December),
		Budget:  time.Second,
	})
	require.Equal(t, StatusInfeasible, res.Status)
	require.NotNil(t, res.Conflict)
	require.Len(t, res.Conflict.Items, 2)
	assert.True(t, res.Conflict.Minimal)
	reasons := []validate.Reason{res.Conflict.Items[0].Reason, res.Conflict.Items[1].Reason}
	assert.Contains(t, reasons, validate.ReasonWindowMissed)
	assert.Contains(t, reasons, validate.ReasonSequenceViolation)
}

func TestResolveLPSolverFailure(t *testing.T) {
	orig := lpSolve
	lpSolve = func([]float64, float64) error { return errors.New("simplex blew up") }
	defer func() { lpSolve = orig }()

	rs := smallSet(t)
	tr := newTrainee("t1", model.DepartmentA, model.MonthOf(2024, time.January))
	st, err := schedule.New([]model.Trainee{tr}, []int{6}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	res := New(nil).Resolve(context.Background(), Input{
		State:   st,
		Rules:   rs,
		Targets: smallTargets("t1"),
		Current: model.MonthOf(2023, time.December),
		Budget:  time.Second,
	})
	require.Equal(t, StatusInfeasible, res.Status)
	assert.Equal(t, validate.ReasonCapacityExceeded, res.Conflict.Reason)
}
