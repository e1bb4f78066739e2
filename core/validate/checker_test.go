package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrota/rotaplan/core/leave"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
)

// smallRuleSet keeps tests readable: three stations, one sequence, one
// window, a 6-month track.
func smallRuleSet(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.NewRuleSet("test", model.MonthOf(2020, time.January), []rules.StationSpec{
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

func smallState(t *testing.T, rs *rules.RuleSet) *schedule.State {
	t.Helper()
	roster := []model.Trainee{{
		ID: "t1", Track: model.TrackModelA, Department: model.DepartmentA,
		Start: model.MonthOf(2024, time.January), Active: true,
	}}
	s, err := schedule.New(roster, []int{6}, model.MonthOf(2023, time.December))
	require.NoError(t, err)
	return s
}

// targetsFor builds targets whose total matches the small rule set.
func targetsFor(rs *rules.RuleSet) []leave.Target {
	return []leave.Target{{TraineeID: "t1", TotalMonths: 6, RotationMonths: rs.Leave.RotationAllotment}}
}

func fill(t *testing.T, s *schedule.State, rs *rules.RuleSet, keys ...string) {
	t.Helper()
	for i, key := range keys {
		id, ok := rs.StationByKey(key)
		require.True(t, ok, key)
		require.NoError(t, s.Set(0, i, id))
	}
}

func TestCheckValidState(t *testing.T) {
	rs := smallRuleSet(t)
	s := smallState(t, rs)
	// ward x3, prep x2, exam in June (index 5).
	fill(t, s, rs, "ward", "ward", "ward", "prep", "prep", "exam")

	c := New(rs, targetsFor(rs))
	assert.Empty(t, c.Check(s))
}

func TestCheckFindsDurationShortfall(t *testing.T) {
	rs := smallRuleSet(t)
	s := smallState(t, rs)
	fill(t, s, rs, "ward", "ward", "ward", "ward", "prep", "exam")

	c := New(rs, targetsFor(rs))
	violations := c.Check(s)
	require.NotEmpty(t, violations)
	var reasons []Reason
	for _, v := range violations {
		reasons = append(reasons, v.Reason)
	}
	assert.Contains(t, reasons, ReasonDurationShortfall)
	// Broken immediacy: prep ends at index 4, exam at 5 is fine, but
	// ward got 4 months and prep only 1.
}

func TestCheckFindsSequenceViolation(t *testing.T) {
	rs := smallRuleSet(t)
	s := smallState(t, rs)
	// exam before prep finishes.
	fill(t, s, rs, "prep", "ward", "ward", "ward", "prep", "exam")

	c := New(rs, targetsFor(rs))
	var found bool
	for _, v := range c.Check(s) {
		if v.Reason == ReasonSequenceViolation {
			found = true
			assert.Equal(t, "t1", v.TraineeID)
		}
	}
	assert.True(t, found)
}

func TestCheckFindsWindowMiss(t *testing.T) {
	rs := smallRuleSet(t)
	s := smallState(t, rs)
	// exam at index 4 is May, not June.
	fill(t, s, rs, "ward", "ward", "ward", "prep", "exam", "prep")

	c := New(rs, targetsFor(rs))
	var found bool
	for _, v := range c.Check(s) {
		if v.Reason == ReasonWindowMissed {
			found = true
			assert.Equal(t, model.MonthOf(2024, time.May), v.Month)
		}
	}
	assert.True(t, found)
}

func TestCheckMoveAnchoredCell(t *testing.T) {
	rs := smallRuleSet(t)
	s := smallState(t, rs)
	ward, _ := rs.StationByKey("ward")
	prep, _ := rs.StationByKey("prep")
	s.SetAnchors([]model.Anchor{{Assignment: model.Assignment{TraineeID: "t1", MonthIndex: 2, Station: ward}}})

	c := New(rs, targetsFor(rs))
	rep := c.CheckMove(s, model.Assignment{TraineeID: "t1", MonthIndex: 2, Station: prep})
	require.NotNil(t, rep)
	assert.Equal(t, ReasonAnchorConflict, rep.Reason)
	assert.Equal(t, model.MonthOf(2024, time.March), rep.Items[0].Month)
}

func TestCheckMoveDepartmentScope(t *testing.T) {
	rs := rules.DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	roster := []model.Trainee{{
		ID: "t1", Track: model.TrackModelA, Department: model.DepartmentA,
		Start: model.MonthOf(2024, time.January), Active: true,
	}}
	s, err := schedule.New(roster, []int{72}, model.MonthOf(2023, time.December))
	require.NoError(t, err)

	hrpB, _ := rs.StationByKey(rules.KeyHRPB)
	c := New(rs, nil)
	rep := c.CheckMove(s, model.Assignment{TraineeID: "t1", MonthIndex: 4, Station: hrpB})
	require.NotNil(t, rep)
	assert.Equal(t, ReasonAnchorConflict, rep.Reason)
	assert.Equal(t, rules.KeyHRPB, rep.Items[0].StationKey)
	assert.Equal(t, model.MonthOf(2024, time.May), rep.Items[0].Month)
}

func TestCheckMoveSequence(t *testing.T) {
	rs := smallRuleSet(t)
	rs.Windows = nil
	s := smallState(t, rs)
	prep, _ := rs.StationByKey("prep")
	exam, _ := rs.StationByKey("exam")
	require.NoError(t, s.Set(0, 3, prep))
	require.NoError(t, s.Set(0, 4, prep))

	c := New(rs, targetsFor(rs))

	// exam ahead of the committed prep block.
	rep := c.CheckMove(s, model.Assignment{TraineeID: "t1", MonthIndex: 0, Station: exam})
	require.NotNil(t, rep)
	assert.Equal(t, ReasonSequenceViolation, rep.Reason)
	assert.Equal(t, "exam", rep.Items[0].StationKey)

	// exam after the block is fine.
	assert.Nil(t, c.CheckMove(s, model.Assignment{TraineeID: "t1", MonthIndex: 5, Station: exam}))

	// prep behind a committed exam month breaks the same rule.
	s2 := smallState(t, rs)
	require.NoError(t, s2.Set(0, 1, exam))
	rep = c.CheckMove(s2, model.Assignment{TraineeID: "t1", MonthIndex: 3, Station: prep})
	require.NotNil(t, rep)
	assert.Equal(t, ReasonSequenceViolation, rep.Reason)
}

func TestCheckMoveUnknownStation(t *testing.T) {
	rs := smallRuleSet(t)
	s := smallState(t, rs)

	c := New(rs, targetsFor(rs))
	for _, id := range []model.StationID{model.StationNone, 99} {
		rep := c.CheckMove(s, model.Assignment{TraineeID: "t1", MonthIndex: 0, Station: id})
		require.NotNil(t, rep)
		assert.Equal(t, ReasonAnchorConflict, rep.Reason)
		assert.Contains(t, rep.Items[0].Rule, "unknown station")
	}
}

func TestCheckMoveCapacity(t *testing.T) {
	rs := smallRuleSet(t)
	ward, _ := rs.StationByKey("ward")
	roster := []model.Trainee{
		{ID: "t1", Track: model.TrackModelA, Department: model.DepartmentA, Start: model.MonthOf(2024, time.January), Active: true},
		{ID: "t2", Track: model.TrackModelA, Department: model.DepartmentA, Start: model.MonthOf(2024, time.January), Active: true},
		{ID: "t3", Track: model.TrackModelA, Department: model.DepartmentB, Start: model.MonthOf(2024, time.January), Active: true},
	}
	s, err := schedule.New(roster, []int{6, 6, 6}, model.MonthOf(2023, time.December))
	require.NoError(t, err)
	require.NoError(t, s.Set(0, 0, ward))
	require.NoError(t, s.Set(1, 0, ward))

	c := New(rs, nil)
	rep := c.CheckMove(s, model.Assignment{TraineeID: "t3", MonthIndex: 0, Station: ward})
	require.NotNil(t, rep)
	assert.Equal(t, ReasonCapacityExceeded, rep.Reason)

	// Re-proposing an existing assignment does not double count.
	assert.Nil(t, c.CheckMove(s, model.Assignment{TraineeID: "t1", MonthIndex: 0, Station: ward}))
}
