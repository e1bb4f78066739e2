package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrota/rotaplan/core/model"
)

func TestEffectiveRuleSet(t *testing.T) {
	v1 := DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	v2 := DefaultRuleSet("v2", model.MonthOf(2024, time.July))
	cat, err := NewCatalog(v1, v2)
	require.NoError(t, err)

	rs, err := cat.EffectiveRuleSet(model.MonthOf(2023, time.March))
	require.NoError(t, err)
	assert.Equal(t, "v1", rs.Version)

	rs, err = cat.EffectiveRuleSet(model.MonthOf(2024, time.July))
	require.NoError(t, err)
	assert.Equal(t, "v2", rs.Version)

	_, err = cat.EffectiveRuleSet(model.MonthOf(2019, time.December))
	assert.True(t, errors.Is(err, ErrNoRuleSetForDate))
}

func TestCatalogRejectsDuplicateEffectiveMonth(t *testing.T) {
	eff := model.MonthOf(2020, time.January)
	cat, err := NewCatalog(DefaultRuleSet("v1", eff))
	require.NoError(t, err)
	assert.Error(t, cat.Insert(DefaultRuleSet("v1b", eff)))
}

func TestDurationTargetsSumToTrackLength(t *testing.T) {
	rs := DefaultRuleSet("v1", model.MonthOf(2020, time.January))

	cases := []struct {
		track model.Track
		dept  model.Department
		want  int
	}{
		{model.TrackModelA, model.DepartmentA, 72},
		{model.TrackModelA, model.DepartmentB, 72},
		{model.TrackModelB, model.DepartmentA, 66},
		{model.TrackModelB, model.DepartmentB, 66},
	}
	for _, c := range cases {
		targets := rs.DurationTargets(c.track, c.dept, rs.Leave.RotationAllotment)
		sum := 0
		for _, months := range targets {
			sum += months
		}
		assert.Equalf(t, c.want, sum, "track %s dept %s", c.track, c.dept)
	}
}

func TestDurationTargetsDepartmentScoping(t *testing.T) {
	rs := DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	hrpA, _ := rs.StationByKey(KeyHRPA)
	hrpB, _ := rs.StationByKey(KeyHRPB)

	targets := rs.DurationTargets(model.TrackModelA, model.DepartmentA, 14)
	assert.Equal(t, 6, targets[hrpA])
	assert.Zero(t, targets[hrpB])

	targets = rs.DurationTargets(model.TrackModelA, model.DepartmentB, 14)
	assert.Zero(t, targets[hrpA])
	assert.Equal(t, 6, targets[hrpB])
}

func TestWindowRuleStageA(t *testing.T) {
	rs := DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	stageA, ok := rs.StationByKey(KeyStageA)
	require.True(t, ok)
	windows := rs.WindowsFor(stageA)
	require.Len(t, windows, 1)
	w := windows[0]

	assert.True(t, w.AllowsMonth(model.MonthOf(2023, time.June)))
	assert.False(t, w.AllowsMonth(model.MonthOf(2023, time.May)))
	assert.True(t, w.AllowsIndex(36, 72))
	assert.True(t, w.AllowsIndex(54, 72))
	assert.False(t, w.AllowsIndex(35, 72))
	assert.False(t, w.AllowsIndex(55, 72))
}

func TestWindowRuleStageBFromEnd(t *testing.T) {
	rs := DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	stageB, _ := rs.StationByKey(KeyStageB)
	w := rs.WindowsFor(stageB)[0]

	// Last year of a 72-month program: indices 60..71.
	assert.True(t, w.AllowsIndex(60, 72))
	assert.True(t, w.AllowsIndex(71, 72))
	assert.False(t, w.AllowsIndex(59, 72))

	// An extended target shifts the band forward.
	assert.True(t, w.AllowsIndex(62, 74))
	assert.False(t, w.AllowsIndex(61, 74))
}
