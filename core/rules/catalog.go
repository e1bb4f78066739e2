package rules

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/medrota/rotaplan/core/model"
)

// Stable station keys used by the default catalog and by callers that
// reference stations across rule-set versions.
const (
	KeyOrientation      = "orientation"
	KeyMaternityIntro   = "maternity_intro"
	KeyHRPA             = "hrp_a"
	KeyHRPB             = "hrp_b"
	KeyBirth            = "birth"
	KeyGynecologyA      = "gynecology_a"
	KeyGynecologyB      = "gynecology_b"
	KeyMaternityER      = "maternity_er"
	KeyWomensER         = "womens_er"
	KeyGynecologyDay    = "gynecology_day"
	KeyMidwiferyDay     = "midwifery_day"
	KeyBasicSciences    = "basic_sciences"
	KeyRotationA        = "rotation_a"
	KeyStageA           = "stage_a"
	KeyRotationB        = "rotation_b"
	KeyStageB           = "stage_b"
	KeyDepartment       = "department"
	KeyIVF              = "ivf"
	KeyGynecoOncology   = "gyneco_oncology"
	KeyRotationGeneral  = "rotation_general"
	KeyMaternityERSuper = "maternity_er_supervisor"
	KeyMaternityLeave   = "maternity_leave"
	KeyUnpaidLeave      = "unpaid_leave"
)

// ErrNoRuleSetForDate is returned when no catalog version covers the
// requested month. A solve using that month cannot proceed.
var ErrNoRuleSetForDate = errors.New("no rule set effective for date")

// Catalog holds the versioned rule-set history. Versions are immutable
// once inserted; updates are new versions with a later effective month.
type Catalog struct {
	versions []*RuleSet // sorted by Effective ascending
}

// NewCatalog builds a catalog from the given versions.
func NewCatalog(versions ...*RuleSet) (*Catalog, error) {
	c := &Catalog{}
	for _, v := range versions {
		if err := c.Insert(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Insert adds a new immutable version. Duplicate effective months are
// rejected so "which rules applied when" stays provable.
func (c *Catalog) Insert(rs *RuleSet) error {
	if rs == nil {
		return fmt.Errorf("nil rule set")
	}
	for _, v := range c.versions {
		if v.Effective == rs.Effective {
			return fmt.Errorf("rule set version %s: effective month %s already covered by %s",
				rs.Version, rs.Effective, v.Version)
		}
	}
	c.versions = append(c.versions, rs)
	sort.Slice(c.versions, func(i, j int) bool {
		return c.versions[i].Effective < c.versions[j].Effective
	})
	return nil
}

// EffectiveRuleSet returns the latest version whose effective month is at
// or before m. Total and side-effect free.
func (c *Catalog) EffectiveRuleSet(m model.Month) (*RuleSet, error) {
	var found *RuleSet
	for _, v := range c.versions {
		if v.Effective > m {
			break
		}
		found = v
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRuleSetForDate, m)
	}
	return found, nil
}

// Version returns a rule set by version label.
func (c *Catalog) Version(label string) (*RuleSet, bool) {
	for _, v := range c.versions {
		if v.Version == label {
			return v, true
		}
	}
	return nil, false
}

// DefaultRuleSet builds the v1 OB/GYN syllabus: the 72-month Model A
// station table (Model B drops basic sciences and one generic rotation
// month), the three exam sequences and the Stage A/B calendar windows.
func DefaultRuleSet(version string, effective model.Month) *RuleSet {
	specs := []StationSpec{
		{Key: KeyOrientation, Name: "Orientation", DurationMonths: 1},
		{Key: KeyMaternityIntro, Name: "Maternity", DurationMonths: 1},
		{Key: KeyHRPA, Name: "HRP A", DurationMonths: 6, MinOccupancy: 1, MaxOccupancy: 2, Scope: model.DepartmentA, LogicalKey: "hrp", Splittable: true},
		{Key: KeyHRPB, Name: "HRP B", DurationMonths: 6, MinOccupancy: 1, MaxOccupancy: 2, Scope: model.DepartmentB, LogicalKey: "hrp", Splittable: true},
		{Key: KeyBirth, Name: "Birth", DurationMonths: 6, MinOccupancy: 3, MaxOccupancy: 4, Splittable: true},
		{Key: KeyGynecologyA, Name: "Gynecology A", DurationMonths: 6, MinOccupancy: 1, MaxOccupancy: 2, Scope: model.DepartmentA, LogicalKey: "gynecology", Splittable: true},
		{Key: KeyGynecologyB, Name: "Gynecology B", DurationMonths: 6, MinOccupancy: 1, MaxOccupancy: 2, Scope: model.DepartmentB, LogicalKey: "gynecology", Splittable: true},
		{Key: KeyMaternityER, Name: "Maternity ER", DurationMonths: 6, MinOccupancy: 2, MaxOccupancy: 4, Splittable: true},
		{Key: KeyWomensER, Name: "Womens ER", DurationMonths: 3, MinOccupancy: 1, MaxOccupancy: 3},
		{Key: KeyGynecologyDay, Name: "Gynecology Day", DurationMonths: 3, MinOccupancy: 1, MaxOccupancy: 2},
		{Key: KeyMidwiferyDay, Name: "Midwifery Day", DurationMonths: 3, MinOccupancy: 1, MaxOccupancy: 2},
		{Key: KeyBasicSciences, Name: "Basic Sciences", DurationMonths: 5, ModelAOnly: true},
		{Key: KeyRotationA, Name: "Rotation A", DurationMonths: 3},
		{Key: KeyStageA, Name: "Stage A", DurationMonths: 1},
		{Key: KeyRotationB, Name: "Rotation B", DurationMonths: 3},
		{Key: KeyStageB, Name: "Stage B", DurationMonths: 1},
		{Key: KeyDepartment, Name: "Department", DurationMonths: 14},
		{Key: KeyIVF, Name: "IVF", DurationMonths: 6, MinOccupancy: 2, MaxOccupancy: 4},
		{Key: KeyGynecoOncology, Name: "Gyneco-Oncology", DurationMonths: 2, MaxOccupancy: 2},
		{Key: KeyRotationGeneral, Name: "Rotation", DurationMonths: 2},
		{Key: KeyMaternityERSuper, Name: "Maternity ER Supervisor", DurationMonths: 0, MaxOccupancy: 1},
		{Key: KeyMaternityLeave, Name: "Maternity Leave", DurationMonths: 0},
		{Key: KeyUnpaidLeave, Name: "Unpaid Leave", DurationMonths: 0},
	}
	rs, err := NewRuleSet(version, effective, specs)
	if err != nil {
		// The built-in table is static; a construction failure is a
		// programming error.
		panic(err)
	}

	id := func(key string) model.StationID {
		sid, ok := rs.StationByKey(key)
		if !ok {
			panic(fmt.Sprintf("default rule set missing station %s", key))
		}
		return sid
	}

	rs.Sequences = []SequenceRule{
		{Before: id(KeyBasicSciences), After: id(KeyStageA)},
		{Before: id(KeyRotationA), After: id(KeyStageA), Immediate: true},
		{Before: id(KeyRotationB), After: id(KeyStageB), Immediate: true},
		// The ER supervisor month only makes sense after the Stage A exam.
		{Before: id(KeyStageA), After: id(KeyMaternityERSuper)},
	}
	rs.Windows = []WindowRule{
		// Stage A: June only, 3 to 4.5 years from start.
		{Station: id(KeyStageA), Months: []time.Month{time.June}, MinIndex: 36, MaxIndex: 54},
		// Stage B: November or March, anywhere in the last year of the
		// program, final month included.
		{Station: id(KeyStageB), Months: []time.Month{time.November, time.March}, MinIndex: 1, MaxIndex: 12, FromEnd: true},
	}
	rs.RotationStation = id(KeyDepartment)
	rs.LeaveStations = map[model.LeaveKind]model.StationID{
		model.LeaveWithinSyllabus: id(KeyMaternityLeave),
		model.LeaveExtension:      id(KeyUnpaidLeave),
	}
	return rs
}
