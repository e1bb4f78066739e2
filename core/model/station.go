package model

// StationID identifies a station inside one rule-set version. IDs are
// small consecutive integers assigned at rule-set construction so the
// schedule matrix can be scanned as a flat int slice. StationNone marks an
// unassigned cell.
type StationID uint8

// StationNone is the zero value for an empty matrix cell.
const StationNone StationID = 0

// Unbounded marks a capacity side with no limit.
const Unbounded = 1 << 20

// Department partitions the trainee cohort. Department-scoped stations are
// only eligible for trainees of the matching department.
type Department uint8

const (
	DepartmentShared Department = iota // station scope only, not a trainee value
	DepartmentA
	DepartmentB
)

func (d Department) String() string {
	switch d {
	case DepartmentA:
		return "A"
	case DepartmentB:
		return "B"
	case DepartmentShared:
		return "shared"
	}
	return "unknown"
}

// Station describes one clinical rotation and its occupancy rules.
type Station struct {
	ID             StationID
	Key            string // stable identifier, e.g. "hrp_a"
	Name           string
	DurationMonths int
	MinOccupancy   int
	MaxOccupancy   int
	// Scope restricts eligibility: DepartmentShared stations accept every
	// trainee, DepartmentA/B only their own cohort.
	Scope Department
	// LogicalKey groups department variants of the same logical station
	// (hrp_a and hrp_b both map to "hrp") for capacity summaries.
	LogicalKey string
	// Splittable stations may be assigned in non-consecutive blocks
	// without a hard violation; continuity is still preferred.
	Splittable bool
	// ModelAOnly stations exist only on the 72-month track
	// (basic sciences).
	ModelAOnly bool
}

// InTrack reports whether the station is part of the given syllabus track.
func (s Station) InTrack(t Track) bool {
	return !s.ModelAOnly || t == TrackModelA
}

// EligibleFor reports whether a trainee of the given department may be
// assigned to the station at all.
func (s Station) EligibleFor(d Department) bool {
	return s.Scope == DepartmentShared || s.Scope == d
}

// Bounded reports whether the station has a finite occupancy ceiling.
func (s Station) Bounded() bool { return s.MaxOccupancy < Unbounded }
