package model

import "fmt"

// Track is the syllabus variant a trainee is bound to at intake.
type Track uint8

const (
	TrackModelA Track = iota // 72 months, includes basic sciences
	TrackModelB              // 66 months
)

func (t Track) String() string {
	if t == TrackModelB {
		return "B"
	}
	return "A"
}

// BaseMonths returns the nominal syllabus length before leave adjustments.
func (t Track) BaseMonths() int {
	if t == TrackModelB {
		return 66
	}
	return 72
}

// Trainee is one member of the program roster. Trainees are created at
// intake and only deactivated at graduation, never removed, so ordinals
// into the schedule matrix stay stable.
type Trainee struct {
	ID         string
	Name       string
	Track      Track
	Department Department
	Start      Month
	Active     bool
}

// Validate checks roster fields the engine depends on.
func (t Trainee) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("trainee id must not be empty")
	}
	if t.Department != DepartmentA && t.Department != DepartmentB {
		return fmt.Errorf("trainee %s: department must be A or B", t.ID)
	}
	return nil
}

// MonthAt maps a trainee-relative month index to the absolute calendar
// month. Calendar-window rules are evaluated through this mapping.
func (t Trainee) MonthAt(index int) Month {
	return t.Start.Add(index)
}

// IndexOf maps an absolute calendar month back to the trainee-relative
// index. The result is negative for months before the trainee started.
func (t Trainee) IndexOf(m Month) int {
	return int(m - t.Start)
}
