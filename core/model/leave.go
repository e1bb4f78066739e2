package model

// LeaveKind classifies how a reported life event reshapes a trainee's
// syllabus target. Maternity leave is reported as LeaveWithinSyllabus
// (counts toward the rotation allotment up to the cap), unpaid leave as
// LeaveExtension (strictly extends the program).
type LeaveKind uint8

const (
	LeaveWithinSyllabus LeaveKind = iota
	LeaveExtension
)

func (k LeaveKind) String() string {
	if k == LeaveExtension {
		return "extension"
	}
	return "within_syllabus"
}

// LeaveEvent is a life event reported by an authorized caller. The solver
// never creates or moves these; it only receives the syllabus targets the
// leave processor derives from them.
type LeaveEvent struct {
	TraineeID string    `json:"trainee_id"`
	Start     Month     `json:"start"`
	Months    int       `json:"months"`
	Kind      LeaveKind `json:"kind"`
}
