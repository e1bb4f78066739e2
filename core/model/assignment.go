package model

import "fmt"

// Assignment places one trainee at one station for one month. MonthIndex
// is relative to the trainee's own start month.
type Assignment struct {
	TraineeID  string    `json:"trainee_id"`
	MonthIndex int       `json:"month_index"`
	Station    StationID `json:"station"`
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s@%d->%d", a.TraineeID, a.MonthIndex, a.Station)
}

// Anchor is an assignment fixed by the caller. The solver treats it as a
// precondition: it is reproduced unchanged in every output or the solve is
// rejected before search.
type Anchor struct {
	Assignment
	// Note records why the cell was pinned; informational only.
	Note string `json:"note,omitempty"`
}
