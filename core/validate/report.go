package validate

import (
	"fmt"
	"strings"

	"github.com/medrota/rotaplan/core/model"
)

// Reason codes a constraint violation for callers. The first four mirror
// what the conflict explainer reports; DURATION_SHORTFALL is produced by
// full-state validation only.
type Reason string

const (
	ReasonCapacityExceeded  Reason = "CAPACITY_EXCEEDED"
	ReasonWindowMissed      Reason = "SYLLABUS_WINDOW_MISSED"
	ReasonAnchorConflict    Reason = "ANCHOR_CONFLICT"
	ReasonSequenceViolation Reason = "SEQUENCE_VIOLATION"
	ReasonDurationShortfall Reason = "DURATION_SHORTFALL"
)

// Violation pins one broken constraint to the (trainee, month, station)
// it implicates. TraineeID is empty for roster-wide capacity findings.
type Violation struct {
	Reason     Reason          `json:"reason"`
	TraineeID  string          `json:"trainee_id,omitempty"`
	Month      model.Month     `json:"month"`
	Station    model.StationID `json:"station"`
	StationKey string          `json:"station_key,omitempty"`
	Rule       string          `json:"rule"`
}

func (v Violation) String() string {
	who := v.TraineeID
	if who == "" {
		who = "*"
	}
	return fmt.Sprintf("%s: %s %s (%s)", v.Reason, who, v.Month, v.Rule)
}

// ConflictReport is the terminal diagnosis handed back on an infeasible
// solve or a rejected move: the set of mutually unsatisfiable constraints
// and the dominant reason code. Minimal is false when the explainer ran
// out of budget before proving minimality.
type ConflictReport struct {
	Reason  Reason      `json:"reason"`
	Items   []Violation `json:"items"`
	Minimal bool        `json:"minimal"`
	Message string      `json:"message,omitempty"`
}

// NewConflictReport builds a report whose dominant reason is the first
// item's.
func NewConflictReport(items []Violation, minimal bool) *ConflictReport {
	r := &ConflictReport{Items: items, Minimal: minimal}
	if len(items) > 0 {
		r.Reason = items[0].Reason
	}
	return r
}

func (r *ConflictReport) Error() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		parts = append(parts, it.String())
	}
	return fmt.Sprintf("%s: %s", r.Reason, strings.Join(parts, "; "))
}
