package events

import (
	"time"

	"github.com/medrota/rotaplan/core/model"
)

// ResolveEvent is published after every resolve attempt, committed or
// not.
type ResolveEvent struct {
	Status   string
	Relaxed  bool
	Elapsed  time.Duration
	Trainees int
	// Reason carries the dominant conflict code on infeasible outcomes.
	Reason string
}

// MoveEvent is published when a proposed single-cell move is validated.
type MoveEvent struct {
	TraineeID string
	Month     model.Month
	Station   model.StationID
	Accepted  bool
	Reason    string
}

// OverrideEvent is published when a force-override resolve commits.
type OverrideEvent struct {
	Actor         string
	Justification string
	Stations      []model.StationID
}
