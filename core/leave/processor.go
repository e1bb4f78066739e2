// Package leave turns reported life events into revised syllabus targets.
// It owns the policy of how leave affects completion length and the
// rotation allotment; fitting months into slots stays with the solver.
package leave

import (
	"fmt"
	"sort"

	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
)

// Target is one trainee's leave-adjusted syllabus target. The solver
// receives these as duration constraints and never edits them.
type Target struct {
	TraineeID string
	// TotalMonths is the completion length including extensions.
	TotalMonths int
	// RotationMonths is the remaining department rotation allotment.
	RotationMonths int
	// LeaveMonths counts matrix cells occupied by leave placeholders.
	LeaveMonths int
}

// BaseTarget returns the untouched target for a trainee's track.
func BaseTarget(tr model.Trainee, policy rules.LeavePolicy) Target {
	return Target{
		TraineeID:      tr.ID,
		TotalMonths:    tr.Track.BaseMonths(),
		RotationMonths: policy.RotationAllotment,
	}
}

// Apply folds one leave event into the target:
//   - within-syllabus leave is absorbed by the rotation allotment up to
//     the policy cap; any excess beyond the cap extends the program;
//   - extension leave extends the program by its full duration.
//
// The cap is cumulative across events: deduction headroom is whatever the
// earlier events left of it.
func Apply(t Target, ev model.LeaveEvent, policy rules.LeavePolicy) (Target, error) {
	if ev.TraineeID != t.TraineeID {
		return t, fmt.Errorf("leave event for %s applied to target of %s", ev.TraineeID, t.TraineeID)
	}
	if ev.Months <= 0 {
		return t, fmt.Errorf("leave event for %s: non-positive duration %d", ev.TraineeID, ev.Months)
	}
	t.LeaveMonths += ev.Months
	switch ev.Kind {
	case model.LeaveExtension:
		t.TotalMonths += ev.Months
	case model.LeaveWithinSyllabus:
		used := policy.RotationAllotment - t.RotationMonths
		headroom := policy.WithinSyllabusCap - used
		if headroom < 0 {
			headroom = 0
		}
		deduct := ev.Months
		if deduct > headroom {
			deduct = headroom
		}
		t.RotationMonths -= deduct
		t.TotalMonths += ev.Months - deduct
	default:
		return t, fmt.Errorf("leave event for %s: unknown kind %d", ev.TraineeID, ev.Kind)
	}
	return t, nil
}

// Derive computes the target for one trainee from all of their events.
// Events are applied in chronological order so results are deterministic
// regardless of input order.
func Derive(tr model.Trainee, events []model.LeaveEvent, policy rules.LeavePolicy) (Target, error) {
	own := make([]model.LeaveEvent, 0, len(events))
	for _, ev := range events {
		if ev.TraineeID == tr.ID {
			own = append(own, ev)
		}
	}
	sort.Slice(own, func(i, j int) bool { return own[i].Start < own[j].Start })

	t := BaseTarget(tr, policy)
	var err error
	for _, ev := range own {
		if t, err = Apply(t, ev, policy); err != nil {
			return Target{}, err
		}
	}
	return t, nil
}

// DeriveAll computes targets for a whole roster, in roster order.
func DeriveAll(roster []model.Trainee, events []model.LeaveEvent, policy rules.LeavePolicy) ([]Target, error) {
	out := make([]Target, len(roster))
	for i, tr := range roster {
		t, err := Derive(tr, events, policy)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// ExpectedEnd returns the calendar month in which the trainee finishes
// under the adjusted target.
func ExpectedEnd(tr model.Trainee, t Target) model.Month {
	return tr.MonthAt(t.TotalMonths - 1)
}
