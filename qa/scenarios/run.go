package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/medrota/rotaplan/core/engine"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
	"github.com/medrota/rotaplan/core/solver"
)

// RunScenario builds an engine over the default rule set and resolves
// the scenario, then checks the expected outcome.
func RunScenario(t *testing.T, sc *Scenario) {
	rs := rules.DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	cat, err := rules.NewCatalog(rs)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	current, err := model.ParseMonth(sc.Current)
	if err != nil {
		t.Fatalf("current month: %v", err)
	}

	trainees := make([]model.Trainee, len(sc.Trainees))
	lengths := make([]int, len(sc.Trainees))
	for i, def := range sc.Trainees {
		tr, err := def.ToModel()
		if err != nil {
			t.Fatalf("scenario %s: %v", sc.Name, err)
		}
		trainees[i] = tr
		lengths[i] = tr.Track.BaseMonths()
	}
	st, err := schedule.New(trainees, lengths, current)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	eng, err := engine.New(cat, st, engine.Options{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	anchors := make([]model.Anchor, 0, len(sc.Anchors))
	for _, a := range sc.Anchors {
		sid, ok := rs.StationByKey(a.Station)
		if !ok {
			t.Fatalf("scenario %s: unknown station %s", sc.Name, a.Station)
		}
		anchors = append(anchors, model.Anchor{Assignment: model.Assignment{
			TraineeID: a.Trainee, MonthIndex: a.Index, Station: sid,
		}})
	}
	leaves := make([]model.LeaveEvent, 0, len(sc.Leaves))
	for _, l := range sc.Leaves {
		ev, err := l.ToModel()
		if err != nil {
			t.Fatalf("scenario %s: %v", sc.Name, err)
		}
		leaves = append(leaves, ev)
	}

	budget := 5 * time.Second
	if sc.BudgetMS > 0 {
		budget = time.Duration(sc.BudgetMS) * time.Millisecond
	}

	var res solver.Result
	if sc.RelaxMinimums {
		var overrides []solver.CapacityOverride
		for _, station := range rs.Stations() {
			if station.MinOccupancy > 0 {
				overrides = append(overrides, solver.CapacityOverride{Station: station.ID, Min: 0})
			}
		}
		res, err = eng.Override(context.Background(), engine.OverrideRequest{
			Actor:         "qa",
			Justification: "scenario fixture below staffing scale",
			Overrides:     overrides,
			Current:       current,
			Anchors:       anchors,
			Leaves:        leaves,
			Budget:        budget,
		})
	} else {
		res, err = eng.Resolve(context.Background(), engine.ResolveRequest{
			Actor:   "qa",
			Current: current,
			Anchors: anchors,
			Leaves:  leaves,
			Budget:  budget,
		})
	}
	if err != nil {
		t.Fatalf("scenario %s: resolve: %v", sc.Name, err)
	}

	if got := res.Status.String(); got != sc.Expected.Status {
		t.Fatalf("scenario %s: expected status %s, got %s (conflict: %v)",
			sc.Name, sc.Expected.Status, got, res.Conflict)
	}
	if sc.Expected.Reason != "" {
		if res.Conflict == nil {
			t.Fatalf("scenario %s: expected conflict %s, got none", sc.Name, sc.Expected.Reason)
		}
		if string(res.Conflict.Reason) != sc.Expected.Reason {
			t.Errorf("scenario %s: expected reason %s, got %s", sc.Name, sc.Expected.Reason, res.Conflict.Reason)
		}
	}
	for id, want := range sc.Expected.Months {
		snap := eng.Snapshot()
		ord, ok := snap.Ordinal(id)
		if !ok {
			t.Fatalf("scenario %s: unknown trainee %s in expectation", sc.Name, id)
		}
		if got := snap.Months(ord); got != want {
			t.Errorf("scenario %s: trainee %s program length %d, want %d", sc.Name, id, got, want)
		}
	}
}
