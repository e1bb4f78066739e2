package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/medrota/rotaplan/core/model"
)

type TraineeDef struct {
	ID         string `yaml:"id"`
	Track      string `yaml:"track"`
	Department string `yaml:"department"`
	Start      string `yaml:"start"`
}

func (t TraineeDef) ToModel() (model.Trainee, error) {
	start, err := model.ParseMonth(t.Start)
	if err != nil {
		return model.Trainee{}, fmt.Errorf("trainee %s: %w", t.ID, err)
	}
	tr := model.Trainee{ID: t.ID, Start: start, Active: true}
	switch t.Track {
	case "", "A":
		tr.Track = model.TrackModelA
	case "B":
		tr.Track = model.TrackModelB
	default:
		return model.Trainee{}, fmt.Errorf("trainee %s: unknown track %s", t.ID, t.Track)
	}
	switch t.Department {
	case "", "A":
		tr.Department = model.DepartmentA
	case "B":
		tr.Department = model.DepartmentB
	case "shared":
		tr.Department = model.DepartmentShared
	default:
		return model.Trainee{}, fmt.Errorf("trainee %s: unknown department %s", t.ID, t.Department)
	}
	return tr, nil
}

type AnchorDef struct {
	Trainee string `yaml:"trainee"`
	Index   int    `yaml:"index"`
	Station string `yaml:"station"`
}

type LeaveDef struct {
	Trainee string `yaml:"trainee"`
	Start   string `yaml:"start"`
	Months  int    `yaml:"months"`
	Kind    string `yaml:"kind"`
}

func (l LeaveDef) ToModel() (model.LeaveEvent, error) {
	start, err := model.ParseMonth(l.Start)
	if err != nil {
		return model.LeaveEvent{}, fmt.Errorf("leave for %s: %w", l.Trainee, err)
	}
	ev := model.LeaveEvent{TraineeID: l.Trainee, Start: start, Months: l.Months}
	switch l.Kind {
	case "", "within_syllabus":
		ev.Kind = model.LeaveWithinSyllabus
	case "extension":
		ev.Kind = model.LeaveExtension
	default:
		return model.LeaveEvent{}, fmt.Errorf("leave for %s: unknown kind %s", l.Trainee, l.Kind)
	}
	return ev, nil
}

type Expected struct {
	// Status is valid, infeasible or timeout.
	Status string `yaml:"status"`
	// Reason is the dominant conflict code on infeasible outcomes.
	Reason string `yaml:"reason,omitempty"`
	// Months checks a trainee's program length after leave ripple.
	Months map[string]int `yaml:"months,omitempty"`
}

type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Current     string       `yaml:"current"`
	BudgetMS    int          `yaml:"budget_ms,omitempty"`
	// RelaxMinimums drops every staffing minimum, for fixtures too small
	// to staff a whole hospital.
	RelaxMinimums bool         `yaml:"relax_minimums,omitempty"`
	Trainees      []TraineeDef `yaml:"trainees"`
	Anchors       []AnchorDef  `yaml:"anchors,omitempty"`
	Leaves        []LeaveDef   `yaml:"leaves,omitempty"`
	Expected      Expected     `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
