package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/medrota/rotaplan/config"
	"github.com/medrota/rotaplan/core/audit"
	"github.com/medrota/rotaplan/core/engine"
	coremetrics "github.com/medrota/rotaplan/core/metrics"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/schedule"
	"github.com/medrota/rotaplan/infra/logger"
	"github.com/medrota/rotaplan/qa/scenarios"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "rotaplan",
	Short: "Residency rotation scheduling engine",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// newEngine wires an engine from the runtime configuration and a
// scenario's roster.
func newEngine(cfg *config.Config, sc *scenarios.Scenario) (*engine.Engine, *rules.RuleSet, model.Month, error) {
	rs := rules.DefaultRuleSet("v1", model.MonthOf(2020, time.January))
	cat, err := rules.NewCatalog(rs)
	if err != nil {
		return nil, nil, 0, err
	}
	current, err := model.ParseMonth(sc.Current)
	if err != nil {
		return nil, nil, 0, err
	}

	trainees := make([]model.Trainee, len(sc.Trainees))
	lengths := make([]int, len(sc.Trainees))
	for i, def := range sc.Trainees {
		tr, err := def.ToModel()
		if err != nil {
			return nil, nil, 0, err
		}
		trainees[i] = tr
		lengths[i] = tr.Track.BaseMonths()
	}
	st, err := schedule.New(trainees, lengths, current)
	if err != nil {
		return nil, nil, 0, err
	}

	store, err := audit.NewStore(cfg.Audit)
	if err != nil {
		return nil, nil, 0, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, nil, 0, err
	}
	eng, err := engine.New(cat, st, engine.Options{
		Logger: logger.New("engine"),
		Audit:  store,
		Sink:   sink,
		Budget: cfg.Solver.Budget(),
	})
	if err != nil {
		return nil, nil, 0, err
	}
	return eng, rs, current, nil
}
