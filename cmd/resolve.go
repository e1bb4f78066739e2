package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/medrota/rotaplan/config"
	"github.com/medrota/rotaplan/core/engine"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/solver"
	"github.com/medrota/rotaplan/infra/logger"
	"github.com/medrota/rotaplan/infra/metrics"
	"github.com/medrota/rotaplan/infra/notify"
	"github.com/medrota/rotaplan/qa/scenarios"
)

var resolveActor string

var resolveCmd = &cobra.Command{
	Use:   "resolve <scenario.yaml>",
	Short: "Resolve a scenario into a complete rotation matrix",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveActor, "actor", "cli", "actor recorded in the audit trail")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sc, err := scenarios.Load(args[0])
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	eng, rs, current, err := newEngine(cfg, sc)
	if err != nil {
		return err
	}
	defer eng.Buses().Close()

	if cfg.Metrics.PrometheusPort != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+cfg.Metrics.PrometheusPort); err != nil {
				logger.New("main").Errorf("prom server: %v", err)
			}
		}()
	}
	if cfg.Notify.Enabled {
		n, err := notify.New(cfg.Notify.MQTT)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		defer n.Close()
		notify.StartEventNotifier(ctx, n, eng.Buses().Resolves, eng.Buses().Overrides)
	}

	anchors, leaves, err := scenarioInputs(rs, sc)
	if err != nil {
		return err
	}
	budget := cfg.Solver.Budget()
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
		res, err = eng.Override(ctx, engine.OverrideRequest{
			Actor:         resolveActor,
			Justification: "scenario requested relaxed staffing minimums",
			Overrides:     overrides,
			Current:       current,
			Anchors:       anchors,
			Leaves:        leaves,
			Budget:        budget,
		})
	} else {
		res, err = eng.Resolve(ctx, engine.ResolveRequest{
			Actor:   resolveActor,
			Current: current,
			Anchors: anchors,
			Leaves:  leaves,
			Budget:  budget,
		})
	}
	if err != nil {
		return err
	}

	fmt.Printf("status: %s (%.2fs)\n", res.Status, res.Elapsed.Seconds())
	if res.Conflict != nil {
		fmt.Printf("conflict [%s, minimal=%t]:\n", res.Conflict.Reason, res.Conflict.Minimal)
		for _, it := range res.Conflict.Items {
			fmt.Printf("  %s\n", it)
		}
		return nil
	}
	if res.State == nil {
		return nil
	}
	printMatrix(res, rs)
	return nil
}

func scenarioInputs(rs *rules.RuleSet, sc *scenarios.Scenario) ([]model.Anchor, []model.LeaveEvent, error) {
	anchors := make([]model.Anchor, 0, len(sc.Anchors))
	for _, a := range sc.Anchors {
		sid, ok := rs.StationByKey(a.Station)
		if !ok {
			return nil, nil, fmt.Errorf("unknown station %s", a.Station)
		}
		anchors = append(anchors, model.Anchor{Assignment: model.Assignment{
			TraineeID: a.Trainee, MonthIndex: a.Index, Station: sid,
		}})
	}
	leaves := make([]model.LeaveEvent, 0, len(sc.Leaves))
	for _, l := range sc.Leaves {
		ev, err := l.ToModel()
		if err != nil {
			return nil, nil, err
		}
		leaves = append(leaves, ev)
	}
	return anchors, leaves, nil
}
