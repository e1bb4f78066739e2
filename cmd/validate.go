package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medrota/rotaplan/config"
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/qa/scenarios"
)

var (
	moveTrainee string
	moveIndex   int
	moveStation string
)

var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>",
	Short: "Validate a single proposed move against the scenario's matrix",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&moveTrainee, "trainee", "", "trainee identifier")
	validateCmd.Flags().IntVar(&moveIndex, "index", 0, "month index within the trainee's program")
	validateCmd.Flags().StringVar(&moveStation, "station", "", "station key to place")
	_ = validateCmd.MarkFlagRequired("trainee")
	_ = validateCmd.MarkFlagRequired("station")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	sid, ok := rs.StationByKey(moveStation)
	if !ok {
		return fmt.Errorf("unknown station %s", moveStation)
	}
	_, leaves, err := scenarioInputs(rs, sc)
	if err != nil {
		return err
	}

	rep, err := eng.ValidateMove(context.Background(), current, leaves, model.Assignment{
		TraineeID:  moveTrainee,
		MonthIndex: moveIndex,
		Station:    sid,
	})
	if err != nil {
		return err
	}
	if rep == nil {
		fmt.Printf("move accepted: %s@%d -> %s\n", moveTrainee, moveIndex, moveStation)
		return nil
	}
	fmt.Printf("move rejected [%s]:\n", rep.Reason)
	for _, it := range rep.Items {
		fmt.Printf("  %s\n", it)
	}
	return nil
}
