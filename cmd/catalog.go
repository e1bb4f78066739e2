package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
)

var catalogMonth string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the rule set effective for a month",
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().StringVar(&catalogMonth, "month", "", "month in YYYY-MM form (defaults to the current month)")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	m := model.MonthOfTime(time.Now())
	if catalogMonth != "" {
		parsed, err := model.ParseMonth(catalogMonth)
		if err != nil {
			return err
		}
		m = parsed
	}
	cat, err := rules.NewCatalog(rules.DefaultRuleSet("v1", model.MonthOf(2020, time.January)))
	if err != nil {
		return err
	}
	rs, err := cat.EffectiveRuleSet(m)
	if err != nil {
		return err
	}

	fmt.Printf("rule set %s (effective %s)\n", rs.Version, rs.Effective)
	fmt.Printf("%-24s %8s %5s %5s %s\n", "station", "months", "min", "max", "scope")
	for _, st := range rs.Stations() {
		maxOcc := fmt.Sprintf("%d", st.MaxOccupancy)
		if !st.Bounded() {
			maxOcc = "-"
		}
		fmt.Printf("%-24s %8d %5d %5s %s\n", st.Key, st.DurationMonths, st.MinOccupancy, maxOcc, st.Scope)
	}
	if len(rs.Sequences) > 0 {
		fmt.Println("sequences:")
		for _, seq := range rs.Sequences {
			arrow := "before"
			if seq.Immediate {
				arrow = "immediately before"
			}
			fmt.Printf("  %s %s %s\n", rs.Station(seq.Before).Key, arrow, rs.Station(seq.After).Key)
		}
	}
	if len(rs.Windows) > 0 {
		fmt.Println("windows:")
		for _, w := range rs.Windows {
			fmt.Printf("  %s months=%v index=[%d,%d]\n", rs.Station(w.Station).Key, w.Months, w.MinIndex, w.MaxIndex)
		}
	}
	return nil
}
