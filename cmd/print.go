package cmd

import (
	"fmt"

	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
	"github.com/medrota/rotaplan/core/solver"
)

// printMatrix writes the resolved matrix and its capacity summary to
// stdout, one trainee per block.
func printMatrix(res solver.Result, rs *rules.RuleSet) {
	st := res.State
	for ord := 0; ord < st.NumTrainees(); ord++ {
		tr := st.Trainee(ord)
		fmt.Printf("%s (%s, dept %s, start %s):\n", tr.ID, tr.Track, tr.Department, tr.Start)
		for idx := 0; idx < st.Months(ord); idx++ {
			sid := st.Get(ord, idx)
			key := "-"
			if sid != model.StationNone {
				key = rs.Station(sid).Key
			}
			fmt.Printf("  %s  %s\n", tr.MonthAt(idx), key)
		}
	}
	var outOfBounds int
	for _, c := range res.Capacity {
		if !c.WithinBounds() {
			outOfBounds++
			fmt.Printf("capacity: %s %s count=%d bounds=[%d,%d]\n",
				c.StationKey, c.Month, c.Count, c.Min, c.Max)
		}
	}
	if res.Relaxed {
		fmt.Println("note: continuity preferences were relaxed to find this matrix")
	}
	if outOfBounds == 0 {
		fmt.Printf("capacity: %d station-months, all within bounds\n", len(res.Capacity))
	}
}
