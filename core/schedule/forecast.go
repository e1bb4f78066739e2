package schedule

import (
	"github.com/medrota/rotaplan/core/model"
	"github.com/medrota/rotaplan/core/rules"
)

// IssueKind classifies a staffing problem found by the forecast.
type IssueKind uint8

const (
	IssueUnderstaffed IssueKind = iota
	IssueOverstaffed
	IssueNoCoverage
)

func (k IssueKind) String() string {
	switch k {
	case IssueOverstaffed:
		return "overstaffed"
	case IssueNoCoverage:
		return "no_coverage"
	}
	return "understaffed"
}

// Severity grades a capacity issue.
type Severity uint8

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "warning"
}

// CapacityIssue is one month/station staffing problem.
type CapacityIssue struct {
	Month      model.Month `json:"month"`
	StationKey string      `json:"station_key"`
	Kind       IssueKind   `json:"kind"`
	Severity   Severity    `json:"severity"`
	Count      int         `json:"count"`
	Bound      int         `json:"bound"`
	Delta      int         `json:"delta"`
}

// ForecastReport summarizes a lookahead capacity scan.
type ForecastReport struct {
	From     model.Month     `json:"from"`
	Months   int             `json:"months"`
	Issues   []CapacityIssue `json:"issues"`
	Critical int             `json:"critical"`
	Warnings int             `json:"warnings"`
}

// Forecast scans the lookahead window after the state's current month for
// under- and over-staffed stations. Minimum bounds are only meaningful in
// months the cohort actually covers, so months with no active trainees are
// skipped.
func Forecast(s *State, rs *rules.RuleSet, lookahead int) ForecastReport {
	tracker := TrackState(s)
	from := s.CurrentMonth().Add(1)
	report := ForecastReport{From: from, Months: lookahead}

	for off := 0; off < lookahead; off++ {
		m := from.Add(off)
		if s.ActiveAt(m) == 0 {
			continue
		}
		for _, st := range rs.Stations() {
			if rs.IsLeaveStation(st.ID) {
				continue
			}
			count := tracker.Occupancy(st.ID, m)
			switch {
			case count > st.MaxOccupancy:
				report.Issues = append(report.Issues, CapacityIssue{
					Month: m, StationKey: st.Key, Kind: IssueOverstaffed,
					Severity: SeverityWarning, Count: count,
					Bound: st.MaxOccupancy, Delta: count - st.MaxOccupancy,
				})
			case st.MinOccupancy > 0 && count == 0:
				report.Issues = append(report.Issues, CapacityIssue{
					Month: m, StationKey: st.Key, Kind: IssueNoCoverage,
					Severity: SeverityCritical, Count: 0,
					Bound: st.MinOccupancy, Delta: st.MinOccupancy,
				})
			case count < st.MinOccupancy:
				report.Issues = append(report.Issues, CapacityIssue{
					Month: m, StationKey: st.Key, Kind: IssueUnderstaffed,
					Severity: SeverityWarning, Count: count,
					Bound: st.MinOccupancy, Delta: st.MinOccupancy - count,
				})
			}
		}
	}
	for _, iss := range report.Issues {
		if iss.Severity == SeverityCritical {
			report.Critical++
		} else {
			report.Warnings++
		}
	}
	return report
}
