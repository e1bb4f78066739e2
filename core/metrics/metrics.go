package metrics

import (
	"time"

	"github.com/medrota/rotaplan/core/model"
)

// ResolveSample captures the outcome of a full-matrix resolve.
type ResolveSample struct {
	Status   string
	Relaxed  bool
	Elapsed  time.Duration
	Trainees int
	Reason   string
	Time     time.Time
}

// MetricsSink records resolve outcomes for observability purposes.
type MetricsSink interface {
	RecordResolve(s ResolveSample) error
}

// MoveSample captures a validated single-cell move proposal.
type MoveSample struct {
	TraineeID string
	Station   model.StationID
	Accepted  bool
	Reason    string
	Time      time.Time
}

// MoveRecorder records move validations.
type MoveRecorder interface {
	RecordMove(s MoveSample) error
}

// OccupancySample is a per-station headcount for one calendar month.
type OccupancySample struct {
	StationKey string
	Month      model.Month
	Count      int
	Max        int
	Time       time.Time
}

// OccupancyRecorder records station occupancy snapshots.
type OccupancyRecorder interface {
	RecordOccupancy(samples []OccupancySample) error
}

// OverrideSample captures a committed force-override resolve.
type OverrideSample struct {
	Actor    string
	Stations int
	Time     time.Time
}

// OverrideRecorder records capacity overrides.
type OverrideRecorder interface {
	RecordOverride(s OverrideSample) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordResolve(ResolveSample) error { return nil }

func (NopSink) RecordMove(MoveSample) error             { return nil }
func (NopSink) RecordOccupancy([]OccupancySample) error { return nil }
func (NopSink) RecordOverride(OverrideSample) error     { return nil }

var (
	_ MoveRecorder      = NopSink{}
	_ OccupancyRecorder = NopSink{}
	_ OverrideRecorder  = NopSink{}
)
