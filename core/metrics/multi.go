package metrics

// MultiSink fans samples out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordResolve forwards the sample to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordResolve(s ResolveSample) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordResolve(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordMove forwards move samples to sinks that record them.
func (m *MultiSink) RecordMove(s MoveSample) error {
	for _, sink := range m.Sinks {
		if rec, ok := sink.(MoveRecorder); ok {
			if err := rec.RecordMove(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOccupancy forwards occupancy snapshots to sinks that record them.
func (m *MultiSink) RecordOccupancy(samples []OccupancySample) error {
	for _, sink := range m.Sinks {
		if rec, ok := sink.(OccupancyRecorder); ok {
			if err := rec.RecordOccupancy(samples); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOverride forwards override samples to sinks that record them.
func (m *MultiSink) RecordOverride(s OverrideSample) error {
	for _, sink := range m.Sinks {
		if rec, ok := sink.(OverrideRecorder); ok {
			if err := rec.RecordOverride(s); err != nil {
				return err
			}
		}
	}
	return nil
}
