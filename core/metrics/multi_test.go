package metrics

import "testing"

// TestMultiSink ensures samples are forwarded to all sinks.

type recordSink struct {
	count int
}

func (r *recordSink) RecordResolve(ResolveSample) error {
	r.count++
	return nil
}

func (r *recordSink) RecordMove(MoveSample) error {
	r.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordResolve(ResolveSample{Status: "valid"}); err != nil {
		t.Fatalf("record resolve: %v", err)
	}
	if err := m.RecordMove(MoveSample{TraineeID: "t1"}); err != nil {
		t.Fatalf("record move: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("samples not forwarded")
	}
}

// TestMultiSinkSkipsNonRecorders verifies optional interfaces are probed
// per sink rather than required.
func TestMultiSinkSkipsNonRecorders(t *testing.T) {
	m := NewMultiSink(NopSink{})
	if err := m.RecordOccupancy([]OccupancySample{{StationKey: "ward"}}); err != nil {
		t.Fatalf("record occupancy: %v", err)
	}
	if err := m.RecordOverride(OverrideSample{Actor: "chief"}); err != nil {
		t.Fatalf("record override: %v", err)
	}
}
