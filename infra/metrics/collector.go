package metrics

import (
	"context"
	"time"

	"github.com/medrota/rotaplan/core/events"
	coremetrics "github.com/medrota/rotaplan/core/metrics"
	"github.com/medrota/rotaplan/internal/eventbus"
)

// StartEventCollector subscribes to the engine event buses and records
// metrics for published events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, buses Buses, sink coremetrics.MetricsSink) {
	if sink == nil {
		return
	}
	var (
		resolves <-chan events.ResolveEvent
		moves    <-chan events.MoveEvent
		override <-chan events.OverrideEvent
		cancels  []func()
	)
	if buses.Resolves != nil {
		ch, cancel := buses.Resolves.Subscribe(16)
		resolves, cancels = ch, append(cancels, cancel)
	}
	if buses.Moves != nil {
		ch, cancel := buses.Moves.Subscribe(16)
		moves, cancels = ch, append(cancels, cancel)
	}
	if buses.Overrides != nil {
		ch, cancel := buses.Overrides.Subscribe(16)
		override, cancels = ch, append(cancels, cancel)
	}
	go func() {
		defer func() {
			for _, c := range cancels {
				c()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-resolves:
				if !ok {
					return
				}
				_ = sink.RecordResolve(coremetrics.ResolveSample{
					Status:   ev.Status,
					Relaxed:  ev.Relaxed,
					Elapsed:  ev.Elapsed,
					Trainees: ev.Trainees,
					Reason:   ev.Reason,
					Time:     time.Now(),
				})
			case ev, ok := <-moves:
				if !ok {
					return
				}
				if r, ok := sink.(coremetrics.MoveRecorder); ok {
					_ = r.RecordMove(coremetrics.MoveSample{
						TraineeID: ev.TraineeID,
						Station:   ev.Station,
						Accepted:  ev.Accepted,
						Reason:    ev.Reason,
						Time:      time.Now(),
					})
				}
			case ev, ok := <-override:
				if !ok {
					return
				}
				if r, ok := sink.(coremetrics.OverrideRecorder); ok {
					_ = r.RecordOverride(coremetrics.OverrideSample{
						Actor:    ev.Actor,
						Stations: len(ev.Stations),
						Time:     time.Now(),
					})
				}
			}
		}
	}()
}

// Buses groups the engine event buses the collector listens on. Nil
// buses are skipped.
type Buses struct {
	Resolves  *eventbus.Bus[events.ResolveEvent]
	Moves     *eventbus.Bus[events.MoveEvent]
	Overrides *eventbus.Bus[events.OverrideEvent]
}
