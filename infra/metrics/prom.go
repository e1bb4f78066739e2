package metrics

import (
	"strconv"

	coremetrics "github.com/medrota/rotaplan/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records scheduling events in Prometheus metrics.
type PromSink struct {
	resolves  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	moves     *prometheus.CounterVec
	overrides prometheus.Counter
	occupancy *prometheus.GaugeVec
}

// NewPromSink registers scheduling metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	resolves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotaplan_resolves_total",
		Help: "Total number of resolve attempts by outcome",
	}, []string{"status", "relaxed"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rotaplan_resolve_duration_seconds",
		Help:    "Wall time spent inside the solver per resolve",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"status"})
	moves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rotaplan_moves_total",
		Help: "Total number of validated move proposals",
	}, []string{"accepted"})
	overrides := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotaplan_overrides_total",
		Help: "Total number of committed capacity overrides",
	})
	occupancy := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rotaplan_station_occupancy",
		Help: "Trainees assigned to a station in the current month",
	}, []string{"station"})

	s := &PromSink{resolves: resolves, duration: duration, moves: moves, overrides: overrides, occupancy: occupancy}
	for _, c := range []prometheus.Collector{resolves, duration, moves, overrides, occupancy} {
		if err := register(reg, c, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector, s *PromSink) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return err
	}
	switch existing := are.ExistingCollector.(type) {
	case *prometheus.CounterVec:
		if c == s.resolves {
			s.resolves = existing
		} else {
			s.moves = existing
		}
	case *prometheus.HistogramVec:
		s.duration = existing
	case *prometheus.GaugeVec:
		s.occupancy = existing
	case prometheus.Counter:
		s.overrides = existing
	}
	return nil
}

// RecordResolve increments the outcome counter and observes solve time.
func (s *PromSink) RecordResolve(r coremetrics.ResolveSample) error {
	s.resolves.WithLabelValues(r.Status, strconv.FormatBool(r.Relaxed)).Inc()
	s.duration.WithLabelValues(r.Status).Observe(r.Elapsed.Seconds())
	return nil
}

// RecordMove counts move proposals by acceptance.
func (s *PromSink) RecordMove(m coremetrics.MoveSample) error {
	s.moves.WithLabelValues(strconv.FormatBool(m.Accepted)).Inc()
	return nil
}

// RecordOverride counts committed overrides.
func (s *PromSink) RecordOverride(coremetrics.OverrideSample) error {
	s.overrides.Inc()
	return nil
}

// RecordOccupancy sets the per-station gauge from the latest snapshot.
func (s *PromSink) RecordOccupancy(samples []coremetrics.OccupancySample) error {
	for _, o := range samples {
		s.occupancy.WithLabelValues(o.StationKey).Set(float64(o.Count))
	}
	return nil
}
