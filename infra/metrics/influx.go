package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/medrota/rotaplan/core/metrics"
	"github.com/medrota/rotaplan/infra/logger"
)

// InfluxSink writes scheduling events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordResolve writes the resolve outcome as a point.
func (s *InfluxSink) RecordResolve(r coremetrics.ResolveSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("resolve_event").
		AddTag("status", r.Status).
		AddTag("relaxed", strconv.FormatBool(r.Relaxed)).
		AddTag("component", "engine").
		AddField("elapsed_ms", r.Elapsed.Seconds()*1000).
		AddField("trainees", r.Trainees).
		AddField("reason", r.Reason).
		SetTime(stamp(r.Time))
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMove writes a move validation point.
func (s *InfluxSink) RecordMove(m coremetrics.MoveSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("move_event").
		AddTag("trainee_id", m.TraineeID).
		AddTag("accepted", strconv.FormatBool(m.Accepted)).
		AddTag("component", "engine").
		AddField("station", int(m.Station)).
		AddField("reason", m.Reason).
		SetTime(stamp(m.Time))
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOverride writes a committed override point.
func (s *InfluxSink) RecordOverride(o coremetrics.OverrideSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("override_event").
		AddTag("actor", o.Actor).
		AddTag("component", "engine").
		AddField("stations", o.Stations).
		SetTime(stamp(o.Time))
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOccupancy writes one point per station snapshot.
func (s *InfluxSink) RecordOccupancy(samples []coremetrics.OccupancySample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, o := range samples {
		p := write.NewPointWithMeasurement("station_occupancy").
			AddTag("station", o.StationKey).
			AddTag("component", "engine").
			AddField("month", int(o.Month)).
			AddField("count", o.Count).
			AddField("max", o.Max).
			SetTime(stamp(o.Time))
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
