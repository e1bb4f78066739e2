// Package metrics defines the sink interfaces used to record solver and
// scheduling observability events. Concrete sinks live under
// infra/metrics and register themselves with RegisterMetricsSink; the
// factory helpers return a MultiSink automatically when more than one
// sink is configured.
package metrics
