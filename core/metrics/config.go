package metrics

import "github.com/medrota/rotaplan/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	PrometheusPort string                 `json:"prometheus_port"`
}
