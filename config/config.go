package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/medrota/rotaplan/core/factory"
	"github.com/medrota/rotaplan/core/metrics"
	"github.com/medrota/rotaplan/infra/notify"
)

// Config is the full runtime configuration of the scheduler.
type Config struct {
	Solver  SolverConfig         `json:"solver"`
	Logging LoggingConfig        `json:"logging"`
	Metrics metrics.Config       `json:"metrics"`
	Audit   factory.ModuleConfig `json:"audit"`
	Notify  NotifyConfig         `json:"notify"`
}

// NotifyConfig wraps the MQTT announcer settings; the announcer only
// starts when enabled.
type NotifyConfig struct {
	Enabled bool          `json:"enabled"`
	MQTT    notify.Config `json:"mqtt"`
}

// Load reads the configuration file at path and applies RP_ environment
// overrides (RP_SOLVER__BUDGET_SECONDS=30 sets solver.budget_seconds).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("RP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "rp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Solver.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Solver.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notify.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects an enabled notifier without a broker.
func (c NotifyConfig) Validate() error {
	if c.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("notify enabled without a broker")
	}
	return nil
}
