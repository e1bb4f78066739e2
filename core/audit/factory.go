package audit

import "github.com/medrota/rotaplan/core/factory"

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	_ = storeRegistry.Register("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
	_ = storeRegistry.Register("jsonl", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	_ = storeRegistry.Register("sqlite", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}

// RegisterStore adds an audit store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates a Store from its configuration. A zero config
// defaults to the in-memory store.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NewMemoryStore(), nil
	}
	return storeRegistry.Create(cfg)
}
