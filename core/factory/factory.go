package factory

import (
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// ModuleConfig is the config-file shape of one pluggable module: a type
// name selecting the implementation (an audit store, a metrics sink) and
// the raw key/value block that implementation decodes for itself.
type ModuleConfig struct {
	Type string         `json:"type"`
	Conf map[string]any `json:"conf"`
}

// Factory builds one T from its raw config block.
type Factory[T any] func(map[string]any) (T, error)

// Registry maps type names to factories. Implementations register
// themselves from init so importing an adapter package is what makes its
// type name resolvable.
type Registry[T any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

// Register adds a factory under name. Registering nil or the same name
// twice is a wiring bug and fails loudly.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("nil factory for module type %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("module type %s registered twice", name)
	}
	r.factories[name] = f
	return nil
}

// Create builds the module cfg names.
func (r *Registry[T]) Create(cfg ModuleConfig) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown module type %s", cfg.Type)
	}
	return f(cfg.Conf)
}

// Decode fills out from a raw config block using json tags, the same tags
// the koanf config loader uses, so module blocks decode consistently with
// the rest of the file.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
