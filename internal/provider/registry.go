package provider

import (
	"context"
	"fmt"
	"sync"
)

// Factory constructs a provider from its configuration.
type Factory func(ctx context.Context, cfg Config) (Interface, error)

// Registry manages named provider backends ("aws", "local").
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	loaded    map[string]Interface
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		loaded:    make(map[string]Interface),
	}
}

// RegisterFactory makes a provider constructible by name.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Load initializes and caches the named provider.
func (r *Registry) Load(ctx context.Context, name string, cfg Config) (Interface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.loaded[name]; ok {
		return p, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	p, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing provider %s: %w", name, err)
	}
	r.loaded[name] = p
	return p, nil
}

// Get returns an already-loaded provider.
func (r *Registry) Get(name string) (Interface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.loaded[name]
	if !ok {
		return nil, fmt.Errorf("provider not loaded: %s", name)
	}
	return p, nil
}
