// Package backend wires the provider implementations behind the
// BackendService contract and selects the active one from configuration.
package backend

import (
	"fmt"

	"github.com/rios0rios0/contentsync/domain"
)

// Factory builds an unclaimed backend instance; its Init decides whether the
// configured backend name belongs to it.
type Factory func() domain.BackendService

// Registry manages all registered backend implementations.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a backend factory under the given name (e.g. "gitea").
func (r *Registry) Register(name string, factory Factory) {
	if _, exists := r.factories[name]; !exists {
		r.order = append(r.order, name)
	}
	r.factories[name] = factory
}

// Resolve lets every registered factory attempt initialization; the one
// whose Init claims the configuration becomes the active backend.
func (r *Registry) Resolve() (domain.BackendService, error) {
	for _, name := range r.order {
		service := r.factories[name]()

		claimed, err := service.Init()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize backend %q: %w", name, err)
		}
		if claimed {
			return service, nil
		}
	}
	return nil, fmt.Errorf("no registered backend claims the configuration")
}

// Names returns the list of registered backend names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
