package llm

import (
	"fmt"
	"sort"

	"ScriptWriter/internal/ports"
)

// Registry keeps a mapping from provider names to generation backends.
type Registry struct {
	generators map[string]ports.TextGenerator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: map[string]ports.TextGenerator{}}
}

// Register adds or replaces a backend.
func (r *Registry) Register(gen ports.TextGenerator) {
	if gen == nil {
		return
	}
	if r.generators == nil {
		r.generators = map[string]ports.TextGenerator{}
	}
	r.generators[gen.Name()] = gen
}

// Resolve returns a backend by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.TextGenerator, error) {
	if gen, ok := r.generators[name]; ok {
		return gen, nil
	}
	return nil, fmt.Errorf("generation provider %q is not registered: %w", name, ErrNotConfigured)
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
