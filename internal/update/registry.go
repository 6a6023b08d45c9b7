package update

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Registry holds the coordinators of a host process. The host creates one and
// passes it to whatever needs to look coordinators up by component name.
type Registry struct {
	mu           sync.RWMutex
	coordinators map[string]*Coordinator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		coordinators: make(map[string]*Coordinator),
	}
}

// Register adds a coordinator. Names must be unique.
func (r *Registry) Register(c *Coordinator) error {
	if c == nil {
		return errors.New("coordinator cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.coordinators[c.Name()]; exists {
		return fmt.Errorf("component %q is already registered", c.Name())
	}
	r.coordinators[c.Name()] = c
	return nil
}

// Get returns the coordinator of the named component
func (r *Registry) Get(name string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.coordinators[name]
	return c, ok
}

// Names returns the registered component names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.coordinators))
	for name := range r.coordinators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CloseAll closes every coordinator and waits for their runs to end
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.RLock()
	coordinators := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		coordinators = append(coordinators, c)
	}
	r.mu.RUnlock()

	var errs []error
	for _, c := range coordinators {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("component %s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
