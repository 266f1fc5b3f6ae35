package jobs

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps job class names to handlers. Handlers are registered
// explicitly during startup; there is no implicit registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for class. Registering a class twice is an error.
func (r *Registry) Register(class string, handler Handler) error {
	if class == "" {
		return fmt.Errorf("job class must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for %s must not be nil", class)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[class]; exists {
		return fmt.Errorf("job class %s already registered", class)
	}
	r.handlers[class] = handler
	return nil
}

// Lookup returns the handler for class
func (r *Registry) Lookup(class string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[class]
	return handler, ok
}

// Classes returns the registered class names, sorted
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]string, 0, len(r.handlers))
	for class := range r.handlers {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}
