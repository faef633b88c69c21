package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EntityRegistry maps (entity type, method name) to a typed handler. The
// call operation only dispatches method names present here: a deliberate
// narrowing of the legacy open reflection, so the callable surface of every
// entity type is enumerated at startup instead of discovered at request
// time.
type EntityRegistry struct {
	mu      sync.RWMutex
	methods map[string]map[string]Method
}

func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{methods: make(map[string]map[string]Method)}
}

func (r *EntityRegistry) Register(entity string, method string, handler Method) error {
	if r == nil {
		return fmt.Errorf("core: entity registry is nil")
	}
	entity = strings.TrimSpace(entity)
	method = strings.TrimSpace(method)
	if entity == "" {
		return fmt.Errorf("core: entity type is required")
	}
	if method == "" {
		return fmt.Errorf("core: method name is required")
	}
	if handler == nil {
		return fmt.Errorf("core: method handler is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.methods[entity][method]; exists {
		return fmt.Errorf("core: method already registered: %s.%s", entity, method)
	}
	if r.methods[entity] == nil {
		r.methods[entity] = make(map[string]Method)
	}
	r.methods[entity][method] = handler
	return nil
}

func (r *EntityRegistry) Resolve(entity string, method string) (Method, bool) {
	if r == nil {
		return nil, false
	}
	entity = strings.TrimSpace(entity)
	method = strings.TrimSpace(method)
	if entity == "" || method == "" {
		return nil, false
	}
	r.mu.RLock()
	handler, ok := r.methods[entity][method]
	r.mu.RUnlock()
	return handler, ok
}

// Methods returns the registered method names for an entity type, sorted.
func (r *EntityRegistry) Methods(entity string) []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.methods[strings.TrimSpace(entity)]))
	for name := range r.methods[strings.TrimSpace(entity)] {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
