package gateway

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-gateway/core"
)

// MethodPack is a named group of callable entity methods contributed by an
// embedding application. Packs are applied to the entity registry at startup
// so the callable surface is enumerated before the gateway serves traffic.
type MethodPack struct {
	Name    string
	Entity  string
	Methods map[string]core.Method
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects method packs and command/query bundles from
// embedding applications before the gateway is assembled.
type ExtensionHooks struct {
	mu sync.RWMutex

	methodPacks map[string]MethodPack
	bundles     map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		methodPacks: map[string]MethodPack{},
		bundles:     map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterMethodPack(pack MethodPack) error {
	if h == nil {
		return fmt.Errorf("gateway: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	entity := strings.TrimSpace(pack.Entity)
	if name == "" {
		return fmt.Errorf("gateway: method pack name is required")
	}
	if entity == "" {
		return fmt.Errorf("gateway: method pack %q entity type is required", name)
	}
	if len(pack.Methods) == 0 {
		return fmt.Errorf("gateway: method pack %q has no methods", name)
	}

	normalized := MethodPack{
		Name:    name,
		Entity:  entity,
		Methods: make(map[string]core.Method, len(pack.Methods)),
	}
	for method, handler := range pack.Methods {
		method = strings.TrimSpace(method)
		if method == "" {
			return fmt.Errorf("gateway: method pack %q contains a blank method name", name)
		}
		if handler == nil {
			return fmt.Errorf("gateway: method pack %q method %q has no handler", name, method)
		}
		normalized.Methods[method] = handler
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.methodPacks[name]; exists {
		return fmt.Errorf("gateway: method pack %q already registered", name)
	}
	h.methodPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("gateway: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("gateway: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("gateway: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("gateway: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyMethodPacks registers every pack's methods on the registry. Packs
// apply in name order so duplicate method collisions surface
// deterministically.
func (h *ExtensionHooks) ApplyMethodPacks(registry *core.EntityRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("gateway: entity registry is required")
	}

	for _, pack := range h.MethodPacks() {
		methods := make([]string, 0, len(pack.Methods))
		for method := range pack.Methods {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		for _, method := range methods {
			if err := registry.Register(pack.Entity, method, pack.Methods[method]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("gateway: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) MethodPacks() []MethodPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.methodPacks))
	for name := range h.methodPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]MethodPack, 0, len(names))
	for _, name := range names {
		pack := h.methodPacks[name]
		methods := make(map[string]core.Method, len(pack.Methods))
		for method, handler := range pack.Methods {
			methods[method] = handler
		}
		out = append(out, MethodPack{Name: pack.Name, Entity: pack.Entity, Methods: methods})
	}
	return out
}
