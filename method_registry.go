package lazyfield

import (
	"fmt"
	"sort"
	"sync"
)

// Method is a registry-backed hook. The receiver is the instance the field
// belongs to; args carry the hook-specific payload, such as a candidate value
// followed by HookArgs for filters and triggers. Builders receive no
// positional arguments.
type Method func(recv any, args ...any) (any, error)

// MethodRegistry maps (type name, method name) pairs to callables. Lookups are
// case sensitive: a method's leading-rune case carries its visibility, so
// BuildBar and buildBar are distinct registrations.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]map[string]Method
}

// NewMethodRegistry returns an empty registry.
func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: map[string]map[string]Method{}}
}

// Register binds fn under the given type and method name, replacing any
// previous binding.
func (r *MethodRegistry) Register(typeName, name string, fn Method) error {
	if r == nil {
		return fmt.Errorf("lazyfield: method registry is nil")
	}
	if typeName == "" {
		return fmt.Errorf("lazyfield: method type name is required")
	}
	if name == "" {
		return fmt.Errorf("lazyfield: method name is required")
	}
	if fn == nil {
		return fmt.Errorf("lazyfield: method %s.%s is nil", typeName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.methods == nil {
		r.methods = map[string]map[string]Method{}
	}
	byName, ok := r.methods[typeName]
	if !ok {
		byName = map[string]Method{}
		r.methods[typeName] = byName
	}
	byName[name] = fn
	return nil
}

// Lookup fetches a method by exact name.
func (r *MethodRegistry) Lookup(typeName, name string) (Method, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.methods[typeName][name]
	return fn, ok
}

// Has reports whether a method is registered under the exact name.
func (r *MethodRegistry) Has(typeName, name string) bool {
	_, ok := r.Lookup(typeName, name)
	return ok
}

// Names lists the registered method names for a type in sorted order.
func (r *MethodRegistry) Names(typeName string) []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	byName := r.methods[typeName]
	if len(byName) == 0 {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Types lists the type names with at least one registered method.
func (r *MethodRegistry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.methods) == 0 {
		return nil
	}
	types := make([]string, 0, len(r.methods))
	for typeName := range r.methods {
		types = append(types, typeName)
	}
	sort.Strings(types)
	return types
}

// Clone copies the registry so callers can extend it without mutating shared
// state.
func (r *MethodRegistry) Clone() *MethodRegistry {
	clone := NewMethodRegistry()
	if r == nil {
		return clone
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for typeName, byName := range r.methods {
		dst := make(map[string]Method, len(byName))
		for name, fn := range byName {
			dst[name] = fn
		}
		clone.methods[typeName] = dst
	}
	return clone
}
