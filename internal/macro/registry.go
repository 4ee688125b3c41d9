package macro

import (
	"fmt"
	"sort"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"go.starlark.net/starlark"
)

// ReservedNamespaces are global names a macro file cannot take.
var ReservedNamespaces = lfstarlark.PredeclaredNames()

// Registry holds the loaded macro modules keyed by namespace.
type Registry struct {
	modules map[string]*LoadedModule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*LoadedModule)}
}

// Register adds a module. The namespace must be unused and not reserved.
func (r *Registry) Register(m *LoadedModule) error {
	if lfstarlark.IsReserved(m.Namespace) {
		return &RegistryError{
			Namespace: m.Namespace,
			Message:   fmt.Sprintf("namespace %q is reserved", m.Namespace),
		}
	}
	if existing, ok := r.modules[m.Namespace]; ok {
		return &RegistryError{
			Namespace: m.Namespace,
			Message:   fmt.Sprintf("namespace %q already defined in %s", m.Namespace, existing.Path),
		}
	}
	r.modules[m.Namespace] = m
	return nil
}

// RegisterAll registers modules in order and stops at the first error.
func (r *Registry) RegisterAll(modules []*LoadedModule) error {
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether namespace is registered.
func (r *Registry) Has(namespace string) bool {
	_, ok := r.modules[namespace]
	return ok
}

// Get returns the module for namespace, or nil.
func (r *Registry) Get(namespace string) *LoadedModule {
	return r.modules[namespace]
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Namespaces returns the registered namespaces, sorted.
func (r *Registry) Namespaces() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve finds the module defining a bare macro name. Project modules
// are searched before packages, each in namespace order.
func (r *Registry) Resolve(name string) *LoadedModule {
	var fallback *LoadedModule
	for _, ns := range r.Namespaces() {
		m := r.modules[ns]
		if !m.HasFunction(name) {
			continue
		}
		if m.Package == "" {
			return m
		}
		if fallback == nil {
			fallback = m
		}
	}
	return fallback
}

// ToStarlarkDict exposes the load-time exports of every module as
// namespace values.
func (r *Registry) ToStarlarkDict() starlark.StringDict {
	out := make(starlark.StringDict, len(r.modules))
	for name, m := range r.modules {
		out[name] = &starlarkModule{name: name, exports: m.Exports}
	}
	return out
}

// LoadAndRegister loads the project macros in dir into a new registry.
func LoadAndRegister(dir string) (*Registry, error) {
	modules, err := NewLoader(dir).Load()
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	if err := registry.RegisterAll(modules); err != nil {
		return nil, err
	}
	return registry, nil
}

// LoadWithBuiltins loads the default macros and the project macros in dir.
func LoadWithBuiltins(dir string) (*Registry, error) {
	builtins, err := BuiltinLoader().Load()
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	if err := registry.RegisterAll(builtins); err != nil {
		return nil, err
	}

	modules, err := NewLoader(dir).WithNamespaces(registry.Namespaces()...).Load()
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterAll(modules); err != nil {
		return nil, err
	}
	return registry, nil
}

// RegistryError reports a namespace that cannot be registered.
type RegistryError struct {
	Namespace string
	Message   string
}

func (e *RegistryError) Error() string {
	return "macro registry: " + e.Message
}

// starlarkModule is a namespace value over a fixed export table.
type starlarkModule struct {
	name    string
	exports starlark.StringDict
}

var _ starlark.HasAttrs = (*starlarkModule)(nil)

func (m *starlarkModule) String() string       { return fmt.Sprintf("<module %s>", m.name) }
func (m *starlarkModule) Type() string         { return "module" }
func (m *starlarkModule) Freeze()              { m.exports.Freeze() }
func (m *starlarkModule) Truth() starlark.Bool { return starlark.True }
func (m *starlarkModule) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: module")
}

// Attr implements starlark.HasAttrs.
func (m *starlarkModule) Attr(name string) (starlark.Value, error) {
	v, ok := m.exports[name]
	if !ok {
		return nil, fmt.Errorf("module %s has no attribute %s", m.name, name)
	}
	return v, nil
}

// AttrNames implements starlark.HasAttrs.
func (m *starlarkModule) AttrNames() []string {
	return m.exports.Keys()
}
