package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	ErrDuplicatePlugin   = errors.New("plugin name already registered")
	ErrDuplicateFunction = errors.New("function name already registered")
	ErrNoDefaultFunction = errors.New("plugin must advertise exactly one default function")
	ErrUnknownPlugin     = errors.New("no plugin with name")
	ErrUnknownFunction   = errors.New("no plugin advertises function")
	ErrNotInitialized    = errors.New("plugin executed before initialization")
)

// registered tracks one plugin's runtime state.
type registered struct {
	plugin      Plugin
	initialized bool
	cleanedUp   bool
	active      bool
}

// Registry owns the plugin set and enforces the runtime guarantees: plugin
// and function names are globally unique, Initialize runs at most once per
// plugin, Execute never precedes Initialize, and Cleanup is idempotent.
type Registry struct {
	mu sync.Mutex

	plugins   map[string]*registered
	functions map[string]string // function name → plugin name.
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins:   make(map[string]*registered),
		functions: make(map[string]string),
	}
}

// Register validates and adds a plugin.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.PluginInfo()

	if _, dup := r.plugins[info.Name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, info.Name)
	}

	functions := p.AdvertisedFunctions()

	defaults := 0
	for _, fn := range functions {
		if owner, dup := r.functions[fn.Name]; dup {
			return fmt.Errorf("%w: %s (owned by %s)", ErrDuplicateFunction, fn.Name, owner)
		}

		if fn.IsDefault {
			defaults++
		}
	}

	if defaults != 1 {
		return fmt.Errorf("%w: %s advertises %d", ErrNoDefaultFunction, info.Name, defaults)
	}

	for _, fn := range functions {
		r.functions[fn.Name] = info.Name
	}

	r.plugins[info.Name] = &registered{plugin: p}
	r.order = append(r.order, info.Name)

	return nil
}

// ActivateDefaults activates every plugin with ActiveByDefault set.
func (r *Registry) ActivateDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		reg := r.plugins[name]
		if reg.plugin.PluginInfo().ActiveByDefault {
			reg.active = true
		}
	}
}

// Activate selects a plugin by plugin name or by advertised function name.
// It returns the resolved plugin name.
func (r *Registry) Activate(selector string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.plugins[selector]; ok {
		reg.active = true

		return selector, nil
	}

	if owner, ok := r.functions[selector]; ok {
		r.plugins[owner].active = true

		return owner, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownFunction, selector)
}

// ActivePlugins returns the active plugins in registration order.
func (r *Registry) ActivePlugins() []Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Plugin

	for _, name := range r.order {
		if reg := r.plugins[name]; reg.active {
			out = append(out, reg.plugin)
		}
	}

	return out
}

// ActiveNames returns the active plugin names in registration order.
func (r *Registry) ActiveNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string

	for _, name := range r.order {
		if r.plugins[name].active {
			out = append(out, name)
		}
	}

	return out
}

// InitializeActive initializes every active plugin that has not been
// initialized yet. A plugin initialization failure is fatal to the scan.
func (r *Registry) InitializeActive(ctx *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		reg := r.plugins[name]
		if !reg.active || reg.initialized {
			continue
		}

		if err := reg.plugin.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize plugin %s: %w", name, err)
		}

		reg.initialized = true
	}

	return nil
}

// Execute dispatches a request to the plugin owning the function.
func (r *Registry) Execute(functionName string, req Request) (Response, error) {
	r.mu.Lock()

	owner, ok := r.functions[functionName]
	if !ok {
		r.mu.Unlock()

		return Response{}, fmt.Errorf("%w: %s", ErrUnknownFunction, functionName)
	}

	reg := r.plugins[owner]
	if !reg.initialized {
		r.mu.Unlock()

		return Response{}, fmt.Errorf("%w: %s", ErrNotInitialized, owner)
	}

	p := reg.plugin
	r.mu.Unlock()

	req.FunctionName = functionName

	return p.Execute(req)
}

// CleanupAll cleans up every initialized plugin once. Safe to call more
// than once.
func (r *Registry) CleanupAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error

	for _, name := range r.order {
		reg := r.plugins[name]
		if !reg.initialized || reg.cleanedUp {
			continue
		}

		if err := reg.plugin.Cleanup(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup plugin %s: %w", name, err)
		}

		reg.cleanedUp = true
	}

	return firstErr
}

// ResolveFunction returns the plugin owning a function name, or the
// plugin's own default function when the selector is a plugin name.
func (r *Registry) ResolveFunction(selector string) (pluginName, functionName string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.functions[selector]; ok {
		return owner, selector, nil
	}

	reg, ok := r.plugins[selector]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownPlugin, selector)
	}

	for _, fn := range reg.plugin.AdvertisedFunctions() {
		if fn.IsDefault {
			return selector, fn.Name, nil
		}
	}

	return "", "", fmt.Errorf("%w: %s", ErrNoDefaultFunction, selector)
}

// FunctionNames returns every advertised function name, sorted. Used for
// CLI help and did-you-mean suggestions.
func (r *Registry) FunctionNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.functions))
	for name := range r.functions {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}
