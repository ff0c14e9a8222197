// Package transform holds the step functions a pipeline applies to its
// resources, and the registry the build file resolves step types from.
package transform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/maxkimambo/assetpipe/internal/resource"
)

// Func transforms a resource set. Implementations must not modify their
// input and must fail with an error rather than emitting a partial result.
type Func func(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error)

// Registry maps step type names to implementations
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// DefaultRegistry creates a registry holding every built-in step
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, fn := range map[string]Func{
		"concat":    Concat,
		"rename":    Rename,
		"replace":   Replace,
		"wrap":      Wrap,
		"filter":    Filter,
		"minify":    Minify,
		"exec":      Exec,
		"svgsprite": SVGSprite,
	} {
		r.funcs[name] = fn
	}
	return r
}

// Register adds a step type. Names are unique.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("step type needs a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("step type %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup returns the implementation of a step type
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered step types sorted by name
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// selectKinds returns a predicate for resources whose kind is listed. An
// empty list selects everything.
func selectKinds(kinds []string) func(r resource.Resource) bool {
	if len(kinds) == 0 {
		return func(resource.Resource) bool { return true }
	}
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(r resource.Resource) bool { return set[r.Kind()] }
}
