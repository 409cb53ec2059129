package templates

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps template names to templates. It starts with the builtin
// set and accepts custom registrations at runtime.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns a registry preloaded with the builtin templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*Template, len(builtinTemplates))}
	for _, t := range builtinTemplates {
		r.templates[t.Name] = t
	}
	return r
}

// Get returns the template for name. The error names the available
// templates so a typo in a job config is diagnosable from the message.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s. Available: [%s]", name, strings.Join(r.namesLocked(), ", "))
	}
	return t, nil
}

// Register adds or replaces a template.
func (r *Registry) Register(t *Template) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("template must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Name] = t
	return nil
}

// List returns the registered template names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
