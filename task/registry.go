package task

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe mapping of task name to Description.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Description
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Description)}
}

// Register adds a task description. A task with neither an implementation nor
// instructions is rejected here rather than failing at call time for every
// invocation. Re-registering a name replaces the previous description.
func (r *Registry) Register(d *Description) error {
	if d.Name == "" {
		return fmt.Errorf("task name must not be empty")
	}
	if !d.CodeBacked() && !d.ModelBacked() {
		return fmt.Errorf("task %q has neither an implementation nor instructions", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[d.Name] = d
	return nil
}

// Get retrieves a task description by name.
func (r *Registry) Get(name string) (*Description, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tasks[name]
	return d, ok
}

// Names returns all registered task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
