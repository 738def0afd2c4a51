// Package module defines the units of work a workflow task runs.
package module

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eugenetaranov/courier/internal/task"
)

// Result holds the outcome of a module execution.
type Result struct {
	// Changed indicates whether the module moved, added, or removed files.
	Changed bool

	// Message is a human-readable description of what happened.
	Message string

	// Data holds any additional output data from the module.
	Data map[string]any
}

// Module is the interface that all modules must implement.
type Module interface {
	// Name returns the module's unique identifier.
	Name() string

	// Run executes the module for the task with the given parameters.
	// Files produced by the module are added to t; files it consumes
	// come from t.Selected().
	Run(ctx context.Context, t *task.Task, params map[string]any) (*Result, error)
}

// registry holds all registered modules.
var (
	registry   = make(map[string]Module)
	registryMu sync.RWMutex
)

// Register adds a module to the registry.
// It panics if a module with the same name is already registered.
func Register(m Module) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := m.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("module %q is already registered", name))
	}
	registry[name] = m
}

// Get retrieves a module from the registry by name.
// Returns nil if the module is not found.
func Get(name string) Module {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// List returns the sorted names of all registered modules.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Helper functions for creating results

// Unchanged creates a Result indicating no change was needed.
func Unchanged(msg string) *Result {
	return &Result{Changed: false, Message: msg}
}

// ChangedWithData creates a Result with a change and additional data.
func ChangedWithData(msg string, data map[string]any) *Result {
	return &Result{Changed: true, Message: msg, Data: data}
}
