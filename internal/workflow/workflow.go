// Package workflow defines the structure and parsing of courier workflows.
package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eugenetaranov/courier/internal/module"
)

// Workflow is an ordered list of tasks sharing variables and a temp folder.
type Workflow struct {
	// Path is the file path the workflow was loaded from.
	Path string

	// Name identifies the workflow and names its temp folder.
	Name string

	// ID is an optional numeric identifier.
	ID int

	// TempDir is the root under which the run's temp folder is created.
	// Empty selects the executor default.
	TempDir string

	// Vars defines variables available to all tasks.
	Vars map[string]any

	// Tasks run in order.
	Tasks []*Task
}

// Task is one step of a workflow.
type Task struct {
	// ID identifies the task for select_files. Defaults to its 1-based
	// position.
	ID int

	// Name is a description of the task.
	Name string

	// Module is the name of the module to execute.
	Module string

	// Params are the parameters to pass to the module.
	Params map[string]any

	// When is an expression; the task runs only if it evaluates to true.
	When string

	// SelectFiles lists earlier task ids whose files this task consumes.
	SelectFiles []int

	// IgnoreErrors continues execution even if the task fails.
	IgnoreErrors bool
}

// DisplayName returns the workflow name, falling back to the file name.
func (w *Workflow) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.Path
}

// Validate checks the workflow for common errors.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow is missing required 'name' field")
	}
	if strings.ContainsAny(w.Name, `/\`) || w.Name == "." || w.Name == ".." {
		return fmt.Errorf("workflow name cannot contain path separators: %s", w.Name)
	}
	if len(w.Tasks) == 0 {
		return fmt.Errorf("workflow has no tasks")
	}

	seen := make(map[int]bool)
	for i, task := range w.Tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("%s: %w", task.label(i), err)
		}
		if seen[task.ID] {
			return fmt.Errorf("%s: duplicate task id %d", task.label(i), task.ID)
		}
		for _, id := range task.SelectFiles {
			if !seen[id] {
				return fmt.Errorf("%s: select_files refers to task %d, which does not run before it", task.label(i), id)
			}
		}
		seen[task.ID] = true
	}

	return nil
}

// Validate checks the task for common errors.
func (t *Task) Validate() error {
	if t.Module == "" {
		return fmt.Errorf("task has no module specified")
	}
	if t.ID <= 0 {
		return fmt.Errorf("task id must be positive, got %d", t.ID)
	}
	return ResolveModule(t)
}

// ResolveModule checks if the task's module exists in the registry.
func ResolveModule(t *Task) error {
	if module.Get(t.Module) == nil {
		return fmt.Errorf("unknown module '%s' (available: %s)",
			t.Module, strings.Join(module.List(), ", "))
	}
	return nil
}

// String returns a human-readable description of the task.
func (t *Task) String() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%s: %v", t.Module, summarizeParams(t.Params))
}

func (t *Task) label(i int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task %d", i+1)
}

// sensitiveParams are never shown in task summaries.
var sensitiveParams = map[string]bool{
	"password":   true,
	"passphrase": true,
}

// summarizeParams creates a brief summary of task parameters.
func summarizeParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		if len(parts) >= 3 {
			parts = append(parts, "...")
			break
		}
		switch val := params[k].(type) {
		case string:
			if sensitiveParams[k] {
				val = "***"
			} else if len(val) > 30 {
				val = val[:27] + "..."
			}
			parts = append(parts, fmt.Sprintf("%s=%q", k, val))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, val))
		}
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
