package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// knownTaskFields are fields that are task directives, not module names.
var knownTaskFields = map[string]bool{
	"id":            true,
	"name":          true,
	"when":          true,
	"select_files":  true,
	"ignore_errors": true,
}

// ParseFile parses a workflow from a YAML file.
func ParseFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}

	wf, err := Parse(data, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow %s: %w", path, err)
	}

	return wf, nil
}

// Parse parses and validates a workflow from YAML data.
func Parse(data []byte, path string) (*Workflow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid workflow format: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("workflow is empty")
	}

	wf, err := parseRawWorkflow(raw)
	if err != nil {
		return nil, err
	}
	wf.Path = path

	if err := wf.Validate(); err != nil {
		return nil, err
	}

	return wf, nil
}

// parseRawWorkflow parses a workflow from a raw map.
func parseRawWorkflow(raw map[string]any) (*Workflow, error) {
	wf := &Workflow{
		Vars: make(map[string]any),
	}

	if v, ok := raw["name"].(string); ok {
		wf.Name = v
	}
	if v, ok := raw["id"].(int); ok {
		wf.ID = v
	}
	if v, ok := raw["temp_dir"].(string); ok {
		wf.TempDir = v
	}
	if vars, ok := raw["vars"].(map[string]any); ok {
		wf.Vars = vars
	}

	tasks, ok := raw["tasks"].([]any)
	if !ok && raw["tasks"] != nil {
		return nil, fmt.Errorf("'tasks' must be a list")
	}

	for i, rawTask := range tasks {
		taskMap, ok := rawTask.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("task %d: invalid task format", i+1)
		}
		task, err := parseRawTask(taskMap, i+1)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		wf.Tasks = append(wf.Tasks, task)
	}

	return wf, nil
}

// parseRawTask parses a single task from a raw map. position is the
// task's 1-based index, used as its id when none is given.
func parseRawTask(raw map[string]any, position int) (*Task, error) {
	task := &Task{
		ID:     position,
		Params: make(map[string]any),
	}

	if v, ok := raw["id"]; ok {
		id, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("'id' must be an integer")
		}
		task.ID = id
	}
	if v, ok := raw["name"].(string); ok {
		task.Name = v
	}
	if v, ok := raw["when"]; ok {
		switch w := v.(type) {
		case string:
			task.When = w
		case bool:
			task.When = fmt.Sprintf("%t", w)
		default:
			return nil, fmt.Errorf("'when' must be an expression")
		}
	}
	if v, ok := raw["ignore_errors"].(bool); ok {
		task.IgnoreErrors = v
	}

	// select_files can be a single id or a list
	if sel, ok := raw["select_files"]; ok {
		switch s := sel.(type) {
		case int:
			task.SelectFiles = []int{s}
		case []any:
			for _, item := range s {
				id, ok := item.(int)
				if !ok {
					return nil, fmt.Errorf("select_files entries must be task ids, got %v", item)
				}
				task.SelectFiles = append(task.SelectFiles, id)
			}
		default:
			return nil, fmt.Errorf("select_files must be a task id or a list of task ids")
		}
	}

	// Find the module - it's a key that's not a known task field
	for key, value := range raw {
		if knownTaskFields[key] {
			continue
		}

		if task.Module != "" {
			return nil, fmt.Errorf("multiple modules specified: %s and %s", task.Module, key)
		}

		task.Module = key

		switch params := value.(type) {
		case map[string]any:
			task.Params = params
		case nil:
			task.Params = make(map[string]any)
		default:
			return nil, fmt.Errorf("module %s: parameters must be a mapping", key)
		}
	}

	return task, nil
}
