package executor

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// placeholder matches one {{ ref | filter | ... }} reference.
var placeholder = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// interpolateParams expands placeholders in every task parameter. Nested
// maps and lists are walked.
func (e *Executor) interpolateParams(params map[string]any, rctx *RunContext) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		expanded, err := e.interpolateValue(v, rctx)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", k, err)
		}
		out[k] = expanded
	}
	return out, nil
}

func (e *Executor) interpolateValue(v any, rctx *RunContext) (any, error) {
	switch val := v.(type) {
	case string:
		return e.interpolateString(val, rctx)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := e.interpolateValue(item, rctx)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case map[string]any:
		return e.interpolateParams(val, rctx)
	default:
		return v, nil
	}
}

// interpolateString expands the placeholders in s. A string that is
// exactly one placeholder keeps the referenced value's type; anything else
// is rendered as text, with undefined references rendering empty.
func (e *Executor) interpolateString(s string, rctx *RunContext) (any, error) {
	if loc := placeholder.FindStringSubmatchIndex(s); loc != nil && loc[0] == 0 && loc[1] == len(s) {
		return e.resolveVariable(s[loc[2]:loc[3]], rctx)
	}

	var firstErr error
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		val, err := e.resolveVariable(placeholder.FindStringSubmatch(match)[1], rctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		if val == nil {
			return ""
		}
		return fmt.Sprint(val)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// resolveVariable evaluates "ref" or "ref | filter | filter(arg)".
func (e *Executor) resolveVariable(expr string, rctx *RunContext) (any, error) {
	ref, chain, hasFilters := strings.Cut(expr, "|")
	ref = strings.TrimSpace(ref)
	if !hasFilters {
		return e.lookupVariable(ref, rctx), nil
	}
	return e.applyFilter(ref, chain, rctx)
}

// lookupVariable resolves a name or dotted path. Workflow vars win; the
// workflow and tasks roots fall back to the live run state.
func (e *Executor) lookupVariable(name string, rctx *RunContext) any {
	if val, ok := rctx.Vars[name]; ok {
		return val
	}

	parts := strings.Split(name, ".")
	if val, ok := walk(rctx.Vars, parts); ok {
		return val
	}

	switch parts[0] {
	case "workflow":
		return workflowField(rctx, parts[1:])
	case "tasks":
		return taskField(rctx, parts[1:])
	}
	return nil
}

// walk follows parts through nested maps.
func walk(root map[string]any, parts []string) (any, bool) {
	var cur any = root
	for _, part := range parts {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

func workflowField(rctx *RunContext, parts []string) any {
	if len(parts) != 1 {
		return nil
	}
	switch parts[0] {
	case "temp_folder":
		return rctx.TempFolder
	}
	if rctx.Workflow == nil {
		return nil
	}
	switch parts[0] {
	case "name":
		return rctx.Workflow.Name
	case "id":
		return rctx.Workflow.ID
	}
	return nil
}

// taskField resolves tasks.<id>.files, tasks.<id>.count and
// tasks.<id>.name for tasks that already ran.
func taskField(rctx *RunContext, parts []string) any {
	if len(parts) != 2 {
		return nil
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil
	}
	tc, ok := rctx.Tasks[id]
	if !ok {
		return nil
	}

	switch parts[1] {
	case "files":
		files := tc.Files()
		paths := make([]any, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		return paths
	case "count":
		return len(tc.Files())
	case "name":
		return tc.Name()
	}
	return nil
}

// filterFunc transforms a value. ref is the expression being filtered and
// arg the unquoted argument, if any.
type filterFunc func(val any, ref, arg string) (any, error)

var filters map[string]filterFunc

func init() {
	filters = map[string]filterFunc{
		"default": func(val any, _, arg string) (any, error) {
			if isEmpty(val) {
				return arg, nil
			}
			return val, nil
		},
		"required": func(val any, ref, arg string) (any, error) {
			if !isEmpty(val) {
				return val, nil
			}
			if arg == "" {
				return nil, fmt.Errorf("variable '%s' is required", ref)
			}
			return nil, fmt.Errorf("%s", arg)
		},
		"lower":    stringFilter(strings.ToLower),
		"upper":    stringFilter(strings.ToUpper),
		"trim":     stringFilter(strings.TrimSpace),
		"basename": stringFilter(func(s string) string { return path.Base(filepath.ToSlash(s)) }),
		"dirname":  stringFilter(func(s string) string { return path.Dir(filepath.ToSlash(s)) }),
		"bool": func(val any, _, _ string) (any, error) {
			return isTruthy(val), nil
		},
		"string": func(val any, _, _ string) (any, error) {
			return fmt.Sprint(val), nil
		},
		"int": func(val any, _, _ string) (any, error) {
			switch v := val.(type) {
			case int:
				return v, nil
			case int64:
				return int(v), nil
			case float64:
				return int(v), nil
			case string:
				n, _ := strconv.Atoi(strings.TrimSpace(v))
				return n, nil
			}
			return 0, nil
		},
		"first": func(val any, _, _ string) (any, error) {
			if items := asList(val); len(items) > 0 {
				return items[0], nil
			}
			return nil, nil
		},
		"last": func(val any, _, _ string) (any, error) {
			if items := asList(val); len(items) > 0 {
				return items[len(items)-1], nil
			}
			return nil, nil
		},
		"length": length,
		"count":  length,
		"join": func(val any, _, arg string) (any, error) {
			items := asList(val)
			if items == nil {
				return val, nil
			}
			sep := arg
			if sep == "" {
				sep = ","
			}
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = fmt.Sprint(item)
			}
			return strings.Join(parts, sep), nil
		},
	}
}

// applyFilter looks up varName and pipes it through chain, a
// "|"-separated list of filters applied left to right.
func (e *Executor) applyFilter(varName, chain string, rctx *RunContext) (any, error) {
	val := e.lookupVariable(varName, rctx)

	for _, call := range strings.Split(chain, "|") {
		name, arg := parseFilter(call)
		fn, ok := filters[name]
		if !ok {
			return nil, fmt.Errorf("unknown filter: %s", name)
		}
		var err error
		if val, err = fn(val, varName, arg); err != nil {
			return nil, err
		}
	}
	return val, nil
}

// parseFilter splits "name('arg')" into its name and unquoted argument.
func parseFilter(call string) (name, arg string) {
	call = strings.TrimSpace(call)
	open := strings.Index(call, "(")
	if open <= 0 || !strings.HasSuffix(call, ")") {
		return call, ""
	}
	arg = strings.TrimSpace(call[open+1 : len(call)-1])
	return strings.TrimSpace(call[:open]), strings.Trim(arg, `'"`)
}

func stringFilter(fn func(string) string) filterFunc {
	return func(val any, _, _ string) (any, error) {
		if s, ok := val.(string); ok {
			return fn(s), nil
		}
		return val, nil
	}
}

func length(val any, _, _ string) (any, error) {
	switch v := val.(type) {
	case string:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	case map[string]string:
		return len(v), nil
	}
	return len(asList(val)), nil
}

func asList(val any) []any {
	switch v := val.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

func isEmpty(val any) bool {
	return val == nil || val == ""
}
