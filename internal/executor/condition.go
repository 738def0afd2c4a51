package executor

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// evaluateCondition evaluates a when expression. Workflow vars are
// available by name; env, workflow, and files (file count per task id)
// are also defined. Undefined names evaluate to nil.
func (e *Executor) evaluateCondition(condition string, rctx *RunContext) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	env := conditionEnv(rctx)

	program, err := expr.Compile(condition, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("invalid condition '%s': %w", condition, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	if b, ok := out.(bool); ok {
		return b, nil
	}
	return isTruthy(out), nil
}

// conditionEnv builds the variable set a condition is evaluated against.
func conditionEnv(rctx *RunContext) map[string]any {
	env := make(map[string]any, len(rctx.Vars)+2)
	for k, v := range rctx.Vars {
		env[k] = v
	}

	files := make(map[int]int, len(rctx.Tasks))
	for id, tc := range rctx.Tasks {
		files[id] = len(tc.Files())
	}
	env["files"] = files
	env["vars"] = rctx.Vars

	return env
}

// isTruthy returns whether a value is considered truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}

	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "False" && val != "no"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
