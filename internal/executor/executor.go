// Package executor runs workflows.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eugenetaranov/courier/internal/module"
	"github.com/eugenetaranov/courier/internal/output"
	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
	"github.com/eugenetaranov/courier/internal/workflow"
)

// DefaultTempRoot is used when neither the executor nor the workflow
// names a temp root.
var DefaultTempRoot = filepath.Join(os.TempDir(), "courier")

// tempFolderLayout names the per-run folder.
const tempFolderLayout = "2006-01-02-15-04-05.000"

// Executor runs workflows.
type Executor struct {
	// Output handles formatted output.
	Output *output.Output

	// DryRun resolves conditions, parameters and file selections without
	// running any module.
	DryRun bool

	// Debug enables detailed output.
	Debug bool

	// TempRoot overrides the workflow's temp_dir when set.
	TempRoot string

	// Env is exposed to tasks as env. Nil uses the process environment.
	Env map[string]string

	// now returns the current time; replaced in tests.
	now func() time.Time
}

// New creates a new executor.
func New() *Executor {
	return &Executor{
		Output: output.New(os.Stdout),
		now:    time.Now,
	}
}

// RunResult holds the result of a workflow run.
type RunResult struct {
	// Success is true if every task completed or had its error ignored.
	Success bool

	// TempFolder is the folder downloads were written to.
	TempFolder string

	// Stats holds execution statistics.
	Stats *Stats

	// Tasks holds the task contexts by id, including their files.
	Tasks map[int]*task.Task
}

// Stats holds execution statistics.
type Stats struct {
	Tasks     int
	OK        int
	Changed   int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the total execution time.
func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// GetOK returns the OK count (implements output.Stats).
func (s *Stats) GetOK() int { return s.OK }

// GetChanged returns the Changed count (implements output.Stats).
func (s *Stats) GetChanged() int { return s.Changed }

// GetFailed returns the Failed count (implements output.Stats).
func (s *Stats) GetFailed() int { return s.Failed }

// GetSkipped returns the Skipped count (implements output.Stats).
func (s *Stats) GetSkipped() int { return s.Skipped }

// GetDuration returns the duration (implements output.Stats).
func (s *Stats) GetDuration() time.Duration { return s.Duration() }

// RunContext holds state for a workflow execution.
type RunContext struct {
	// Workflow is the workflow being run.
	Workflow *workflow.Workflow

	// Vars holds workflow vars plus env and workflow metadata.
	Vars map[string]any

	// Tasks holds the contexts of tasks reached so far, by id.
	Tasks map[int]*task.Task

	// TempFolder is the run's download folder.
	TempFolder string
}

// Run executes a workflow.
func (e *Executor) Run(ctx context.Context, wf *workflow.Workflow) (*RunResult, error) {
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	stats := &Stats{
		StartTime: e.clock(),
	}

	tempFolder := e.tempFolder(wf, stats.StartTime)
	if !e.DryRun {
		if err := os.MkdirAll(tempFolder, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create temp folder: %w", err)
		}
	}

	rctx := &RunContext{
		Workflow:   wf,
		Vars:       make(map[string]any),
		Tasks:      make(map[int]*task.Task),
		TempFolder: tempFolder,
	}

	for k, v := range wf.Vars {
		rctx.Vars[k] = v
	}
	env := e.Env
	if env == nil {
		env = getEnvMap()
	}
	rctx.Vars["env"] = env
	rctx.Vars["workflow"] = map[string]any{
		"name":        wf.Name,
		"id":          wf.ID,
		"temp_folder": tempFolder,
	}

	result := &RunResult{
		Success:    true,
		TempFolder: tempFolder,
		Stats:      stats,
		Tasks:      rctx.Tasks,
	}

	e.Output.WorkflowStart(wf.DisplayName(), wf.Path, tempFolder)

	for _, t := range wf.Tasks {
		if err := ctx.Err(); err != nil {
			result.Success = false
			e.Output.Error("Workflow interrupted: %v", err)
			break
		}

		stats.Tasks++

		taskResult, err := e.runTask(ctx, rctx, t)
		if err != nil {
			stats.Failed++
			if !t.IgnoreErrors {
				result.Success = false
				e.Output.Error("Workflow failed: %v", err)
				break
			}
			continue
		}

		switch taskResult.Status {
		case "ok":
			stats.OK++
		case "changed":
			stats.Changed++
		case "skipped":
			stats.Skipped++
		}
	}

	stats.EndTime = e.clock()
	e.Output.WorkflowEnd(stats)

	return result, nil
}

// TaskResult holds the result of a task execution.
type TaskResult struct {
	Status  string // ok, changed, skipped, failed
	Changed bool
	Data    map[string]any
}

// runTask executes a single task.
func (e *Executor) runTask(ctx context.Context, rctx *RunContext, t *workflow.Task) (*TaskResult, error) {
	taskName := t.String()
	failed := "failed"
	if t.IgnoreErrors {
		failed = "failed (ignored)"
	}

	tc := task.New(t.ID, t.Name, rctx.TempFolder, e.Output)
	rctx.Tasks[t.ID] = tc

	if t.When != "" {
		shouldRun, err := e.evaluateCondition(t.When, rctx)
		if err != nil {
			e.Output.TaskResult(taskName, failed, err.Error())
			return nil, fmt.Errorf("failed to evaluate 'when' condition: %w", err)
		}
		if !shouldRun {
			e.Output.TaskResult(taskName, "skipped", "when condition not met")
			return &TaskResult{Status: "skipped"}, nil
		}
	}

	e.Output.TaskStart(taskName, t.Module)

	mod := module.Get(t.Module)
	if mod == nil {
		err := fmt.Errorf("unknown module: %s", t.Module)
		e.Output.TaskResult(taskName, failed, err.Error())
		return nil, err
	}

	params, err := e.interpolateParams(t.Params, rctx)
	if err != nil {
		e.Output.TaskResult(taskName, failed, err.Error())
		return nil, fmt.Errorf("failed to interpolate parameters: %w", err)
	}

	selected := selectFiles(rctx, t.SelectFiles)
	tc.Select(selected...)
	if len(t.SelectFiles) > 0 {
		e.Output.Debug("task %d selected %d file(s) from tasks %s", t.ID, len(selected), joinIDs(t.SelectFiles))
	}

	if e.DryRun {
		e.Output.TaskResult(taskName, "skipped (dry run)", fmt.Sprintf("%d selected file(s)", len(selected)))
		return &TaskResult{Status: "skipped"}, nil
	}

	result, err := mod.Run(ctx, tc, params)
	if err != nil {
		e.Output.TaskResultDetailed(taskName, t.Module, failed, err.Error(), nil)
		return &TaskResult{Status: "failed"}, err
	}

	status := "ok"
	if result.Changed {
		status = "changed"
	}

	e.Output.TaskResultDetailed(taskName, t.Module, status, result.Message, result.Data)

	return &TaskResult{
		Status:  status,
		Changed: result.Changed,
		Data:    result.Data,
	}, nil
}

// selectFiles collects the files of the given tasks in id order.
func selectFiles(rctx *RunContext, ids []int) []*record.File {
	var files []*record.File
	for _, id := range ids {
		if tc, ok := rctx.Tasks[id]; ok {
			files = append(files, tc.Files()...)
		}
	}
	return files
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// tempFolder returns <root>/<workflow name>/<start time>.
func (e *Executor) tempFolder(wf *workflow.Workflow, start time.Time) string {
	root := e.TempRoot
	if root == "" {
		root = wf.TempDir
	}
	if root == "" {
		root = DefaultTempRoot
	}
	return filepath.Join(root, wf.Name, start.Format(tempFolderLayout))
}

func (e *Executor) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

// getEnvMap returns environment variables as a map.
func getEnvMap() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if idx := strings.Index(e, "="); idx > 0 {
			env[e[:idx]] = e[idx+1:]
		}
	}
	return env
}
