// Package task provides the per-task context handed to transfer plugins.
package task

import (
	"fmt"

	"github.com/eugenetaranov/courier/internal/record"
)

// Logger receives formatted informational messages.
type Logger interface {
	Info(format string, args ...any)
}

// Context is what a plugin may use from the task it runs in.
type Context interface {
	// ID returns the task identifier.
	ID() int

	// Infof logs a formatted informational message.
	Infof(format string, args ...any)

	// TempFolder returns the workflow temporary folder for downloads.
	TempFolder() string

	// AddFile appends a record to the task's file collection.
	AddFile(f *record.File)
}

// Task is the engine's concrete task context.
type Task struct {
	id         int
	name       string
	tempFolder string
	logger     Logger
	files      []*record.File
	selected   []*record.File
}

// New creates a task context.
func New(id int, name, tempFolder string, logger Logger) *Task {
	return &Task{
		id:         id,
		name:       name,
		tempFolder: tempFolder,
		logger:     logger,
	}
}

// ID returns the task identifier.
func (t *Task) ID() int { return t.id }

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// TempFolder returns the folder downloads are written to.
func (t *Task) TempFolder() string { return t.tempFolder }

// Infof writes a message prefixed with the task id. Nil loggers are ignored.
func (t *Task) Infof(format string, args ...any) {
	if t.logger == nil {
		return
	}
	t.logger.Info("[task %d] %s", t.id, fmt.Sprintf(format, args...))
}

// AddFile appends f to the task's file collection.
func (t *Task) AddFile(f *record.File) {
	t.files = append(t.files, f)
}

// Files returns the task's file collection in insertion order.
func (t *Task) Files() []*record.File {
	return t.files
}

// Select sets the files this task consumes from earlier tasks.
func (t *Task) Select(files ...*record.File) {
	t.selected = append(t.selected[:0:0], files...)
}

// Selected returns the files chosen with Select.
func (t *Task) Selected() []*record.File {
	return t.selected
}

// Ensure Task implements the Context interface.
var _ Context = (*Task)(nil)
