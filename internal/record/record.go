// Package record defines the file records tracked across workflow tasks.
package record

import (
	"fmt"
	"strings"
)

// File describes a local or remote file produced or consumed by a task.
type File struct {
	// Path is the full path of the file, local or remote.
	Path string

	// Name is the base name of Path.
	Name string

	// RenameTo is an optional target name used when the file is uploaded.
	RenameTo string

	// TaskID is the identifier of the task that created the record.
	TaskID int
}

// New creates a record for path owned by the given task.
func New(path string, taskID int) *File {
	return &File{
		Path:   path,
		Name:   baseName(path),
		TaskID: taskID,
	}
}

// TargetName returns RenameTo when set, otherwise Name.
func (f *File) TargetName() string {
	if f.RenameTo != "" {
		return f.RenameTo
	}
	return f.Name
}

// String returns a short description of the record.
func (f *File) String() string {
	return fmt.Sprintf("%s (task %d)", f.Path, f.TaskID)
}

// baseName handles both remote (slash) and Windows-style separators,
// whichever comes last.
func baseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if idx := strings.LastIndexAny(p, `/\`); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
