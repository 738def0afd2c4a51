// Package files provides a module that loads local files into a task.
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/eugenetaranov/courier/internal/module"
	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
)

func init() {
	module.Register(&Module{})
}

// Module adds existing local files to the task's file collection.
type Module struct{}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "files"
}

// Run executes the files module.
//
// Parameters:
//   - paths (list|string): Individual files to load
//   - folder (string): Directory whose regular files are loaded
//   - pattern (string): Glob applied to file names found in folder
//   - recursive (bool): Descend into subdirectories of folder (default: false)
func (m *Module) Run(ctx context.Context, t *task.Task, params map[string]any) (*module.Result, error) {
	paths := module.StringSlice(params, "paths")
	var folder string
	if _, ok := params["folder"]; ok {
		var err error
		if folder, err = module.RequireString(params, "folder"); err != nil {
			return nil, err
		}
	}
	pattern := module.String(params, "pattern", "")
	recursive := module.Bool(params, "recursive", false)

	if len(paths) == 0 && folder == "" {
		return nil, fmt.Errorf("either 'paths' or 'folder' parameter is required")
	}
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}

	var found []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%s is not a regular file", p)
		}
		found = append(found, p)
	}

	if folder != "" {
		matches, err := scanFolder(folder, pattern, recursive)
		if err != nil {
			return nil, err
		}
		found = append(found, matches...)
	}

	for _, p := range found {
		t.AddFile(record.New(p, t.ID()))
	}

	if len(found) == 0 {
		return module.Unchanged("no files found"), nil
	}

	return module.ChangedWithData(fmt.Sprintf("loaded %d file(s)", len(found)), map[string]any{
		"count": len(found),
	}), nil
}

// scanFolder returns the regular files in folder in lexical order.
func scanFolder(folder, pattern string, recursive bool) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var found []string
	err = filepath.WalkDir(folder, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != folder && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, d.Name()); !ok {
				return nil
			}
		}
		found = append(found, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	sort.Strings(found)
	return found, nil
}

// Ensure Module implements the module.Module interface.
var _ module.Module = (*Module)(nil)
