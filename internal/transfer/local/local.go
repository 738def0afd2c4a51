// Package local provides a transfer plugin whose remote side is a directory
// on the local machine.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
	"github.com/eugenetaranov/courier/internal/transfer"
)

// Protocol is the registry name of this plugin.
const Protocol = "local"

func init() {
	transfer.Register(Protocol, func(cfg transfer.Config, t task.Context) (transfer.Plugin, error) {
		p, err := New(cfg, t)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Plugin moves files in and out of a local directory.
type Plugin struct {
	dir  string
	task task.Context
	fs   billy.Filesystem
}

// Option configures the local plugin.
type Option func(*Plugin)

// WithFilesystem replaces the host filesystem. dir is then interpreted
// inside fs.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(p *Plugin) {
		p.fs = fs
	}
}

// New creates a local plugin for cfg.Path.
func New(cfg transfer.Config, t task.Context, opts ...Option) (*Plugin, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%s: 'path' is required", Protocol)
	}

	p := &Plugin{
		dir:  filepath.Clean(cfg.Path),
		task: t,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.fs == nil {
		abs, err := filepath.Abs(p.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", cfg.Path, err)
		}
		p.dir = abs
		p.fs = osfs.New("/")
	}

	return p, nil
}

// List returns a record for every regular file in the directory.
func (p *Plugin) List(ctx context.Context) ([]*record.File, error) {
	root, err := p.root()
	if err != nil {
		return nil, err
	}

	entries, err := root.ReadDir("/")
	if err != nil {
		return nil, transfer.Wrap("list", p.dir, transfer.Classify(err, transfer.ErrIO), err)
	}

	var files []*record.File
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		full := filepath.Join(p.dir, entry.Name())
		files = append(files, record.New(full, p.task.ID()))
		p.task.Infof("local: file %s found in %s", full, p.dir)
	}

	return files, nil
}

// Upload copies the file into the directory under its target name.
func (p *Plugin) Upload(ctx context.Context, file *record.File) error {
	root, err := p.root()
	if err != nil {
		return err
	}

	src, err := os.Open(file.Path)
	if err != nil {
		return transfer.Wrap("upload", file.Path, transfer.Classify(err, transfer.ErrIO), err)
	}
	defer src.Close()

	dst, err := root.Create(file.TargetName())
	if err != nil {
		return transfer.Wrap("upload", file.TargetName(), transfer.Classify(err, transfer.ErrIO), err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return transfer.Wrap("upload", file.TargetName(), transfer.ErrIO, err)
	}
	if err := dst.Close(); err != nil {
		return transfer.Wrap("upload", file.TargetName(), transfer.ErrIO, err)
	}

	p.task.Infof("local: file %s sent to %s", file.Path, p.dir)
	return nil
}

// Download copies the file from the directory into the task temp folder.
func (p *Plugin) Download(ctx context.Context, file *record.File) error {
	root, err := p.root()
	if err != nil {
		return err
	}

	name, err := p.rel(file.Path)
	if err != nil {
		return err
	}

	src, err := root.Open(name)
	if err != nil {
		return transfer.Wrap("download", file.Path, transfer.Classify(err, transfer.ErrIO), err)
	}
	defer src.Close()

	dest := filepath.Join(p.task.TempFolder(), file.Name)
	out, err := os.Create(dest)
	if err != nil {
		return transfer.Wrap("download", dest, transfer.Classify(err, transfer.ErrIO), err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return transfer.Wrap("download", file.Path, transfer.ErrIO, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return transfer.Wrap("download", dest, transfer.ErrIO, err)
	}

	p.task.AddFile(record.New(dest, p.task.ID()))
	p.task.Infof("local: file %s downloaded from %s", file.Path, p.dir)
	return nil
}

// Delete removes the file from the directory.
func (p *Plugin) Delete(ctx context.Context, file *record.File) error {
	root, err := p.root()
	if err != nil {
		return err
	}

	name, err := p.rel(file.Path)
	if err != nil {
		return err
	}

	info, err := root.Lstat(name)
	if err != nil {
		return transfer.Wrap("delete", file.Path, transfer.Classify(err, transfer.ErrIO), err)
	}
	if !info.Mode().IsRegular() {
		return transfer.Wrap("delete", file.Path, transfer.ErrNotFound, errors.New("not a regular file"))
	}

	if err := root.Remove(name); err != nil {
		return transfer.Wrap("delete", file.Path, transfer.Classify(err, transfer.ErrIO), err)
	}

	p.task.Infof("local: file %s deleted from %s", file.Path, p.dir)
	return nil
}

// String returns a description of the endpoint.
func (p *Plugin) String() string {
	return "local://" + filepath.ToSlash(p.dir)
}

// root returns a filesystem rooted at the configured directory.
func (p *Plugin) root() (billy.Filesystem, error) {
	info, err := p.fs.Stat(p.dir)
	if err != nil {
		return nil, transfer.Wrap("chdir", p.dir, transfer.ErrRemotePath, err)
	}
	if !info.IsDir() {
		return nil, transfer.Wrap("chdir", p.dir, transfer.ErrRemotePath, fmt.Errorf("not a directory"))
	}

	root, err := p.fs.Chroot(p.dir)
	if err != nil {
		return nil, transfer.Wrap("chdir", p.dir, transfer.ErrRemotePath, err)
	}
	return root, nil
}

// rel converts a record path into a path inside the directory. Absolute
// paths must point into the directory.
func (p *Plugin) rel(name string) (string, error) {
	if !filepath.IsAbs(name) {
		return name, nil
	}

	rel, err := filepath.Rel(p.dir, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", transfer.Wrap("resolve", name, transfer.ErrNotFound, fmt.Errorf("outside %s", p.dir))
	}
	return rel, nil
}

// Ensure Plugin implements the transfer.Plugin interface.
var _ transfer.Plugin = (*Plugin)(nil)
