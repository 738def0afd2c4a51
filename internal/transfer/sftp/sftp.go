// Package sftp implements the transfer plugin for SSH File Transfer Protocol
// servers, authenticating with a password, a private key, or both.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"

	pkgsftp "github.com/pkg/sftp"

	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
	"github.com/eugenetaranov/courier/internal/transfer"
)

// Protocol is the registry name of this plugin.
const Protocol = "sftp"

// DefaultPort is used when the configuration does not set one.
const DefaultPort = 22

func init() {
	transfer.Register(Protocol, func(cfg transfer.Config, t task.Context) (transfer.Plugin, error) {
		p, err := New(cfg, t)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Plugin performs file operations on an SFTP server.
type Plugin struct {
	cfg    transfer.Config
	task   task.Context
	dialer Dialer
}

// Option configures the SFTP plugin.
type Option func(*Plugin)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(p *Plugin) {
		p.dialer = d
	}
}

// New creates an SFTP plugin for cfg bound to the task t.
func New(cfg transfer.Config, t task.Context, opts ...Option) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sftp: %w", err)
	}

	p := &Plugin{
		cfg:    cfg,
		task:   t,
		dialer: netDialer{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// List returns a record for every regular file in the remote path.
func (p *Plugin) List(ctx context.Context) ([]*record.File, error) {
	var files []*record.File

	err := p.withSession(ctx, func(s *session) error {
		entries, err := s.client.ReadDir(s.dir)
		if err != nil {
			return transfer.Wrap("list", s.dir, classify(err, transfer.ErrIO), err)
		}

		for _, entry := range entries {
			if !entry.Mode().IsRegular() {
				continue
			}
			full := path.Join(s.dir, entry.Name())
			files = append(files, record.New(full, p.task.ID()))
			p.task.Infof("sftp: file %s found on %s", full, p.cfg.Server)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Upload streams the local file to the remote path under its target name,
// replacing any existing file.
func (p *Plugin) Upload(ctx context.Context, file *record.File) error {
	return p.withSession(ctx, func(s *session) error {
		src, err := os.Open(file.Path)
		if err != nil {
			return transfer.Wrap("upload", file.Path, transfer.Classify(err, transfer.ErrIO), err)
		}
		defer src.Close()

		dst := s.resolve(file.TargetName())
		w, err := s.client.Create(dst)
		if err != nil {
			return transfer.Wrap("upload", dst, classify(err, transfer.ErrIO), err)
		}

		if _, err := io.Copy(w, src); err != nil {
			w.Close()
			return transfer.Wrap("upload", dst, classify(err, transfer.ErrIO), err)
		}
		if err := w.Close(); err != nil {
			return transfer.Wrap("upload", dst, classify(err, transfer.ErrIO), err)
		}

		p.task.Infof("sftp: file %s sent to %s", file.Path, p.cfg.Server)
		return nil
	})
}

// Download streams the remote file into the task temp folder and adds a
// record for the local copy to the task.
func (p *Plugin) Download(ctx context.Context, file *record.File) error {
	return p.withSession(ctx, func(s *session) error {
		src := s.resolve(file.Path)
		r, err := s.client.Open(src)
		if err != nil {
			return transfer.Wrap("download", src, classify(err, transfer.ErrIO), err)
		}
		defer r.Close()

		dest := filepath.Join(p.task.TempFolder(), file.Name)
		out, err := os.Create(dest)
		if err != nil {
			return transfer.Wrap("download", dest, transfer.Classify(err, transfer.ErrIO), err)
		}

		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			os.Remove(dest)
			return transfer.Wrap("download", src, classify(err, transfer.ErrIO), err)
		}
		if err := out.Close(); err != nil {
			os.Remove(dest)
			return transfer.Wrap("download", dest, transfer.ErrIO, err)
		}

		p.task.AddFile(record.New(dest, p.task.ID()))
		p.task.Infof("sftp: file %s downloaded from %s", file.Path, p.cfg.Server)
		return nil
	})
}

// Delete removes the remote file.
func (p *Plugin) Delete(ctx context.Context, file *record.File) error {
	return p.withSession(ctx, func(s *session) error {
		target := s.resolve(file.Path)

		// Remove falls back to rmdir on some servers, so only regular
		// files may reach it.
		info, err := s.client.Lstat(target)
		if err != nil {
			return transfer.Wrap("delete", target, classify(err, transfer.ErrIO), err)
		}
		if !info.Mode().IsRegular() {
			return transfer.Wrap("delete", target, transfer.ErrNotFound, errors.New("not a regular file"))
		}

		if err := s.client.Remove(target); err != nil {
			return transfer.Wrap("delete", target, classify(err, transfer.ErrIO), err)
		}

		p.task.Infof("sftp: file %s deleted from %s", file.Path, p.cfg.Server)
		return nil
	})
}

// String returns a description of the endpoint.
func (p *Plugin) String() string {
	return fmt.Sprintf("sftp://%s@%s%s", p.cfg.User, p.addr(), p.cfg.Path)
}

func (p *Plugin) addr() string {
	return net.JoinHostPort(p.cfg.Server, strconv.Itoa(p.cfg.PortOr(DefaultPort)))
}

// session is one connection positioned in the remote working directory.
type session struct {
	client Client
	dir    string
}

// resolve makes a relative remote path absolute against the session dir.
func (s *session) resolve(p string) string {
	if path.IsAbs(p) {
		return p
	}
	return path.Join(s.dir, p)
}

// withSession connects, moves into the configured path, runs fn and
// disconnects. The client is closed on every return path; a close error
// is reported only when fn succeeded.
func (p *Plugin) withSession(ctx context.Context, fn func(s *session) error) (err error) {
	auth, err := BuildAuth(p.cfg)
	if err != nil {
		return err
	}

	hostKey, err := hostKeyCallback(p.cfg.KnownHosts)
	if err != nil {
		return err
	}

	client, err := p.dialer.Dial(ctx, p.addr(), auth.ClientConfig(hostKey, p.cfg.TimeoutDuration()))
	if err != nil {
		return transfer.Wrap("connect", p.addr(), connectKind(err), err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil && err == nil && !errors.Is(cerr, io.EOF) {
			err = transfer.Wrap("disconnect", p.addr(), transfer.ErrConnection, cerr)
		}
	}()

	s, err := changeDir(client, p.cfg.Path)
	if err != nil {
		return err
	}

	return fn(s)
}

// changeDir resolves dir against the login directory and checks that it
// is a directory.
func changeDir(c Client, dir string) (*session, error) {
	target := dir
	if target == "" || !path.IsAbs(target) {
		wd, err := c.Getwd()
		if err != nil {
			return nil, transfer.Wrap("chdir", dir, transfer.ErrRemotePath, err)
		}
		target = path.Join(wd, target)
	}

	info, err := c.Stat(target)
	if err != nil {
		return nil, transfer.Wrap("chdir", target, transfer.ErrRemotePath, err)
	}
	if !info.IsDir() {
		return nil, transfer.Wrap("chdir", target, transfer.ErrRemotePath, errors.New("not a directory"))
	}

	return &session{client: c, dir: target}, nil
}

// connectKind separates rejected credentials from unreachable hosts.
func connectKind(err error) error {
	var he *handshakeError
	if errors.As(err, &he) {
		return transfer.ErrAuthentication
	}
	return transfer.ErrConnection
}

// classify maps SFTP status codes onto transfer error kinds.
func classify(err, fallback error) error {
	var se *pkgsftp.StatusError
	if errors.As(err, &se) {
		switch se.FxCode() {
		case pkgsftp.ErrSSHFxNoSuchFile:
			return transfer.ErrNotFound
		case pkgsftp.ErrSSHFxPermissionDenied:
			return transfer.ErrPermission
		}
	}
	return transfer.Classify(err, fallback)
}

// Ensure Plugin implements the transfer.Plugin interface.
var _ transfer.Plugin = (*Plugin)(nil)
