// Package ftp implements the transfer plugin for FTP and FTPS servers.
package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/jlaffaye/ftp"

	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
	"github.com/eugenetaranov/courier/internal/transfer"
)

// Registry names of the plugins in this package.
const (
	ProtocolFTP  = "ftp"
	ProtocolFTPS = "ftps"
)

// Encryption modes for FTPS.
const (
	EncryptionExplicit = "explicit"
	EncryptionImplicit = "implicit"
)

// Default ports.
const (
	DefaultPort         = 21
	DefaultImplicitPort = 990
)

func init() {
	for _, protocol := range []string{ProtocolFTP, ProtocolFTPS} {
		transfer.Register(protocol, func(cfg transfer.Config, t task.Context) (transfer.Plugin, error) {
			p, err := New(cfg, t)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}
}

// Plugin performs file operations on an FTP or FTPS server.
type Plugin struct {
	cfg    transfer.Config
	task   task.Context
	dialer Dialer
}

// Option configures the FTP plugin.
type Option func(*Plugin)

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(p *Plugin) {
		p.dialer = d
	}
}

// New creates an FTP plugin. cfg.Protocol "ftps" enables TLS.
func New(cfg transfer.Config, t task.Context, opts ...Option) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Protocol, err)
	}

	switch cfg.Encryption {
	case "", EncryptionExplicit, EncryptionImplicit:
	default:
		return nil, fmt.Errorf("invalid encryption: %s (must be explicit or implicit)", cfg.Encryption)
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

	err := p.withConn(ctx, func(c Conn, dir string) error {
		entries, err := c.List("")
		if err != nil {
			return transfer.Wrap("list", dir, classify(err, transfer.ErrIO), err)
		}

		for _, entry := range entries {
			if entry.Type != ftp.EntryTypeFile {
				continue
			}
			full := path.Join(dir, entry.Name)
			files = append(files, record.New(full, p.task.ID()))
			p.task.Infof("%s: file %s found on %s", p.name(), full, p.cfg.Server)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Upload stores the local file under its target name, replacing any
// existing file.
func (p *Plugin) Upload(ctx context.Context, file *record.File) error {
	return p.withConn(ctx, func(c Conn, dir string) error {
		src, err := os.Open(file.Path)
		if err != nil {
			return transfer.Wrap("upload", file.Path, transfer.Classify(err, transfer.ErrIO), err)
		}
		defer src.Close()

		if err := c.Stor(file.TargetName(), src); err != nil {
			return transfer.Wrap("upload", path.Join(dir, file.TargetName()), classify(err, transfer.ErrIO), err)
		}

		p.task.Infof("%s: file %s sent to %s", p.name(), file.Path, p.cfg.Server)
		return nil
	})
}

// Download retrieves the remote file into the task temp folder and adds a
// record for the local copy to the task.
func (p *Plugin) Download(ctx context.Context, file *record.File) error {
	return p.withConn(ctx, func(c Conn, dir string) error {
		r, err := c.Retr(file.Path)
		if err != nil {
			return transfer.Wrap("download", file.Path, classify(err, transfer.ErrIO), err)
		}

		dest := filepath.Join(p.task.TempFolder(), file.Name)
		out, err := os.Create(dest)
		if err != nil {
			r.Close()
			return transfer.Wrap("download", dest, transfer.Classify(err, transfer.ErrIO), err)
		}

		if _, err := io.Copy(out, r); err != nil {
			r.Close()
			out.Close()
			os.Remove(dest)
			return transfer.Wrap("download", file.Path, transfer.ErrIO, err)
		}
		// The server's final transfer reply (426, 451) surfaces on Close.
		if err := r.Close(); err != nil {
			out.Close()
			os.Remove(dest)
			return transfer.Wrap("download", file.Path, classify(err, transfer.ErrIO), err)
		}
		if err := out.Close(); err != nil {
			os.Remove(dest)
			return transfer.Wrap("download", dest, transfer.ErrIO, err)
		}

		p.task.AddFile(record.New(dest, p.task.ID()))
		p.task.Infof("%s: file %s downloaded from %s", p.name(), file.Path, p.cfg.Server)
		return nil
	})
}

// Delete removes the remote file.
func (p *Plugin) Delete(ctx context.Context, file *record.File) error {
	return p.withConn(ctx, func(c Conn, dir string) error {
		if err := c.Delete(file.Path); err != nil {
			return transfer.Wrap("delete", file.Path, classify(err, transfer.ErrIO), err)
		}

		p.task.Infof("%s: file %s deleted from %s", p.name(), file.Path, p.cfg.Server)
		return nil
	})
}

// String returns a description of the endpoint.
func (p *Plugin) String() string {
	return fmt.Sprintf("%s://%s@%s%s", p.name(), p.cfg.User, p.addr(), p.cfg.Path)
}

func (p *Plugin) name() string {
	if p.secure() {
		return ProtocolFTPS
	}
	return ProtocolFTP
}

func (p *Plugin) secure() bool {
	return p.cfg.Protocol == ProtocolFTPS
}

func (p *Plugin) addr() string {
	port := DefaultPort
	if p.secure() && p.cfg.Encryption == EncryptionImplicit {
		port = DefaultImplicitPort
	}
	return net.JoinHostPort(p.cfg.Server, strconv.Itoa(p.cfg.PortOr(port)))
}

func (p *Plugin) dialOptions() DialOptions {
	opts := DialOptions{Timeout: p.cfg.TimeoutDuration()}
	if p.secure() {
		opts.TLS = &tls.Config{
			ServerName:         p.cfg.Server,
			InsecureSkipVerify: p.cfg.InsecureSkipVerify,
		}
		opts.Implicit = p.cfg.Encryption == EncryptionImplicit
	}
	return opts
}

// withConn dials, logs in, changes into the configured path, runs fn and
// quits. Quit runs on every return path; its error is reported only when
// fn succeeded.
func (p *Plugin) withConn(ctx context.Context, fn func(c Conn, dir string) error) (err error) {
	c, err := p.dialer.Dial(ctx, p.addr(), p.dialOptions())
	if err != nil {
		return transfer.Wrap("connect", p.addr(), transfer.ErrConnection, err)
	}
	defer func() {
		if qerr := c.Quit(); qerr != nil && err == nil {
			err = transfer.Wrap("disconnect", p.addr(), transfer.ErrConnection, qerr)
		}
	}()

	if err := c.Login(p.cfg.User, p.cfg.Password); err != nil {
		return transfer.Wrap("login", p.cfg.User, classify(err, transfer.ErrAuthentication), err)
	}

	if p.cfg.Path != "" {
		if err := c.ChangeDir(p.cfg.Path); err != nil {
			return transfer.Wrap("chdir", p.cfg.Path, transfer.ErrRemotePath, err)
		}
	}

	dir, err := c.CurrentDir()
	if err != nil {
		return transfer.Wrap("chdir", p.cfg.Path, transfer.ErrRemotePath, err)
	}

	return fn(c, dir)
}

// classify maps FTP reply codes onto transfer error kinds.
func classify(err, fallback error) error {
	var te *textproto.Error
	if errors.As(err, &te) {
		switch te.Code {
		case ftp.StatusNotLoggedIn:
			return transfer.ErrAuthentication
		case ftp.StatusFileUnavailable:
			return transfer.ErrNotFound
		}
	}
	return transfer.Classify(err, fallback)
}

// Ensure Plugin implements the transfer.Plugin interface.
var _ transfer.Plugin = (*Plugin)(nil)
