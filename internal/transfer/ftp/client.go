package ftp

import (
	"context"
	"crypto/tls"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// Conn is the subset of an FTP connection the plugin uses.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	CurrentDir() (string, error)
	List(path string) ([]*ftp.Entry, error)
	Stor(path string, r io.Reader) error
	Retr(path string) (io.ReadCloser, error)
	Delete(path string) error
	Quit() error
}

// DialOptions carries the connection settings derived from the config.
type DialOptions struct {
	Timeout time.Duration
	TLS     *tls.Config
	// Implicit selects implicit TLS; otherwise TLS is negotiated with AUTH TLS.
	Implicit bool
}

// Dialer opens FTP connections.
type Dialer interface {
	Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string, opts DialOptions) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error) {
	return f(ctx, addr, opts)
}

type netDialer struct{}

func (netDialer) Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error) {
	dialOpts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if opts.Timeout > 0 {
		dialOpts = append(dialOpts, ftp.DialWithTimeout(opts.Timeout))
	}
	if opts.TLS != nil {
		if opts.Implicit {
			dialOpts = append(dialOpts, ftp.DialWithTLS(opts.TLS))
		} else {
			dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(opts.TLS))
		}
	}

	c, err := ftp.Dial(addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &serverConn{c: c}, nil
}

// serverConn adapts *ftp.ServerConn to Conn.
type serverConn struct {
	c *ftp.ServerConn
}

func (s *serverConn) Login(user, password string) error      { return s.c.Login(user, password) }
func (s *serverConn) ChangeDir(path string) error            { return s.c.ChangeDir(path) }
func (s *serverConn) CurrentDir() (string, error)            { return s.c.CurrentDir() }
func (s *serverConn) List(path string) ([]*ftp.Entry, error) { return s.c.List(path) }
func (s *serverConn) Stor(path string, r io.Reader) error    { return s.c.Stor(path, r) }
func (s *serverConn) Delete(path string) error               { return s.c.Delete(path) }
func (s *serverConn) Quit() error                            { return s.c.Quit() }

func (s *serverConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := s.c.Retr(path)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
