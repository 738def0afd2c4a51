package sftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	pkgsftp "github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Client is the subset of an SFTP client the plugin uses.
type Client interface {
	Getwd() (string, error)
	Stat(p string) (os.FileInfo, error)
	Lstat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	Create(p string) (io.WriteCloser, error)
	Remove(p string) error
	Close() error
}

// Dialer opens SFTP clients.
type Dialer interface {
	Dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Client, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Client, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Client, error) {
	return f(ctx, addr, cfg)
}

// netDialer connects over TCP and starts the sftp subsystem.
type netDialer struct{}

func (netDialer) Dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, &handshakeError{err: err}
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := pkgsftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("start sftp subsystem: %w", err)
	}

	return &remoteClient{ssh: sshClient, sftp: sftpClient}, nil
}

// handshakeError marks failures during the SSH handshake, which is where
// credentials are rejected.
type handshakeError struct {
	err error
}

func (e *handshakeError) Error() string { return fmt.Sprintf("ssh handshake: %v", e.err) }
func (e *handshakeError) Unwrap() error { return e.err }

// remoteClient owns both the SSH connection and the SFTP session on top.
type remoteClient struct {
	ssh  *ssh.Client
	sftp *pkgsftp.Client
}

func (c *remoteClient) Getwd() (string, error)                  { return c.sftp.Getwd() }
func (c *remoteClient) Stat(p string) (os.FileInfo, error)      { return c.sftp.Stat(p) }
func (c *remoteClient) Lstat(p string) (os.FileInfo, error)     { return c.sftp.Lstat(p) }
func (c *remoteClient) ReadDir(p string) ([]os.FileInfo, error) { return c.sftp.ReadDir(p) }
func (c *remoteClient) Remove(p string) error                   { return c.sftp.Remove(p) }

func (c *remoteClient) Open(p string) (io.ReadCloser, error) {
	f, err := c.sftp.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create truncates an existing file.
func (c *remoteClient) Create(p string) (io.WriteCloser, error) {
	f, err := c.sftp.Create(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *remoteClient) Close() error {
	sftpErr := c.sftp.Close()
	sshErr := c.ssh.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}
