// Package transfer defines the plugin interface for moving files to and from
// remote hosts, and the registry plugins are selected from.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/eugenetaranov/courier/internal/record"
)

// Commands a transfer task can run.
const (
	CommandList     = "list"
	CommandUpload   = "upload"
	CommandDownload = "download"
	CommandDelete   = "delete"
)

// Plugin performs file operations against one configured endpoint.
// Every call opens and tears down its own connection.
type Plugin interface {
	// List returns a record for every regular file in the configured path.
	List(ctx context.Context) ([]*record.File, error)

	// Upload sends a local file to the configured path.
	Upload(ctx context.Context, file *record.File) error

	// Download fetches a remote file into the task temp folder and adds
	// a record for the local copy to the task.
	Download(ctx context.Context, file *record.File) error

	// Delete removes a remote file.
	Delete(ctx context.Context, file *record.File) error
}

// Config holds connection parameters shared by all plugins.
type Config struct {
	// Protocol selects the plugin (sftp, ftp, ftps, local).
	Protocol string `yaml:"protocol"`

	// Server is the remote hostname or IP address.
	Server string `yaml:"server"`

	// Port is the remote port. Zero selects the protocol default.
	Port int `yaml:"port"`

	// User is the username for authentication.
	User string `yaml:"user"`

	// Password is the password for authentication.
	Password string `yaml:"password"`

	// Path is the remote working directory.
	Path string `yaml:"path"`

	// PrivateKeyPath is an optional private key file (sftp only).
	PrivateKeyPath string `yaml:"private_key_path"`

	// Passphrase decrypts PrivateKeyPath when set.
	Passphrase string `yaml:"passphrase"`

	// AlwaysOfferPassword offers password authentication even when a key
	// is configured and Password is empty.
	AlwaysOfferPassword bool `yaml:"always_offer_password"`

	// KnownHosts is a known_hosts file used to verify the server key.
	// When empty any host key is accepted.
	KnownHosts string `yaml:"known_hosts"`

	// Timeout is the connection timeout in seconds. Zero uses the client
	// library default.
	Timeout int `yaml:"timeout"`

	// Encryption selects explicit or implicit TLS (ftps only).
	Encryption string `yaml:"encryption"`

	// InsecureSkipVerify disables TLS certificate checks (ftps only).
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Validate checks the parameters every remote plugin needs.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("'server' is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("'user' is required")
	}
	return nil
}

// PortOr returns the configured port, or def when none is set.
func (c *Config) PortOr(def int) int {
	if c.Port == 0 {
		return def
	}
	return c.Port
}

// TimeoutDuration returns Timeout as a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
