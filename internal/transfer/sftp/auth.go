package sftp

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eugenetaranov/courier/internal/transfer"
)

// Method identifies an authentication method offered to the server.
type Method int

const (
	// MethodPassword offers the configured password.
	MethodPassword Method = iota + 1

	// MethodPublicKey offers the configured private key.
	MethodPublicKey
)

// String returns the SSH method name.
func (m Method) String() string {
	switch m {
	case MethodPassword:
		return "password"
	case MethodPublicKey:
		return "publickey"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// Auth describes how to authenticate against the server.
type Auth struct {
	// User is the login name.
	User string

	// Methods lists the offered methods in order of preference.
	Methods []Method

	password string
	signer   ssh.Signer
}

// BuildAuth builds the authentication descriptor for cfg.
//
// With a private key configured both password and public-key are offered,
// in that order. When the password is empty only the key is offered, unless
// cfg.AlwaysOfferPassword is set. Without a key only password is offered.
func BuildAuth(cfg transfer.Config) (*Auth, error) {
	a := &Auth{
		User:     cfg.User,
		password: cfg.Password,
	}

	if cfg.PrivateKeyPath == "" {
		a.Methods = []Method{MethodPassword}
		return a, nil
	}

	signer, err := loadSigner(cfg.PrivateKeyPath, cfg.Passphrase)
	if err != nil {
		return nil, transfer.Wrap("load key", cfg.PrivateKeyPath, transfer.ErrCredentials, err)
	}
	a.signer = signer

	if cfg.Password != "" || cfg.AlwaysOfferPassword {
		a.Methods = append(a.Methods, MethodPassword)
	}
	a.Methods = append(a.Methods, MethodPublicKey)
	return a, nil
}

// loadSigner reads and parses a private key, decrypting it when a
// passphrase is given.
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	if passphrase == "" {
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) {
				return nil, fmt.Errorf("private key is encrypted and no passphrase was given: %w", err)
			}
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return signer, nil
	}

	signer, err := ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: %w", err)
	}
	return signer, nil
}

// SSHMethods converts the descriptor into x/crypto/ssh auth methods.
func (a *Auth) SSHMethods() []ssh.AuthMethod {
	methods := make([]ssh.AuthMethod, 0, len(a.Methods))
	for _, m := range a.Methods {
		switch m {
		case MethodPassword:
			methods = append(methods, ssh.Password(a.password))
		case MethodPublicKey:
			methods = append(methods, ssh.PublicKeys(a.signer))
		}
	}
	return methods
}

// ClientConfig builds the SSH client configuration.
func (a *Auth) ClientConfig(hostKey ssh.HostKeyCallback, timeout time.Duration) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            a.User,
		Auth:            a.SSHMethods(),
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}
}

// hostKeyCallback returns a known_hosts verifier, or accepts any key when
// no file is configured.
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, transfer.Wrap("load known hosts", knownHostsFile, transfer.ErrCredentials, err)
	}
	return cb, nil
}
