package transfer

import (
	"errors"
	"fmt"
	"os"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConnection indicates the host could not be reached.
	ErrConnection = errors.New("connection failed")

	// ErrAuthentication indicates the server rejected the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrCredentials indicates a private key could not be loaded.
	ErrCredentials = errors.New("invalid credentials")

	// ErrRemotePath indicates the remote working directory is unusable.
	ErrRemotePath = errors.New("remote path unavailable")

	// ErrNotFound indicates the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrPermission indicates the operation was refused.
	ErrPermission = errors.New("permission denied")

	// ErrIO indicates a local or remote read/write failure.
	ErrIO = errors.New("i/o error")
)

// Error describes a failed plugin operation.
type Error struct {
	// Op is the operation that failed (connect, list, upload, ...).
	Op string

	// Path is the file or directory involved, if any.
	Path string

	// Kind is one of the Err* values above.
	Kind error

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Kind != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Wrap builds an *Error. A nil err yields nil.
func Wrap(op, path string, kind, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

// Classify maps standard library error values onto a kind, falling back
// to fallback when nothing matches.
func Classify(err, fallback error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, os.ErrPermission):
		return ErrPermission
	default:
		return fallback
	}
}
