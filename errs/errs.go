// Package errs defines the failure taxonomy shared by every sealer package.
//
// Each failure is an *Error carrying a Kind. Kind itself implements error so callers can classify with errors.Is:
//
//	if errors.Is(err, errs.InvalidPassword) {
//		// ask for the password again.
//	}
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// Traversal is returned when a path cannot be enumerated while building the manifest.
	Traversal Kind = "traversal error"
	// IO is returned for create/open/read/write failures on archives or plain files.
	IO Kind = "i/o error"
	// InvalidPassword is returned when the archive password check fails.
	InvalidPassword Kind = "invalid password"
	// PathTraversal is returned when an archive entry would be written outside the destination directory.
	PathTraversal Kind = "path traversal rejected"
	// ResourceLimit is returned when an archive exceeds the entry count or total size limits.
	ResourceLimit Kind = "resource limit exceeded"
	// Cancelled is returned when the job was cancelled by the user.
	Cancelled Kind = "cancelled"
	// Format is returned for corrupt or unsupported archives.
	Format Kind = "format error"
)

func (k Kind) Error() string {
	return string(k)
}

// Error is the error type returned by all sealer packages.
type Error struct {
	Kind Kind
	// Op describes what was being done, e.g. "open entry".
	Op string
	// Path is the file or archive entry involved, if any.
	Path string
	Err  error
}

// New creates a new *Error.
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf creates a new *Error whose cause is formatted with fmt.Errorf.
func Errorf(kind Kind, op, path, format string, a ...any) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, a...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		if e.Path != "" {
			msg = fmt.Sprintf(`%s: %s "%s"`, msg, e.Op, e.Path)
		} else {
			msg = fmt.Sprintf("%s: %s", msg, e.Op)
		}
	} else if e.Path != "" {
		msg = fmt.Sprintf(`%s: "%s"`, msg, e.Path)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of this error.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
//
// Context cancellation is reported as Cancelled. Any other error without a Kind is reported as IO.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}

	return IO
}

// Wrap classifies err with the given kind unless it has been classified already.
//
// A nil err returns nil.
func Wrap(err error, kind Kind, op, path string) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = Cancelled
	}

	return New(kind, op, path, err)
}
