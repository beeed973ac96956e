// Package errors contains the error helpers and error types shared by
// foldersync. Context is attached with WithContext so that every error that
// reaches the user reads like a path through the code, e.g.
// "update a/b.txt: open replica: permission denied".
package errors

import (
	"fmt"

	pkgErrors "github.com/pkg/errors"
)

// New returns an error with the given message. The error records the stack
// at the point it was called.
func New(msg string) error {
	return pkgErrors.New(msg)
}

// Errorf formats according to the format specifier and returns the string as
// an error.
func Errorf(format string, args ...interface{}) error {
	return pkgErrors.Errorf(format, args...)
}

// WithContext annotates err with `context`. The resulting error message is
// "context: err". It returns nil if err is nil.
func WithContext(err error, context string) error {
	return pkgErrors.WithMessage(err, context)
}

// RootCause returns the innermost error that was annotated with WithContext.
// Typed errors that wrap another error (e.g. FileOperationFailed) are treated
// as roots so that callers can switch on them.
func RootCause(err error) error {
	return pkgErrors.Cause(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return pkgErrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return pkgErrors.As(err, target)
}

// FriendlyError is an error whose message is meant to be shown to the user
// as is, without the context chain.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates an error that's printed directly to the user.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}
