package errors

import (
	"fmt"
)

// ErrFileChanged is returned when a source file changes while it's being
// copied or patched into the replica.
var ErrFileChanged = New("file contents changed during sync")

// ErrScheduleAlreadyActive is returned when a periodic synchronization is
// requested while another one is still active on the same Synchronizer.
var ErrScheduleAlreadyActive = New("a periodic synchronization is already active")

// ErrTempNameExhausted is returned when no unused temporary file name could
// be found next to a file that's being replaced.
var ErrTempNameExhausted = New("exhausted attempts to pick a temporary file name")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// SourceRootNotFound is returned when the root of the tree to synchronize
// doesn't exist. The replica is never touched in this case.
type SourceRootNotFound struct {
	Path string
}

func (err SourceRootNotFound) Error() string {
	return fmt.Sprintf("source folder %q does not exist", err.Path)
}

// DirectoryCreateFailed is reported when a replica directory can't be
// created. The directory's whole subtree is skipped for the pass.
type DirectoryCreateFailed struct {
	Path string
	Err  error
}

func (err DirectoryCreateFailed) Error() string {
	return fmt.Sprintf("create directory %q: %s", err.Path, err.Err)
}

func (err DirectoryCreateFailed) Unwrap() error {
	return err.Err
}

// FileOperationFailed is reported when a single entry (file or directory)
// can't be copied, updated, compared or removed. Only that entry is skipped.
type FileOperationFailed struct {
	Op   string
	Path string
	Err  error
}

func (err FileOperationFailed) Error() string {
	return fmt.Sprintf("%s %q: %s", err.Op, err.Path, err.Err)
}

func (err FileOperationFailed) Unwrap() error {
	return err.Err
}
