package errors

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	assert.Nil(t, WithContext(nil, "context"))

	err := WithContext(WithContext(os.ErrPermission, "open replica"), "update a.txt")
	assert.EqualError(t, err, "update a.txt: open replica: permission denied")
	assert.Equal(t, os.ErrPermission, RootCause(err))
	assert.True(t, Is(err, os.ErrPermission))
}

func TestRootCauseStopsAtTypedErrors(t *testing.T) {
	opErr := FileOperationFailed{Op: "copy", Path: "a/b.txt", Err: ErrTempNameExhausted}
	err := WithContext(opErr, "sync folder")

	var cause FileOperationFailed
	assert.True(t, As(err, &cause))
	assert.Equal(t, "a/b.txt", cause.Path)
	assert.Equal(t, opErr, RootCause(err))
	assert.True(t, Is(err, ErrTempNameExhausted))
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		exp  string
	}{
		{
			name: "SourceRootNotFound",
			err:  SourceRootNotFound{Path: "/src"},
			exp:  `source folder "/src" does not exist`,
		},
		{
			name: "DirectoryCreateFailed",
			err:  DirectoryCreateFailed{Path: "a", Err: os.ErrPermission},
			exp:  `create directory "a": permission denied`,
		},
		{
			name: "FileOperationFailed",
			err:  FileOperationFailed{Op: "delete", Path: "a/b", Err: os.ErrNotExist},
			exp:  `delete "a/b": file does not exist`,
		},
		{
			name: "MissingField",
			err:  MissingFieldError{Field: "replica"},
			exp:  "missing required field: replica",
		},
		{
			name: "FileNotFound",
			err:  FileNotFound{Path: "foldersync.yaml"},
			exp:  `"foldersync.yaml" does not exist`,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.EqualError(t, test.err, test.exp)
		})
	}
}

func TestFriendlyError(t *testing.T) {
	err := NewFriendlyError("Replica %q is locked.", "/replica")

	friendly, ok := err.(FriendlyError)
	assert.True(t, ok)
	assert.Equal(t, `Replica "/replica" is locked.`, friendly.FriendlyMessage())
	assert.Equal(t, friendly.FriendlyMessage(), err.Error())
}
