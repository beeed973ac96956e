// Package fsys defines the filesystem operations the synchronizer relies on.
// The source and replica trees each get their own FS, so they may live on
// different backends (for example the OS filesystem and an in-memory one).
package fsys

import (
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// File is an open file handle.
type File = afero.File

// Attributes contains the file metadata that's mirrored onto the replica.
type Attributes struct {
	// Mode is the permission bits of the file.
	Mode os.FileMode

	// ModTime is the time of the last file modification.
	ModTime time.Time

	// Size is the length of the file in bytes. It's informational only and
	// is ignored by SetAttrs.
	Size int64
}

// FS is the capability set of one synchronization root.
type FS interface {
	// Exists returns whether anything exists at path.
	Exists(path string) (bool, error)

	// IsDir returns whether path is a directory.
	IsDir(path string) (bool, error)

	// ListFiles returns the sorted names of the non-directory entries in dir.
	ListFiles(dir string) ([]string, error)

	// ListDirs returns the sorted names of the subdirectories of dir.
	ListDirs(dir string) ([]string, error)

	// CreateDir creates dir, along with any missing parents.
	CreateDir(dir string) error

	// DeleteDir removes dir and everything below it.
	DeleteDir(dir string) error

	// DeleteFile removes a single file.
	DeleteFile(path string) error

	// OpenRead opens path for sequential (and seekable) reading.
	OpenRead(path string) (File, error)

	// OpenWrite creates a new file at path for writing. It fails with an
	// error matching os.ErrExist if something already exists at path.
	OpenWrite(path string) (File, error)

	// ReplaceFile atomically moves src over dst.
	ReplaceFile(src, dst string) error

	// GetAttrs returns the metadata of path.
	GetAttrs(path string) (Attributes, error)

	// SetAttrs applies the mode and modification time in attrs to path.
	SetAttrs(path string, attrs Attributes) error
}

// Mocked out for unit testing.
var now = time.Now

type aferoFS struct {
	fs afero.Fs
}

// New returns an FS backed by the given afero filesystem.
func New(fs afero.Fs) FS {
	return aferoFS{fs}
}

// NewOsFS returns an FS backed by the operating system's filesystem.
func NewOsFS() FS {
	return New(afero.NewOsFs())
}

// NewMemFS returns an empty in-memory FS.
func NewMemFS() FS {
	return New(afero.NewMemMapFs())
}

func (a aferoFS) Exists(path string) (bool, error) {
	return afero.Exists(a.fs, path)
}

func (a aferoFS) IsDir(path string) (bool, error) {
	isDir, err := afero.IsDir(a.fs, path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return isDir, err
}

func (a aferoFS) ListFiles(dir string) ([]string, error) {
	return a.list(dir, func(fi os.FileInfo) bool {
		return !fi.IsDir()
	})
}

func (a aferoFS) ListDirs(dir string) ([]string, error) {
	return a.list(dir, os.FileInfo.IsDir)
}

func (a aferoFS) list(dir string, include func(os.FileInfo) bool) ([]string, error) {
	// ReadDir returns the entries sorted by name.
	infos, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return nil, errors.WithContext(err, "read dir")
	}

	var names []string
	for _, fi := range infos {
		if include(fi) {
			names = append(names, fi.Name())
		}
	}
	return names, nil
}

func (a aferoFS) CreateDir(dir string) error {
	return a.fs.MkdirAll(dir, 0755)
}

func (a aferoFS) DeleteDir(dir string) error {
	return a.fs.RemoveAll(dir)
}

func (a aferoFS) DeleteFile(path string) error {
	return a.fs.Remove(path)
}

func (a aferoFS) OpenRead(path string) (File, error) {
	return a.fs.Open(path)
}

func (a aferoFS) OpenWrite(path string) (File, error) {
	return a.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
}

func (a aferoFS) ReplaceFile(src, dst string) error {
	return a.fs.Rename(src, dst)
}

func (a aferoFS) GetAttrs(path string) (Attributes, error) {
	fi, err := a.fs.Stat(path)
	if err != nil {
		return Attributes{}, err
	}

	return Attributes{
		Mode:    fi.Mode().Perm(),
		ModTime: fi.ModTime(),
		Size:    fi.Size(),
	}, nil
}

func (a aferoFS) SetAttrs(path string, attrs Attributes) error {
	if err := a.fs.Chmod(path, attrs.Mode.Perm()); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := a.fs.Chtimes(path, now(), attrs.ModTime); err != nil {
		return errors.WithContext(err, "set file modtime")
	}
	return nil
}
