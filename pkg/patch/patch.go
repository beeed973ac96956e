// Package patch rebuilds replica files from an edit script, reusing the bytes
// the replica already has and reading only the changed ranges from the
// source.
//
// Files are never modified in place. The new contents are streamed into a
// temporary file next to the target, which is then renamed over the target,
// so a failure at any point leaves the old version intact.
package patch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sidkik/foldersync/pkg/chunk"
	"github.com/sidkik/foldersync/pkg/diff"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/fsys"
)

// maxTempAttempts is the number of temporary file names tried before giving
// up.
const maxTempAttempts = 5

// Mocked out for unit testing.
var tempSuffix = func() string {
	return uuid.New().String()
}

// Result describes the data that went into a rebuilt file.
type Result struct {
	// BytesWritten is the size of the new file.
	BytesWritten int64

	// BytesReused is the number of bytes copied from the old version of the
	// file.
	BytesReused int64

	// BytesInserted is the number of bytes read from the source.
	BytesInserted int64
}

// Applier writes files into a replica. Its copy buffer is reused between
// calls, so an Applier must not be used concurrently.
type Applier struct {
	buf []byte
}

// NewApplier returns an Applier that copies data in blocks of at most size
// bytes.
func NewApplier(size int) *Applier {
	if size <= 0 {
		size = chunk.DefaultSize
	}
	return &Applier{buf: make([]byte, size)}
}

// Apply rebuilds the replica file at oldPath so that it matches the source
// file at newPath. oldSnap and newSnap are the snapshots the script was
// computed from. If the source doesn't have the length recorded in newSnap
// once the script is applied, ErrFileChanged is returned and the replica
// file is left untouched.
func (a *Applier) Apply(replicaFS fsys.FS, oldPath string, sourceFS fsys.FS, newPath string,
	oldSnap, newSnap chunk.Snapshot, script diff.Script) (Result, error) {
	attrs, err := sourceFS.GetAttrs(newPath)
	if err != nil {
		return Result{}, errors.WithContext(err, "stat source")
	}

	oldFile, err := replicaFS.OpenRead(oldPath)
	if err != nil {
		return Result{}, errors.WithContext(err, "open replica")
	}
	defer oldFile.Close()

	newFile, err := sourceFS.OpenRead(newPath)
	if err != nil {
		return Result{}, errors.WithContext(err, "open source")
	}
	defer newFile.Close()

	attrs.Size = newSnap.Len()
	return a.replace(replicaFS, oldPath, attrs, func(w io.Writer) (Result, error) {
		return a.patch(w, oldFile, newFile, oldSnap, newSnap, script)
	})
}

// Copy writes a full copy of the source file at src to target in the replica.
// An existing target is replaced.
func (a *Applier) Copy(replicaFS fsys.FS, target string, sourceFS fsys.FS, src string) (Result, error) {
	attrs, err := sourceFS.GetAttrs(src)
	if err != nil {
		return Result{}, errors.WithContext(err, "stat source")
	}

	srcFile, err := sourceFS.OpenRead(src)
	if err != nil {
		return Result{}, errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	return a.replace(replicaFS, target, attrs, func(w io.Writer) (Result, error) {
		n, err := a.copyBytes(w, srcFile, -1)
		return Result{BytesInserted: n}, err
	})
}

// replace streams the output of write into a temporary file, applies attrs to
// it and moves it over target.
func (a *Applier) replace(fs fsys.FS, target string, attrs fsys.Attributes,
	write func(io.Writer) (Result, error)) (res Result, err error) {
	tmpPath, tmpFile, err := createTemp(fs, target)
	if err != nil {
		return Result{}, err
	}

	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			tmpFile.Close()
		}
		fs.DeleteFile(tmpPath)
	}()

	res, err = write(tmpFile)
	if err != nil {
		return Result{}, err
	}
	res.BytesWritten = res.BytesReused + res.BytesInserted

	closed = true
	if err := tmpFile.Close(); err != nil {
		return Result{}, errors.WithContext(err, "close temp file")
	}

	if res.BytesWritten != attrs.Size {
		return Result{}, errors.ErrFileChanged
	}

	if err := fs.SetAttrs(tmpPath, attrs); err != nil {
		return Result{}, err
	}

	if err := fs.ReplaceFile(tmpPath, target); err != nil {
		return Result{}, errors.WithContext(err, "replace")
	}
	return res, nil
}

func (a *Applier) patch(w io.Writer, oldFile, newFile io.ReadSeeker,
	oldSnap, newSnap chunk.Snapshot, script diff.Script) (res Result, err error) {
	var cursor int64
	for _, e := range script {
		start := oldSnap.OffsetAt(e.OldPos)
		n, err := a.copyBytes(w, oldFile, start-cursor)
		res.BytesReused += n
		if err != nil {
			return res, errors.WithContext(err, "copy unchanged")
		}
		cursor = start

		if e.Deleted > 0 {
			cursor = oldSnap.OffsetAt(e.OldPos + e.Deleted)
			if _, err := oldFile.Seek(cursor, io.SeekStart); err != nil {
				return res, errors.WithContext(err, "skip deleted")
			}
		}

		if e.Inserted > 0 {
			insStart := newSnap.OffsetAt(e.NewPos)
			insEnd := newSnap.OffsetAt(e.NewPos + e.Inserted)
			if _, err := newFile.Seek(insStart, io.SeekStart); err != nil {
				return res, errors.WithContext(err, "seek source")
			}

			n, err := a.copyBytes(w, newFile, insEnd-insStart)
			res.BytesInserted += n
			if err != nil {
				return res, errors.WithContext(err, "copy inserted")
			}
		}
	}

	n, err := a.copyBytes(w, oldFile, -1)
	res.BytesReused += n
	if err != nil {
		return res, errors.WithContext(err, "copy unchanged")
	}
	return res, nil
}

// copyBytes copies exactly n bytes from r to w through the Applier's buffer.
// If n is negative, it copies until r is exhausted. Running out of input
// before n bytes were copied means the file changed since its snapshot was
// taken.
func (a *Applier) copyBytes(w io.Writer, r io.Reader, n int64) (copied int64, err error) {
	for n < 0 || copied < n {
		buf := a.buf
		if n >= 0 && n-copied < int64(len(buf)) {
			buf = buf[:n-copied]
		}

		read, readErr := io.ReadFull(r, buf)
		if read > 0 {
			if _, err := w.Write(buf[:read]); err != nil {
				return copied, errors.WithContext(err, "write")
			}
			copied += int64(read)
		}

		switch {
		case readErr == nil:
		case readErr == io.EOF || readErr == io.ErrUnexpectedEOF:
			if n < 0 {
				return copied, nil
			}
			return copied, errors.ErrFileChanged
		default:
			return copied, errors.WithContext(readErr, "read")
		}
	}
	return copied, nil
}

func createTemp(fs fsys.FS, target string) (string, fsys.File, error) {
	dir, base := filepath.Split(target)
	for i := 0; i < maxTempAttempts; i++ {
		path := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, tempSuffix()))
		f, err := fs.OpenWrite(path)
		if err == nil {
			return path, f, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return "", nil, errors.WithContext(err, "create temp file")
		}
	}
	return "", nil, errors.ErrTempNameExhausted
}
