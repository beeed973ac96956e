package chunk

import (
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/fsys"
)

// Comparator decides whether two files have identical contents. Like
// Chunker, it owns its buffers and must not be used concurrently.
type Comparator struct {
	bufA, bufB []byte
}

// NewComparator returns a Comparator that streams files in blocks of size
// bytes.
func NewComparator(size int) *Comparator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Comparator{
		bufA: make([]byte, size),
		bufB: make([]byte, size),
	}
}

// Equal returns whether the file at pathA in fsA has the same contents as the
// file at pathB in fsB. It returns false if either file doesn't exist.
func (c *Comparator) Equal(fsA fsys.FS, pathA string, fsB fsys.FS, pathB string) (bool, error) {
	attrsA, ok, err := statIfExists(fsA, pathA)
	if err != nil || !ok {
		return false, err
	}

	attrsB, ok, err := statIfExists(fsB, pathB)
	if err != nil || !ok {
		return false, err
	}

	if attrsA.Size != attrsB.Size {
		return false, nil
	}

	a, err := fsA.OpenRead(pathA)
	if err != nil {
		return false, errors.WithContext(err, "open")
	}
	defer a.Close()

	b, err := fsB.OpenRead(pathB)
	if err != nil {
		return false, errors.WithContext(err, "open")
	}
	defer b.Close()

	return c.equalReaders(a, b)
}

func (c *Comparator) equalReaders(a, b io.Reader) (bool, error) {
	for {
		nA, errA := io.ReadFull(a, c.bufA)
		if errA != nil && errA != io.EOF && errA != io.ErrUnexpectedEOF {
			return false, errors.WithContext(errA, "read")
		}

		nB, errB := io.ReadFull(b, c.bufB)
		if errB != nil && errB != io.EOF && errB != io.ErrUnexpectedEOF {
			return false, errors.WithContext(errB, "read")
		}

		if nA != nB || blake2b.Sum256(c.bufA[:nA]) != blake2b.Sum256(c.bufB[:nB]) {
			return false, nil
		}

		// A short block means both streams are exhausted.
		if nA < len(c.bufA) {
			return true, nil
		}
	}
}

func statIfExists(fs fsys.FS, path string) (fsys.Attributes, bool, error) {
	exists, err := fs.Exists(path)
	if err != nil || !exists {
		return fsys.Attributes{}, false, err
	}

	attrs, err := fs.GetAttrs(path)
	if err != nil {
		return fsys.Attributes{}, false, errors.WithContext(err, "stat")
	}
	return attrs, true, nil
}
