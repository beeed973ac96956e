// Package chunk splits files into fixed-size, content-hashed chunks and
// compares whole files by streaming hashes of their blocks.
package chunk

import (
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/fsys"
)

// DefaultSize is the chunk size used when none is configured.
const DefaultSize = 4096

// Chunk describes one contiguous block of a file.
type Chunk struct {
	// Hash is the BLAKE2b-256 digest of the chunk's bytes.
	Hash [blake2b.Size256]byte

	// Size is the number of bytes in the chunk. Every chunk but the last one
	// of a file has the configured chunk size.
	Size int

	// Offset is the byte offset of the chunk in its file.
	Offset int64
}

// Equal returns whether two chunks hold the same content. Offsets aren't
// considered.
func (c Chunk) Equal(other Chunk) bool {
	return c.Hash == other.Hash && c.Size == other.Size
}

// Snapshot is the ordered chunk sequence of one version of a file.
type Snapshot []Chunk

// Len returns the length in bytes of the file the snapshot was taken from.
func (s Snapshot) Len() int64 {
	return s.OffsetAt(len(s))
}

// OffsetAt returns the byte offset of the chunk at position i. Position
// len(s) is the end of the file.
func (s Snapshot) OffsetAt(i int) int64 {
	if i < len(s) {
		return s[i].Offset
	}
	if len(s) == 0 {
		return 0
	}
	last := s[len(s)-1]
	return last.Offset + int64(last.Size)
}

// Chunker computes snapshots. Its read buffer is reused between calls, so a
// Chunker must not be used concurrently.
type Chunker struct {
	buf []byte
}

// NewChunker returns a Chunker that cuts files into chunks of size bytes.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	return &Chunker{buf: make([]byte, size)}
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int {
	return len(c.buf)
}

// Chunk reads the file at path and returns its snapshot. An empty file has an
// empty snapshot.
func (c *Chunker) Chunk(fs fsys.FS, path string) (Snapshot, error) {
	f, err := fs.OpenRead(path)
	if err != nil {
		return nil, errors.WithContext(err, "open")
	}
	defer f.Close()

	return c.chunkReader(f)
}

func (c *Chunker) chunkReader(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	var offset int64
	for {
		n, err := io.ReadFull(r, c.buf)
		if n > 0 {
			snap = append(snap, Chunk{
				Hash:   blake2b.Sum256(c.buf[:n]),
				Size:   n,
				Offset: offset,
			})
			offset += int64(n)
		}

		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			return snap, nil
		default:
			return nil, errors.WithContext(err, "read")
		}
	}
}
