package patch

import (
	"io/ioutil"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/pkg/chunk"
	"github.com/sidkik/foldersync/pkg/diff"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/fsys"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		old, new    string
		chunkSize   int
		expReused   int64
		expInserted int64
	}{
		{
			name:        "OldEmpty",
			old:         "",
			new:         "abcdefgh",
			chunkSize:   4,
			expInserted: 8,
		},
		{
			name:      "NewEmpty",
			old:       "abcdefgh",
			new:       "",
			chunkSize: 4,
		},
		{
			name:      "PrefixDeleted",
			old:       "xxxxabcdefgh",
			new:       "abcdefgh",
			chunkSize: 4,
			expReused: 8,
		},
		{
			name:      "SuffixDeleted",
			old:       "abcdefghxxxx",
			new:       "abcdefgh",
			chunkSize: 4,
			expReused: 8,
		},
		{
			name:      "InfixDeleted",
			old:       "abcdxxxxefgh",
			new:       "abcdefgh",
			chunkSize: 4,
			expReused: 8,
		},
		{
			name:        "Inserted",
			old:         "abcdefgh",
			new:         "abcdXXXXefgh",
			chunkSize:   4,
			expReused:   8,
			expInserted: 4,
		},
		{
			name:        "TailGrew",
			old:         "abcdef",
			new:         "abcdefgh",
			chunkSize:   4,
			expReused:   4,
			expInserted: 4,
		},
		{
			name:        "FullRewrite",
			old:         "abcdefgh",
			new:         "ABCDEFGHIJ",
			chunkSize:   4,
			expInserted: 10,
		},
		{
			name:        "ShiftedBoundaries",
			old:         "abcdefgh",
			new:         "Xabcdefgh",
			chunkSize:   4,
			expInserted: 9,
		},
		{
			name:        "SmallBuffer",
			old:         strings.Repeat("a", 100) + strings.Repeat("b", 100),
			new:         strings.Repeat("a", 100) + "c" + strings.Repeat("b", 100),
			chunkSize:   1,
			expReused:   200,
			expInserted: 1,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			replica, source := fsys.NewMemFS(), fsys.NewMemFS()
			writeFile(t, replica, "/replica/file", test.old)
			writeFile(t, source, "/source/file", test.new)

			modTime := time.Date(2019, 11, 10, 5, 4, 3, 0, time.UTC)
			require.NoError(t, source.SetAttrs("/source/file", fsys.Attributes{Mode: 0640, ModTime: modTime}))

			chunker := chunk.NewChunker(test.chunkSize)
			oldSnap, err := chunker.Chunk(replica, "/replica/file")
			require.NoError(t, err)
			newSnap, err := chunker.Chunk(source, "/source/file")
			require.NoError(t, err)

			res, err := NewApplier(test.chunkSize).Apply(replica, "/replica/file", source, "/source/file",
				oldSnap, newSnap, diff.Diff(oldSnap, newSnap))
			require.NoError(t, err)

			assert.Equal(t, test.new, readFile(t, replica, "/replica/file"))
			assert.Equal(t, Result{
				BytesWritten:  int64(len(test.new)),
				BytesReused:   test.expReused,
				BytesInserted: test.expInserted,
			}, res)

			attrs, err := replica.GetAttrs("/replica/file")
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0640), attrs.Mode)
			assert.True(t, modTime.Equal(attrs.ModTime))

			assertNoTempFiles(t, replica, "/replica")
		})
	}
}

func TestApplySourceChanged(t *testing.T) {
	replica, source := fsys.NewMemFS(), fsys.NewMemFS()
	writeFile(t, replica, "/replica/file", "abcd")
	writeFile(t, source, "/source/file", "abcdefgh")

	chunker := chunk.NewChunker(4)
	oldSnap, err := chunker.Chunk(replica, "/replica/file")
	require.NoError(t, err)
	newSnap, err := chunker.Chunk(source, "/source/file")
	require.NoError(t, err)

	// The source shrinks after it was chunked.
	require.NoError(t, source.DeleteFile("/source/file"))
	writeFile(t, source, "/source/file", "abcdef")

	_, err = NewApplier(4).Apply(replica, "/replica/file", source, "/source/file",
		oldSnap, newSnap, diff.Diff(oldSnap, newSnap))
	assert.True(t, errors.Is(err, errors.ErrFileChanged), "unexpected error: %v", err)

	assert.Equal(t, "abcd", readFile(t, replica, "/replica/file"))
	assertNoTempFiles(t, replica, "/replica")
}

func TestCopy(t *testing.T) {
	replica, source := fsys.NewMemFS(), fsys.NewMemFS()
	require.NoError(t, replica.CreateDir("/replica"))
	writeFile(t, source, "/source/file", "contents")

	modTime := time.Date(2019, 11, 10, 5, 4, 3, 0, time.UTC)
	require.NoError(t, source.SetAttrs("/source/file", fsys.Attributes{Mode: 0755, ModTime: modTime}))

	res, err := NewApplier(3).Copy(replica, "/replica/file", source, "/source/file")
	require.NoError(t, err)
	assert.Equal(t, Result{BytesWritten: 8, BytesInserted: 8}, res)
	assert.Equal(t, "contents", readFile(t, replica, "/replica/file"))

	attrs, err := replica.GetAttrs("/replica/file")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), attrs.Mode)
	assert.True(t, modTime.Equal(attrs.ModTime))

	// Copying over an existing file replaces it.
	writeFile(t, source, "/source/other", "new")
	_, err = NewApplier(3).Copy(replica, "/replica/file", source, "/source/other")
	require.NoError(t, err)
	assert.Equal(t, "new", readFile(t, replica, "/replica/file"))

	assertNoTempFiles(t, replica, "/replica")
}

func TestCopyMissingSource(t *testing.T) {
	replica := fsys.NewMemFS()
	require.NoError(t, replica.CreateDir("/replica"))

	_, err := NewApplier(3).Copy(replica, "/replica/file", fsys.NewMemFS(), "/source/file")
	assert.Error(t, err)
	assertNoTempFiles(t, replica, "/replica")
}

func TestTempNameExhausted(t *testing.T) {
	defer mockTempSuffix("taken")()

	replica, source := fsys.NewMemFS(), fsys.NewMemFS()
	writeFile(t, replica, "/replica/.file.taken.tmp", "")
	writeFile(t, source, "/source/file", "contents")

	_, err := NewApplier(3).Copy(replica, "/replica/file", source, "/source/file")
	assert.Equal(t, errors.ErrTempNameExhausted, err)

	exists, err := replica.Exists("/replica/file")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTempNameRetry(t *testing.T) {
	suffixes := []string{"taken", "taken", "free"}
	defer func(orig func() string) { tempSuffix = orig }(tempSuffix)
	tempSuffix = func() string {
		suffix := suffixes[0]
		suffixes = suffixes[1:]
		return suffix
	}

	replica := &recordingFS{FS: fsys.NewMemFS()}
	source := fsys.NewMemFS()
	writeFile(t, replica, "/replica/.file.taken.tmp", "")
	writeFile(t, source, "/source/file", "contents")

	_, err := NewApplier(3).Copy(replica, "/replica/file", source, "/source/file")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/replica/.file.taken.tmp",
		"/replica/.file.taken.tmp",
		"/replica/.file.taken.tmp",
		"/replica/.file.free.tmp",
	}, replica.opened)
	assert.Equal(t, "contents", readFile(t, replica, "/replica/file"))
}

func TestReplaceFailureCleansUp(t *testing.T) {
	defer mockTempSuffix("suffix")()

	replica := &recordingFS{FS: fsys.NewMemFS(), replaceErr: assert.AnError}
	source := fsys.NewMemFS()
	writeFile(t, replica, "/replica/file", "old")
	writeFile(t, source, "/source/file", "new")

	_, err := NewApplier(3).Copy(replica, "/replica/file", source, "/source/file")
	assert.True(t, errors.Is(err, assert.AnError), "unexpected error: %v", err)

	assert.Equal(t, "old", readFile(t, replica, "/replica/file"))
	assertNoTempFiles(t, replica, "/replica")
}

func TestCreateTempError(t *testing.T) {
	replica := &recordingFS{FS: fsys.NewMemFS(), openWriteErr: os.ErrPermission}
	_, _, err := createTemp(replica, "/replica/file")
	assert.True(t, errors.Is(err, os.ErrPermission), "unexpected error: %v", err)
	assert.Len(t, replica.opened, 1)
}

// recordingFS records the paths opened for writing and injects failures.
type recordingFS struct {
	fsys.FS
	opened       []string
	openWriteErr error
	replaceErr   error
}

func (fs *recordingFS) OpenWrite(path string) (fsys.File, error) {
	fs.opened = append(fs.opened, path)
	if fs.openWriteErr != nil {
		return nil, fs.openWriteErr
	}
	return fs.FS.OpenWrite(path)
}

func (fs *recordingFS) ReplaceFile(src, dst string) error {
	if fs.replaceErr != nil {
		return fs.replaceErr
	}
	return fs.FS.ReplaceFile(src, dst)
}

func mockTempSuffix(suffix string) func() {
	orig := tempSuffix
	tempSuffix = func() string { return suffix }
	return func() { tempSuffix = orig }
}

func assertNoTempFiles(t *testing.T, fs fsys.FS, dir string) {
	files, err := fs.ListFiles(dir)
	require.NoError(t, err)
	for _, f := range files {
		assert.False(t, strings.HasSuffix(f, ".tmp"), "leftover temp file %s", f)
	}
}

func writeFile(t *testing.T, fs fsys.FS, path, contents string) {
	f, err := fs.OpenWrite(path)
	require.NoError(t, err)
	_, err = f.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t *testing.T, fs fsys.FS, path string) string {
	f, err := fs.OpenRead(path)
	require.NoError(t, err)
	defer f.Close()

	contents, err := ioutil.ReadAll(f)
	require.NoError(t, err)
	return string(contents)
}
