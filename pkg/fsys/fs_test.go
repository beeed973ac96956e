package fsys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackends(t *testing.T) {
	tests := []struct {
		name string
		fs   func(t *testing.T) (FS, string)
	}{
		{
			name: "Memory",
			fs: func(t *testing.T) (FS, string) {
				return NewMemFS(), "/root"
			},
		},
		{
			name: "OS",
			fs: func(t *testing.T) (FS, string) {
				return NewOsFS(), t.TempDir()
			},
		},
		{
			name: "BasePath",
			fs: func(t *testing.T) (FS, string) {
				return New(afero.NewBasePathFs(afero.NewMemMapFs(), "/base")), "/root"
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs, root := test.fs(t)
			testBackend(t, fs, root)
		})
	}
}

func testBackend(t *testing.T, fs FS, root string) {
	dir := filepath.Join(root, "dir")
	require.NoError(t, fs.CreateDir(filepath.Join(dir, "sub")))
	writeFile(t, fs, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, fs, filepath.Join(dir, "a.txt"), "a")

	exists, err := fs.Exists(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.True(t, exists)

	isDir, err := fs.IsDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.True(t, isDir)

	isDir, err = fs.IsDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, isDir)

	files, err := fs.ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, files)

	dirs, err := fs.ListDirs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub"}, dirs)

	// Exclusive creates fail if the name is taken.
	_, err = fs.OpenWrite(filepath.Join(dir, "a.txt"))
	assert.True(t, os.IsExist(err), "expected ErrExist, got %v", err)

	// Replacing swaps the contents in and removes the source name.
	require.NoError(t, fs.ReplaceFile(filepath.Join(dir, "b.txt"), filepath.Join(dir, "a.txt")))
	assert.Equal(t, "b", readFile(t, fs, filepath.Join(dir, "a.txt")))
	exists, err = fs.Exists(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.False(t, exists)

	modTime := time.Date(2019, 11, 10, 5, 4, 3, 0, time.UTC)
	require.NoError(t, fs.SetAttrs(filepath.Join(dir, "a.txt"), Attributes{Mode: 0640, ModTime: modTime}))
	attrs, err := fs.GetAttrs(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), attrs.Mode)
	assert.True(t, modTime.Equal(attrs.ModTime))
	assert.Equal(t, int64(1), attrs.Size)

	require.NoError(t, fs.DeleteFile(filepath.Join(dir, "a.txt")))
	require.NoError(t, fs.DeleteDir(dir))
	exists, err = fs.Exists(dir)
	require.NoError(t, err)
	assert.False(t, exists)
}

func writeFile(t *testing.T, fs FS, path, contents string) {
	f, err := fs.OpenWrite(path)
	require.NoError(t, err)
	_, err = f.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t *testing.T, fs FS, path string) string {
	f, err := fs.OpenRead(path)
	require.NoError(t, err)
	defer f.Close()

	contents, err := ioutil.ReadAll(f)
	require.NoError(t, err)
	return string(contents)
}
