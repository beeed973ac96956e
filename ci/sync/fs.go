package sync

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ghodss/yaml"

	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
)

type file struct {
	path     string
	contents string
	mode     os.FileMode
	modTime  time.Time
}

func (f file) WithPath(path string) file {
	f.path = path
	return f
}

func (f file) WithContents(contents string) file {
	f.contents = contents
	return f
}

func (f file) WithMode(mode os.FileMode) file {
	f.mode = mode
	return f
}

func (f file) WithModTime(modTime time.Time) file {
	f.modTime = modTime
	return f
}

func (f file) equal(other file) bool {
	return f.path == other.path &&
		f.contents == other.contents &&
		f.mode == other.mode &&
		f.modTime.Equal(other.modTime)
}

func (f file) String() string {
	return fmt.Sprintf("{%s %q %s %s}", f.path, f.contents, f.mode, f.modTime.Format(time.RFC3339))
}

func randomFile(path string) file {
	randomTime := time.Date(2019, 11, 10, rand.Intn(23), rand.Intn(59), rand.Intn(59), 0, time.UTC)
	return file{
		path:     path,
		contents: strings.Repeat(strconv.Itoa(rand.Int()), 1+rand.Intn(1000)),
		mode:     os.FileMode(0640 | rand.Intn(8)),
		modTime:  randomTime,
	}
}

// mockFs contains helper methods for creating temporary source and replica
// folders for testing.
type mockFs struct {
	root       string
	sourceDir  string
	replicaDir string
	homeDir    string

	originalHomeDir string
}

type fsOp func(mockFs) error

func newMockFs() (mockFs, error) {
	root, err := ioutil.TempDir("", "foldersync-test")
	if err != nil {
		return mockFs{}, errors.WithContext(err, "make root dir")
	}

	fs := mockFs{
		root:       root,
		sourceDir:  filepath.Join(root, "source"),
		replicaDir: filepath.Join(root, "replica"),
		homeDir:    filepath.Join(root, "home"),
	}
	for _, dir := range []string{fs.sourceDir, fs.homeDir} {
		if err := os.Mkdir(dir, 0755); err != nil {
			return mockFs{}, errors.WithContext(err, "make directory")
		}
	}

	// Hide the user's own defaults from the binary under test.
	fs.originalHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", fs.homeDir)
	return fs, nil
}

func (fs mockFs) cleanup() error {
	os.Setenv("HOME", fs.originalHomeDir)
	return os.RemoveAll(fs.root)
}

func (fs mockFs) source(path string) string {
	return filepath.Join(fs.sourceDir, path)
}

func (fs mockFs) replica(path string) string {
	return filepath.Join(fs.replicaDir, path)
}

func (fs mockFs) logFile() string {
	return filepath.Join(fs.root, "foldersync.log")
}

func (fs mockFs) writeSyncConfig(cfg config.SyncConfig) (string, error) {
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return "", errors.WithContext(err, "marshal")
	}

	path := filepath.Join(fs.root, "job.yaml")
	return path, ioutil.WriteFile(path, yamlBytes, 0644)
}

func createFile(toCreate file) fsOp {
	return func(fs mockFs) error {
		toCreate.path = fs.source(toCreate.path)

		parent := filepath.Dir(toCreate.path)
		if err := os.MkdirAll(parent, 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}

		f, err := os.Create(toCreate.path)
		if err != nil {
			return errors.WithContext(err, "create")
		}
		defer f.Close()

		_, err = io.Copy(f, bytes.NewReader([]byte(toCreate.contents)))
		if err != nil {
			return errors.WithContext(err, "write")
		}

		if err := os.Chmod(toCreate.path, toCreate.mode); err != nil {
			return errors.WithContext(err, "chmod")
		}

		if err := os.Chtimes(toCreate.path, time.Now(), toCreate.modTime); err != nil {
			return errors.WithContext(err, "chtimes")
		}
		return nil
	}
}

func removeFile(path string) fsOp {
	return func(fs mockFs) error {
		return os.RemoveAll(fs.source(path))
	}
}

// getReplicaFile reads the file at `path` relative to the replica folder.
func getReplicaFile(fs mockFs, path string) (file, bool, error) {
	fullPath := fs.replica(path)
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return file{}, false, nil
	}
	if err != nil {
		return file{}, false, errors.WithContext(err, "stat")
	}

	contents, err := ioutil.ReadFile(fullPath)
	if err != nil {
		return file{}, false, errors.WithContext(err, "read")
	}

	return file{
		path:     path,
		contents: string(contents),
		mode:     info.Mode(),
		modTime:  info.ModTime().UTC(),
	}, true, nil
}

// listTree returns the relative paths of every file and directory below
// `root`, with a trailing slash for directories.
func listTree(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}

		if info.IsDir() {
			rel += "/"
		}
		paths = append(paths, rel)
		return nil
	})
	return paths, err
}
