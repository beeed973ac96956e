package sync

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/ci/util"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
)

const syncTimeout = time.Minute

func Test(t *testing.T, helper *util.TestHelper) {
	t.Run("SyncOnce", func(t *testing.T) {
		testSyncOnce(t, helper)
	})
	t.Run("FileChange", func(t *testing.T) {
		testFileChange(t, helper)
	})
	t.Run("JobFile", func(t *testing.T) {
		testJobFile(t, helper)
	})
	t.Run("Watch", func(t *testing.T) {
		testWatch(t, helper)
	})
	t.Run("Lock", func(t *testing.T) {
		testLock(t, helper)
	})
}

func testSyncOnce(t *testing.T, helper *util.TestHelper) {
	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()

	for _, path := range []string{"a", "dir/b", "dir/nested/c"} {
		require.NoError(t, createFile(randomFile(path))(fs))
	}
	require.NoError(t, os.MkdirAll(fs.source("empty"), 0755))

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	output, err := helper.Run(ctx, "sync", fs.sourceDir, fs.replicaDir, "0", fs.logFile())
	require.NoError(t, err, string(output))
	assert.NoError(t, treesEqual(fs))

	// A second run has nothing to do.
	output, err = helper.Run(ctx, "sync", fs.sourceDir, fs.replicaDir)
	require.NoError(t, err, string(output))
	assert.Contains(t, string(output), "Copied 0 files, updated 0, removed 0, 3 unchanged.")

	logs, err := ioutil.ReadFile(fs.logFile())
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Copied file dir/nested/c")
}

func testFileChange(t *testing.T, helper *util.TestHelper) {
	refFile := randomFile("dir/test-file")
	changedContents := refFile.WithContents(refFile.contents + "appended contents")
	changedFileMode := refFile.WithMode(os.FileMode(0600))
	changedModTime := refFile.WithModTime(refFile.modTime.Add(1 * time.Minute))

	tests := []struct {
		name   string
		change fsOp
		check  replicaAssertion
	}{
		{
			name:   "ChangeContents",
			change: createFile(changedContents),
			check:  shouldExist(changedContents),
		},
		{
			name:   "ChangeMode",
			change: createFile(changedFileMode),
			check:  shouldExist(changedFileMode),
		},
		{
			name:   "ChangeModTime",
			change: createFile(changedModTime),
			check:  shouldExist(changedModTime),
		},
		{
			name:   "RemoveFile",
			change: removeFile(refFile.path),
			check:  shouldNotExist(refFile),
		},
		{
			name:   "RemoveDirectory",
			change: removeFile("dir"),
			check:  shouldNotExist(refFile.WithPath("dir")),
		},
	}

	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()

	// Create another file so that the source folder is never empty.
	require.NoError(t, createFile(randomFile("other-file"))(fs))

	testCtx, cancelTest := context.WithCancel(context.Background())
	defer cancelTest()

	_, waitErr, err := helper.Start(testCtx, "sync", "--quiet",
		fs.sourceDir, fs.replicaDir, "1", fs.logFile())
	require.NoError(t, err, "start foldersync")

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			require.NoError(t, createFile(refFile)(fs))
			require.NoError(t, waitUntilSynced(testCtx, fs))

			require.NoError(t, test.change(fs))
			require.NoError(t, waitUntilSynced(testCtx, fs))
			assert.NoError(t, test.check(fs))
		})
	}

	cancelTest()
	assert.NoError(t, <-waitErr, "run foldersync")
}

func testJobFile(t *testing.T, helper *util.TestHelper) {
	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()

	refFile := randomFile("file")
	require.NoError(t, createFile(refFile)(fs))

	jobPath, err := fs.writeSyncConfig(config.SyncConfig{
		Version:   config.SupportedSyncConfigVersion,
		Source:    "source",
		Replica:   "replica",

		// Small chunks, so that the update below reuses most of the file.
		ChunkSize: "16",
		LogFile:   "job.log",
		Quiet:     true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	output, err := helper.Run(ctx, "sync", "--config", jobPath)
	require.NoError(t, err, string(output))
	assert.Empty(t, string(output))
	assert.NoError(t, shouldExist(refFile)(fs))

	changed := refFile.WithContents(refFile.contents[:len(refFile.contents)/2] + "changed")
	require.NoError(t, createFile(changed)(fs))

	output, err = helper.Run(ctx, "sync", "--config", jobPath)
	require.NoError(t, err, string(output))
	assert.NoError(t, shouldExist(changed)(fs))

	logs, err := ioutil.ReadFile(filepath.Join(fs.root, "job.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Updated file file")
}

func testWatch(t *testing.T, helper *util.TestHelper) {
	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()

	testCtx, cancelTest := context.WithCancel(context.Background())
	defer cancelTest()

	// The interval is long enough that only file changes trigger passes.
	stdout, waitErr, err := helper.Start(testCtx, "sync", "--watch",
		fs.sourceDir, fs.replicaDir, "3600")
	require.NoError(t, err, "start foldersync")

	waitCtx, cancelWait := context.WithTimeout(testCtx, syncTimeout)
	defer cancelWait()
	require.NoError(t, util.WaitForOutput(waitCtx, stdout, []byte("Sync complete.")))

	newFile := randomFile("new-file")
	require.NoError(t, createFile(newFile)(fs))
	require.NoError(t, util.WaitForOutput(waitCtx, stdout, []byte("Copied file new-file")))
	require.NoError(t, waitUntilSynced(testCtx, fs))
	assert.NoError(t, shouldExist(newFile)(fs))

	cancelTest()
	assert.NoError(t, <-waitErr, "run foldersync")
}

func testLock(t *testing.T, helper *util.TestHelper) {
	fs, err := newMockFs()
	require.NoError(t, err)
	defer fs.cleanup()
	require.NoError(t, createFile(randomFile("file"))(fs))

	testCtx, cancelTest := context.WithCancel(context.Background())
	defer cancelTest()

	_, waitErr, err := helper.Start(testCtx, "sync", "--quiet", fs.sourceDir, fs.replicaDir, "60")
	require.NoError(t, err, "start foldersync")
	require.NoError(t, waitUntilSynced(testCtx, fs))

	output, err := helper.Run(testCtx, "sync", fs.sourceDir, fs.replicaDir)
	assert.Error(t, err)
	assert.Contains(t, string(output), "Another foldersync process is already synchronizing")

	cancelTest()
	assert.NoError(t, <-waitErr, "run foldersync")

	// The lock is released when the process exits.
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	output, err = helper.Run(ctx, "sync", fs.sourceDir, fs.replicaDir)
	assert.NoError(t, err, string(output))
}

// waitUntilSynced blocks until the replica folder is identical to the source
// folder.
func waitUntilSynced(ctx context.Context, fs mockFs) error {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	isSynced := func() bool {
		return treesEqual(fs) == nil
	}
	if !util.TestWithRetry(ctx, nil, isSynced) {
		return errors.WithContext(treesEqual(fs), "never synced")
	}
	return nil
}

// treesEqual returns an error describing the first difference between the
// source and replica folders.
func treesEqual(fs mockFs) error {
	sourcePaths, err := listTree(fs.sourceDir)
	if err != nil {
		return errors.WithContext(err, "list source")
	}

	replicaPaths, err := listTree(fs.replicaDir)
	if err != nil {
		return errors.WithContext(err, "list replica")
	}

	if fmt.Sprint(sourcePaths) != fmt.Sprint(replicaPaths) {
		return fmt.Errorf("expected paths %v, got %v", sourcePaths, replicaPaths)
	}

	for _, path := range sourcePaths {
		if path[len(path)-1] == '/' {
			continue
		}

		exp, err := readSourceFile(fs, path)
		if err != nil {
			return err
		}

		if err := shouldExist(exp)(fs); err != nil {
			return err
		}
	}
	return nil
}

func readSourceFile(fs mockFs, path string) (file, error) {
	info, err := os.Stat(fs.source(path))
	if err != nil {
		return file{}, errors.WithContext(err, "stat")
	}

	contents, err := ioutil.ReadFile(fs.source(path))
	if err != nil {
		return file{}, errors.WithContext(err, "read")
	}
	return file{path, string(contents), info.Mode(), info.ModTime().UTC()}, nil
}

type replicaAssertion func(fs mockFs) error

func shouldExist(exp file) replicaAssertion {
	return func(fs mockFs) error {
		actual, exists, err := getReplicaFile(fs, exp.path)
		if err != nil {
			return errors.WithContext(err, "get replica file")
		}

		if !exists {
			return fmt.Errorf("file %q does not exist", exp.path)
		}

		if !actual.equal(exp) {
			return fmt.Errorf("Expected file %v, got %v", exp, actual)
		}
		return nil
	}
}

func shouldNotExist(exp file) replicaAssertion {
	return func(fs mockFs) error {
		_, exists, err := getReplicaFile(fs, exp.path)
		if err != nil {
			return errors.WithContext(err, "get replica file")
		}

		if exists {
			return fmt.Errorf("file %q exists", exp.path)
		}
		return nil
	}
}
