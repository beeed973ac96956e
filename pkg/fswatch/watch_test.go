package fswatch

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/pkg/errors"
)

func TestGetPathsToWatch(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		dirs     []string
		files    []string
		expPaths []string
		expErr   error
	}{
		{
			name: "Nested directories",
			root: "/src",
			dirs: []string{"/src/tests", "/src/app", "/src/app/controllers", "/other"},
			files: []string{"/src/tests/test.js", "/src/package.json",
				"/src/app/controllers/index.js", "/other/file"},
			expPaths: []string{"/src", "/src/app", "/src/app/controllers", "/src/tests"},
		},
		{
			name:     "Empty root",
			root:     "/src",
			dirs:     []string{"/src"},
			expPaths: []string{"/src"},
		},
		{
			name:   "Missing root",
			root:   "/src",
			expErr: errors.FileNotFound{Path: "/src"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs = afero.NewMemMapFs()
			for _, dir := range test.dirs {
				assert.NoError(t, fs.MkdirAll(dir, 0755))
			}
			for _, file := range test.files {
				assert.NoError(t, afero.WriteFile(fs, file, []byte("testfile"), 0644))
			}

			paths, err := getPathsToWatch(test.root)
			assert.Equal(t, test.expErr, err)

			// Sort for consistency.
			sort.Strings(paths)
			assert.Equal(t, test.expPaths, paths)
		})
	}
}

func TestGetPathsToWatchFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/file", []byte("testfile"), 0644))

	_, err := getPathsToWatch("/file")
	assert.Error(t, err)
}

func TestCombineUpdates(t *testing.T) {
	t.Parallel()

	updates := make(chan fsnotify.Event, 1024)
	addEvents := func(num int) {
		for i := 0; i < num; i++ {
			updates <- fsnotify.Event{}
		}
	}

	// Seed with events.
	numUpdates := 100
	addEvents(numUpdates)
	combined := combineUpdates(updates, nil)

	// Assert that the events are being combined.
	numCombined := countEvents(combined)
	assert.True(t, numCombined < numUpdates,
		"expected less combined events (%d) than %d", numCombined, numUpdates)

	// Add more events.
	addEvents(100)
	<-combined
}

func TestWatch(t *testing.T) {
	fs = afero.NewOsFs()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))

	events, closer, err := Watch(root)
	require.NoError(t, err)
	defer closer.Close()

	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "sub", "file"), []byte("contents"), 0644))
	waitForEvent(t, events)

	// Directories created after the watch started are watched too.
	require.NoError(t, os.Mkdir(filepath.Join(root, "new"), 0755))
	waitForEvent(t, events)
	drain(events)

	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "new", "file"), []byte("contents"), 0644))
	waitForEvent(t, events)
}

func waitForEvent(t *testing.T, c chan struct{}) {
	select {
	case <-c:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file event")
	}
}

// drain discards events until there haven't been any for a while.
func drain(c chan struct{}) {
	for {
		select {
		case <-c:
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}

func countEvents(c chan struct{}) (n int) {
	// Block until the first event.
	<-c
	n++

	// Count the number of events until there hasn't been any new events in 500
	// milliseconds.
	for {
		select {
		case <-c:
			n++
		case <-time.After(500 * time.Millisecond):
			return n
		}
	}
}
