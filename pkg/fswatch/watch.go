package fswatch

import (
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches for changes anywhere below the directory `root`. It sends an
// event on the returned channel whenever a file or directory in the tree is
// created, modified or removed. Bursts of changes are combined into a single
// event. Closing the returned Closer stops the watch.
func Watch(root string) (chan struct{}, io.Closer, error) {
	pathsToWatch, err := getPathsToWatch(root)
	if err != nil {
		return nil, nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Warn("File watcher error")
		}
	}()

	return combineUpdates(watcher.Events, func(event fsnotify.Event) {
		watchNewDirs(watcher, event)
	}), watcher, nil
}

// combineUpdates merges the events received on `updates` so that there's at
// most one pending event on the returned channel. `handle` is called on every
// event before it's merged.
func combineUpdates(updates <-chan fsnotify.Event, handle func(fsnotify.Event)) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for event := range updates {
			if handle != nil {
				handle(event)
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// watchNewDirs starts watching directories that were created after the watch
// started, since fsnotify doesn't watch directories recursively.
func watchNewDirs(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}

	fi, err := fs.Stat(event.Name)
	if err != nil || !fi.IsDir() {
		return
	}

	paths, err := getPathsToWatch(event.Name)
	if err != nil {
		log.WithError(err).WithField("path", event.Name).Warn("Failed to watch new directory")
		return
	}

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to watch new directory")
		}
	}
}

// getPathsToWatch returns `root` and all the directories below it. Watching
// a directory also reports changes to the files directly inside it.
func getPathsToWatch(root string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, errors.Errorf("%q is not a directory", root)
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
