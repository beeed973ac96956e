package config

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sidkik/foldersync/pkg/chunk"
	"github.com/sidkik/foldersync/pkg/errors"
)

// maxChunkSize bounds the chunk size, since the synchronizer keeps a few
// chunk sized buffers in memory.
const maxChunkSize = 64 << 20

// Options are the settings of a sync job after merging the built-in defaults,
// the user config, the job file and the command line, in increasing order of
// precedence.
type Options struct {
	Source    string
	Replica   string
	Interval  time.Duration
	ChunkSize int
	LogFile   string
	Quiet     bool
	Watch     bool
}

// DefaultOptions returns the built-in defaults. A zero interval runs a single
// pass.
func DefaultOptions() Options {
	return Options{ChunkSize: chunk.DefaultSize}
}

// Apply overrides the fields of opts that are set in the user config.
func (u User) Apply(opts Options) (Options, error) {
	if u.ChunkSize != "" {
		size, err := ParseChunkSize(u.ChunkSize)
		if err != nil {
			return Options{}, err
		}
		opts.ChunkSize = size
	}

	if u.LogFile != "" {
		opts.LogFile = u.LogFile
	}
	opts.Quiet = opts.Quiet || u.Quiet
	return opts, nil
}

// Apply overrides the fields of opts that are set in the job file.
func (c SyncConfig) Apply(opts Options) (Options, error) {
	if c.Source != "" {
		opts.Source = c.Source
	}
	if c.Replica != "" {
		opts.Replica = c.Replica
	}

	if c.Interval != "" {
		interval, err := time.ParseDuration(c.Interval)
		if err != nil {
			return Options{}, errors.WithContext(err, "parse interval")
		}
		if interval < 0 {
			return Options{}, errors.NewFriendlyError(
				"The interval in %q must not be negative, got %q.", c.path, c.Interval)
		}
		opts.Interval = interval
	}

	if c.ChunkSize != "" {
		size, err := ParseChunkSize(c.ChunkSize)
		if err != nil {
			return Options{}, err
		}
		opts.ChunkSize = size
	}

	if c.LogFile != "" {
		opts.LogFile = c.LogFile
	}
	opts.Quiet = opts.Quiet || c.Quiet
	opts.Watch = opts.Watch || c.Watch
	return opts, nil
}

// ParseChunkSize parses a human readable size such as "4096", "4 KiB" or
// "64k".
func ParseChunkSize(size string) (int, error) {
	bytes, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, errors.NewFriendlyError("Invalid chunk size %q.\n"+
			"Sizes are written like \"4096\", \"4 KiB\" or \"64k\".", size)
	}

	if bytes == 0 || bytes > maxChunkSize {
		return 0, errors.NewFriendlyError("The chunk size must be between "+
			"1 B and %s, got %q.", humanize.IBytes(maxChunkSize), size)
	}
	return int(bytes), nil
}
