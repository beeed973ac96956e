package sync

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/blake2b"

	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/fsys"
	"github.com/sidkik/foldersync/pkg/fswatch"
	"github.com/sidkik/foldersync/pkg/synclog"
	synchronizer "github.com/sidkik/foldersync/pkg/sync"
)

// Mocked out for unit testing.
var (
	parseUserConfig = config.ParseUser
	parseSyncConfig = config.ParseSyncConfig
	lockDir         = os.TempDir
	watch           = fswatch.Watch
	waitForSignal   = waitForSignalImpl
)

type flags struct {
	configPath string
	chunkSize  string
	quiet      bool
	watch      bool
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var cliFlags flags
	cmd := &cobra.Command{
		Use:   "sync <source> <replica> [interval_seconds] [log_file]",
		Short: "Mirror a folder onto a replica folder",
		Long: "Mirror the source folder onto the replica folder, so that the\n" +
			"replica ends up identical to the source. Changed files are updated\n" +
			"in place by only writing the parts that changed.\n\n" +
			"If an interval is given, the folder is synchronized every\n" +
			"interval_seconds until foldersync is interrupted. Otherwise, a\n" +
			"single pass is run.",
		Args: cobra.MaximumNArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			opts, err := resolveOptions(cmd.Flags(), cliFlags, args)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := run(opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVar(&cliFlags.configPath, "config", "",
		"Path to a sync job file. Arguments and flags override the values in it.")
	cmd.Flags().StringVar(&cliFlags.chunkSize, "chunk-size", "",
		"The size of the blocks that files are compared in, e.g. \"4 KiB\".")
	cmd.Flags().BoolVarP(&cliFlags.quiet, "quiet", "q", false,
		"Don't log to the console.")
	cmd.Flags().BoolVar(&cliFlags.watch, "watch", false,
		"Also synchronize whenever a file in the source folder changes. "+
			"Requires an interval.")
	return cmd
}

// resolveOptions merges the built-in defaults, the user config, the job file
// and the command line.
func resolveOptions(cmdFlags *pflag.FlagSet, cliFlags flags, args []string) (config.Options, error) {
	userConfig, err := parseUserConfig()
	if err != nil {
		return config.Options{}, errors.WithContext(err, "parse user config")
	}

	opts, err := userConfig.Apply(config.DefaultOptions())
	if err != nil {
		return config.Options{}, errors.WithContext(err, "apply user config")
	}

	if cliFlags.configPath != "" {
		jobConfig, err := parseSyncConfig(cliFlags.configPath)
		if err != nil {
			return config.Options{}, errors.WithContext(err, "parse sync config")
		}

		opts, err = jobConfig.Apply(opts)
		if err != nil {
			return config.Options{}, errors.WithContext(err, "apply sync config")
		}
	}

	if len(args) > 0 {
		opts.Source = args[0]
	}
	if len(args) > 1 {
		opts.Replica = args[1]
	}
	if len(args) > 2 {
		seconds, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return config.Options{}, errors.NewFriendlyError(
				"The interval must be a whole number of seconds, got %q.", args[2])
		}
		opts.Interval = time.Duration(seconds) * time.Second
	}
	if len(args) > 3 {
		opts.LogFile = args[3]
	}

	if cmdFlags.Changed("chunk-size") {
		opts.ChunkSize, err = config.ParseChunkSize(cliFlags.chunkSize)
		if err != nil {
			return config.Options{}, err
		}
	}
	opts.Quiet = opts.Quiet || cliFlags.quiet
	opts.Watch = opts.Watch || cliFlags.watch

	if opts.Source == "" || opts.Replica == "" {
		return config.Options{}, errors.NewFriendlyError(
			"Both a source and a replica folder are required.\n" +
				"Pass them as arguments, or set them in the file passed with --config.")
	}

	if opts.Watch && opts.Interval == 0 {
		return config.Options{}, errors.NewFriendlyError(
			"--watch requires an interval, since foldersync exits after a single pass otherwise.")
	}
	return opts, nil
}

func run(opts config.Options) error {
	source, err := filepath.Abs(opts.Source)
	if err != nil {
		return errors.WithContext(err, "resolve source path")
	}

	replica, err := filepath.Abs(opts.Replica)
	if err != nil {
		return errors.WithContext(err, "resolve replica path")
	}

	if isWithin(replica, source) || isWithin(source, replica) {
		return errors.NewFriendlyError("The source %q and replica %q "+
			"must not contain each other.", source, replica)
	}

	lock, err := lockReplica(replica)
	if err != nil {
		return err
	}
	defer unlockReplica(lock)

	logger, err := synclog.New(synclog.Options{
		LogFile: opts.LogFile,
		Quiet:   opts.Quiet,
		Verbose: log.IsLevelEnabled(log.DebugLevel),
	})
	if err != nil {
		return errors.WithContext(err, "create logger")
	}
	logger.Debug(fmt.Sprintf("Locked replica with %s", lock.Path()))

	s := synchronizer.New(fsys.NewOsFS(), fsys.NewOsFS(), logger, opts.ChunkSize)
	defer s.Stop()

	if opts.Interval == 0 {
		_, err := s.SynchronizeOnce(source, replica)
		return err
	}

	if opts.Watch {
		events, closer, err := watch(source)
		if err != nil {
			return errors.WithContext(err, "watch source")
		}
		defer closeWatch(closer)
		s.TriggerOn(events)
	}

	if err := s.SynchronizePeriodically(source, replica, opts.Interval); err != nil {
		return errors.WithContext(err, "start")
	}

	sig := waitForSignal()
	logger.Log(fmt.Sprintf("Received %s, stopping.", sig))
	return nil
}

// lockReplica makes sure that no other foldersync process is writing to the
// same replica. The lock lives in the temp directory so that the replica
// stays identical to the source.
func lockReplica(replica string) (*flock.Flock, error) {
	hash := blake2b.Sum256([]byte(replica))
	path := filepath.Join(lockDir(), fmt.Sprintf("foldersync-%s.lock", hex.EncodeToString(hash[:8])))

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.WithContext(err, "lock replica")
	}

	if !locked {
		return nil, errors.NewFriendlyError("Another foldersync process is "+
			"already synchronizing into %q.", replica)
	}
	return lock, nil
}

func unlockReplica(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		log.WithError(err).Warn("Failed to unlock replica")
		return
	}

	if err := os.Remove(lock.Path()); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Debug("Failed to remove lock file")
	}
}

func closeWatch(closer io.Closer) {
	if err := closer.Close(); err != nil {
		log.WithError(err).Warn("Failed to stop file watcher")
	}
}

// isWithin returns whether path is dir or a path below it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func waitForSignalImpl() os.Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	return <-signals
}
