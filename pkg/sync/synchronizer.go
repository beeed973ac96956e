package sync

import (
	"io"
	goSync "sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sidkik/foldersync/pkg/chunk"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/fsys"
	"github.com/sidkik/foldersync/pkg/patch"
)

// Synchronizer mirrors a source tree into a replica tree, either once or on a
// schedule.
type Synchronizer struct {
	sourceFS  fsys.FS
	replicaFS fsys.FS
	log       Logger
	clock     clockwork.Clock

	chunker    *chunk.Chunker
	comparator *chunk.Comparator
	applier    *patch.Applier

	// passLock is held for the duration of a pass. The scratch buffers above
	// are only used while it's held.
	passLock goSync.Mutex

	// scheduleLock protects the fields below.
	scheduleLock goSync.Mutex
	trigger      <-chan struct{}
	stop         chan struct{}
	done         chan struct{}
	closeLog     goSync.Once
}

// New returns a Synchronizer that reads from sourceFS and writes to
// replicaFS. Files are chunked and copied in blocks of chunkSize bytes.
func New(sourceFS, replicaFS fsys.FS, log Logger, chunkSize int) *Synchronizer {
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultSize
	}

	return &Synchronizer{
		sourceFS:   sourceFS,
		replicaFS:  replicaFS,
		log:        log,
		clock:      clockwork.NewRealClock(),
		chunker:    chunk.NewChunker(chunkSize),
		comparator: chunk.NewComparator(chunkSize),
		applier:    patch.NewApplier(chunkSize),
	}
}

// SynchronizeOnce runs a single pass that makes the replica directory
// identical to the source directory. An error is only returned if the pass
// couldn't start. Failures on individual files are logged and counted in the
// returned Stats instead.
func (s *Synchronizer) SynchronizeOnce(source, replica string) (Stats, error) {
	if replica == "" {
		return Stats{}, errors.MissingFieldError{Field: "replica"}
	}

	if source == "" {
		return Stats{}, errors.SourceRootNotFound{Path: source}
	}

	s.passLock.Lock()
	defer s.passLock.Unlock()

	isDir, err := s.sourceFS.IsDir(source)
	if err != nil {
		return Stats{}, errors.WithContext(err, "stat source")
	}

	if !isDir {
		return Stats{}, errors.SourceRootNotFound{Path: source}
	}

	p := &pass{Synchronizer: s, source: source, replica: replica}
	p.syncFolder(".")
	s.log.Log(p.stats.String())
	return p.stats, nil
}

// TriggerOn makes periodic schedules also run a pass whenever a value is
// received from trigger. It must be called before SynchronizePeriodically.
func (s *Synchronizer) TriggerOn(trigger <-chan struct{}) {
	s.scheduleLock.Lock()
	defer s.scheduleLock.Unlock()
	s.trigger = trigger
}

// SynchronizePeriodically starts a schedule that runs a pass right away, and
// then once every interval until Stop is called. It returns immediately.
// Errors from the scheduled passes are logged.
//
// A pass that takes longer than the interval delays the next one rather than
// overlapping with it.
func (s *Synchronizer) SynchronizePeriodically(source, replica string, interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("sync interval must be positive, got %s", interval)
	}

	s.scheduleLock.Lock()
	defer s.scheduleLock.Unlock()

	if s.stop != nil {
		return errors.ErrScheduleAlreadyActive
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(interval)
	go s.runSchedule(source, replica, ticker, s.trigger, s.stop, s.done)
	return nil
}

func (s *Synchronizer) runSchedule(source, replica string, ticker clockwork.Ticker,
	trigger <-chan struct{}, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if _, err := s.SynchronizeOnce(source, replica); err != nil {
			s.log.LogError("Sync failed", err)
		}

		select {
		case <-ticker.Chan():
		case <-trigger:
		case <-stop:
			return
		}
	}
}

// Stop ends the periodic schedule, if there is one. It waits for a pass
// that's already running to finish, and then closes the Logger if it
// implements io.Closer. Stop may be called more than once.
func (s *Synchronizer) Stop() {
	s.scheduleLock.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.scheduleLock.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	// Wait for passes started with SynchronizeOnce.
	s.passLock.Lock()
	s.passLock.Unlock()

	s.closeLog.Do(func() {
		if closer, ok := s.log.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.log.LogError("Failed to close log", err)
			}
		}
	})
}
