// Package synclog implements the sync Logger on top of logrus.
package synclog

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked out for unit testing.
var (
	fs               = afero.NewOsFs()
	stdout io.Writer = os.Stdout
)

// Options configures where log messages are written.
type Options struct {
	// LogFile is the path of a file that messages are appended to. No file
	// is written if it's empty.
	LogFile string

	// Quiet disables logging to the console.
	Quiet bool

	// Verbose enables debug messages.
	Verbose bool
}

// Logger writes the progress of synchronization passes to the console and an
// optional log file.
type Logger struct {
	log     *logrus.Logger
	console io.Writer
	file    io.Closer
}

// New creates a Logger according to opts. The log file is created if it
// doesn't exist yet.
func New(opts Options) (*Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		// Show the full timestamp rather than the time elapsed since
		// foldersync started, so that entries from different runs appended
		// to the same file can be told apart.
		FullTimestamp: true,

		// Disable colors since we may be logging to a file.
		DisableColors: true,
	})

	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var console io.Writer
	var outputs []io.Writer
	if !opts.Quiet {
		console = stdout
		outputs = append(outputs, console)
	}

	var file io.Closer
	if opts.LogFile != "" {
		f, err := fs.OpenFile(opts.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.WithContext(err, "open log file")
		}
		outputs = append(outputs, f)
		file = f
	}

	logger.SetOutput(combine(outputs))
	return &Logger{log: logger, console: console, file: file}, nil
}

// FromLogrus wraps an existing logrus Logger.
func FromLogrus(logger *logrus.Logger) *Logger {
	return &Logger{log: logger}
}

// Log writes an informational message.
func (l *Logger) Log(msg string) {
	l.log.Info(msg)
}

// LogError writes an error message along with its cause.
func (l *Logger) LogError(msg string, err error) {
	l.log.WithError(err).Error(msg)
}

// Debug writes a message that's only shown in verbose mode.
func (l *Logger) Debug(msg string) {
	l.log.Debug(msg)
}

// Close closes the log file, if there is one. Later messages are only written
// to the console.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	var outputs []io.Writer
	if l.console != nil {
		outputs = append(outputs, l.console)
	}
	l.log.SetOutput(combine(outputs))

	err := l.file.Close()
	l.file = nil
	if err != nil {
		return errors.WithContext(err, "close log file")
	}
	return nil
}

func combine(outputs []io.Writer) io.Writer {
	switch len(outputs) {
	case 0:
		return ioutil.Discard
	case 1:
		return outputs[0]
	default:
		return io.MultiWriter(outputs...)
	}
}
