package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked out for unit testing.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

var highlight = color.New(color.FgHiRed, color.Bold).SprintFunc()

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(stderr, formatError(err))
	exit(1)
}

// HandlePanic reports a panic in the calling goroutine and exits. It must be
// called with defer.
func HandlePanic() {
	if r := recover(); r != nil {
		fmt.Fprintf(stderr, "%s %v\n\n%s", highlight("Panic:"), r, debug.Stack())
		exit(1)
	}
}

// formatError returns the message that's shown to the user for err. Friendly
// errors are printed as is, without the context that was added to them.
func formatError(err error) string {
	var friendly errors.FriendlyError
	if errors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return fmt.Sprintf("%s %s", highlight("Error:"), err)
}
