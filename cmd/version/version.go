package version

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sidkik/foldersync/pkg/version"
)

// Mocked out for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of foldersync.",
		Long: "Print the version of foldersync, as a git tag or commit hash,\n" +
			"along with the Go version it was built with.",
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			run()
		},
	}
}

func run() {
	fmt.Fprintf(stdout, "version:    %s\n", version.Version)
	fmt.Fprintf(stdout, "go version: %s\n", runtime.Version())
}
