package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout           io.Writer = os.Stdout
	parseUserConfig            = config.ParseUser
	writeUserConfig            = config.WriteUser
	getUserConfigPath          = config.GetUserConfigPath
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Set the defaults used by every sync job",
		Long: "Set the defaults used by every sync job. Only the values of the\n" +
			"flags that are passed are changed.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := setupConfig(cmd.Flags().Changed, cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.ChunkSize, "chunk-size", "",
		"The default chunk size, e.g. \"4 KiB\".")
	cmd.Flags().StringVar(&cliOpts.LogFile, "log-file", "",
		"The default file to append logs to. An empty value disables the log file.")
	cmd.Flags().BoolVar(&cliOpts.Quiet, "quiet", false,
		"Don't log to the console by default.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-chunk-size",
			short: "Get the configured default chunk size",
			fn: func(cfg config.User) string {
				size := cfg.ChunkSize
				if size == "" {
					size = humanize.IBytes(uint64(config.DefaultOptions().ChunkSize))
				}
				return size
			},
		},
		{
			use:   "get-log-file",
			short: "Get the configured default log file",
			fn:    func(cfg config.User) string { return cfg.LogFile },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

func setupConfig(changed func(string) bool, cliOpts config.User) error {
	cfg, err := parseUserConfig()
	if err != nil {
		return errors.WithContext(err, "read config")
	}

	if changed("chunk-size") {
		if _, err := config.ParseChunkSize(cliOpts.ChunkSize); err != nil {
			return err
		}
		cfg.ChunkSize = cliOpts.ChunkSize
	}

	if changed("log-file") {
		cfg.LogFile = cliOpts.LogFile
		if cfg.LogFile != "" {
			cfg.LogFile, err = filepath.Abs(cfg.LogFile)
			if err != nil {
				return errors.WithContext(err, "resolve log file path")
			}
		}
	}

	if changed("quiet") {
		cfg.Quiet = cliOpts.Quiet
	}

	if err := writeUserConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := getUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}
