package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
)

func TestSetupConfig(t *testing.T) {
	tests := []struct {
		name      string
		existing  config.User
		changed   []string
		cliOpts   config.User
		expConfig config.User
		expError  bool
	}{
		{
			name:      "NothingChanged",
			existing:  config.User{ChunkSize: "8 KiB", Quiet: true},
			cliOpts:   config.User{ChunkSize: "1 KiB"},
			expConfig: config.User{ChunkSize: "8 KiB", Quiet: true},
		},
		{
			name:      "SetChunkSize",
			existing:  config.User{LogFile: "/sync.log"},
			changed:   []string{"chunk-size"},
			cliOpts:   config.User{ChunkSize: "16 KiB"},
			expConfig: config.User{ChunkSize: "16 KiB", LogFile: "/sync.log"},
		},
		{
			name:      "ClearLogFile",
			existing:  config.User{LogFile: "/sync.log", Quiet: true},
			changed:   []string{"log-file", "quiet"},
			expConfig: config.User{},
		},
		{
			name:      "SetLogFile",
			changed:   []string{"log-file"},
			cliOpts:   config.User{LogFile: "/var/log/../log/sync.log"},
			expConfig: config.User{LogFile: "/var/log/sync.log"},
		},
		{
			name:     "InvalidChunkSize",
			changed:  []string{"chunk-size"},
			cliOpts:  config.User{ChunkSize: "0"},
			expError: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			stdout = &out

			var written *config.User
			parseUserConfig = func() (config.User, error) {
				return test.existing, nil
			}
			writeUserConfig = func(cfg config.User) error {
				written = &cfg
				return nil
			}
			getUserConfigPath = func() (string, error) {
				return "/home/user/.foldersync.yaml", nil
			}

			changed := func(name string) bool {
				for _, c := range test.changed {
					if c == name {
						return true
					}
				}
				return false
			}

			err := setupConfig(changed, test.cliOpts)
			if test.expError {
				assert.Error(t, err)
				assert.Nil(t, written)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, &test.expConfig, written)
			assert.Equal(t, "Wrote config to /home/user/.foldersync.yaml\n", out.String())
		})
	}
}

func TestSetupConfigWriteError(t *testing.T) {
	stdout = &bytes.Buffer{}
	parseUserConfig = func() (config.User, error) {
		return config.User{}, nil
	}
	writeUserConfig = func(config.User) error {
		return assert.AnError
	}

	err := setupConfig(func(string) bool { return false }, config.User{})
	assert.Equal(t, errors.WithContext(assert.AnError, "write config"), err)
}

func TestGetters(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.User
		getter string
		expOut string
	}{
		{
			name:   "DefaultChunkSize",
			getter: "get-chunk-size",
			expOut: "4.0 KiB\n",
		},
		{
			name:   "ConfiguredChunkSize",
			cfg:    config.User{ChunkSize: "64k"},
			getter: "get-chunk-size",
			expOut: "64k\n",
		},
		{
			name:   "LogFile",
			cfg:    config.User{LogFile: "/sync.log"},
			getter: "get-log-file",
			expOut: "/sync.log\n",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			stdout = &out
			parseUserConfig = func() (config.User, error) {
				return test.cfg, nil
			}

			cmd := New()
			cmd.SetArgs([]string{test.getter})
			assert.NoError(t, cmd.Execute())
			assert.Equal(t, test.expOut, out.String())
		})
	}
}
