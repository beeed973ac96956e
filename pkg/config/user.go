package config

import (
	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

const (
	// UserConfigPath is the default path to the foldersync user config.
	UserConfigPath = "~/.foldersync.yaml"

	// InitialUserConfigVersion is the first version of the user config.
	// Config files that do not specify a version will default to this
	// version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the user config version understood by
	// this binary.
	SupportedUserConfigVersion = "v1alpha1"
)

// User contains the defaults that apply to every sync job run by the user.
type User struct {
	Version string `json:"version,omitempty"`

	// ChunkSize is a human readable size such as "4 KiB" or "64k".
	ChunkSize string `json:"chunkSize,omitempty"`
	LogFile   string `json:"logFile,omitempty"`
	Quiet     bool   `json:"quiet,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// ParseUser parses the user config stored in the default path. A missing file
// isn't an error, in which case the returned config is empty.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return User{Version: InitialUserConfigVersion}, nil
		}
		return User{}, errors.WithContext(err, "parse")
	}

	config.LogFile, err = resolvePath(config.LogFile, path)
	if err != nil {
		return User{}, errors.WithContext(err, "expand log file path")
	}
	return config, nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the path to the user's global foldersync
// configuration. This path is expanded, so it can be directly passed to file
// operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
