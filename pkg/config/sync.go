package config

import (
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
)

const (
	// InitialSyncConfigVersion is the first version of the sync job config.
	// Config files that do not specify a version will default to this
	// version.
	InitialSyncConfigVersion = "v1alpha1"

	// SupportedSyncConfigVersion is the sync job config version understood
	// by this binary.
	SupportedSyncConfigVersion = "v1alpha1"
)

// SyncConfig describes a single sync job. Every field is optional, since the
// values can also be passed on the command line.
type SyncConfig struct {
	Version string `json:"version,omitempty"`
	Source  string `json:"source,omitempty"`
	Replica string `json:"replica,omitempty"`

	// Interval is a Go duration such as "30s". Zero runs a single pass.
	Interval  string `json:"interval,omitempty"`
	ChunkSize string `json:"chunkSize,omitempty"`
	LogFile   string `json:"logFile,omitempty"`
	Quiet     bool   `json:"quiet,omitempty"`
	Watch     bool   `json:"watch,omitempty"`

	// Only populated and consumed by foldersync. Never set by user.
	path string
}

// GetPath returns the filepath that the job was parsed from. A getter
// method is used rather than making the field public so that it can't get set
// by the yaml Unmarshalling.
func (c SyncConfig) GetPath() string {
	return c.path
}

func (c SyncConfig) getVersion() string {
	return c.Version
}

// ParseSyncConfig parses the sync job file at `path`. Relative paths in the
// file are evaluated relative to the directory containing it.
func ParseSyncConfig(path string) (SyncConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
		log.WithError(err).Debug("Failed to parse absolute path")
	}

	config := SyncConfig{
		path:    absPath,
		Version: InitialSyncConfigVersion,
	}
	if err := parseConfig(absPath, &config, SupportedSyncConfigVersion); err != nil {
		return SyncConfig{}, errors.WithContext(err, "parse")
	}

	if config.Interval != "" {
		if _, err := time.ParseDuration(config.Interval); err != nil {
			return SyncConfig{}, errors.NewFriendlyError(
				"The interval %q in %q is not a valid duration.\n"+
					"Durations are written like \"90s\" or \"5m\".",
				config.Interval, absPath)
		}
	}

	for _, field := range []*string{&config.Source, &config.Replica, &config.LogFile} {
		*field, err = resolvePath(*field, absPath)
		if err != nil {
			return SyncConfig{}, errors.WithContext(err, "expand path")
		}
	}
	return config, nil
}
