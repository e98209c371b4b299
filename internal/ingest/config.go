package ingest

import "time"

// Config contains configuration options that allow
// customization of how Medley detects files to ingest.
type Config struct {
	// The paths of the library directories scanned for media files.
	LibraryPaths []string `yaml:"library_paths" env:"MEDLEY_SCAN_LIBRARY_PATHS"`

	// The scan service uses a directory watcher, but a
	// 'force' sync can be performed on a regular interval
	// to protect against the watcher failing.
	ForceSyncSeconds int `yaml:"force_sync_seconds" env:"MEDLEY_SCAN_FORCE_SYNC_SECONDS" env-default:"3600"`
}

func (config *Config) ForceSyncInterval() time.Duration {
	return time.Duration(config.ForceSyncSeconds) * time.Second
}
