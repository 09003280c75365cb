package config

import (
	"os"
	"path/filepath"
)

const (
	DB_NAME        = "database.sqlite"
	DB_PATH_ENVVAR = "FLOW_INDEX_MONITOR_DB_PATH"
)

// DBPath resolves the database location: the environment override first,
// then the configured path, then the XDG data directory.
func DBPath(configured string) string {
	if dbPath := os.Getenv(DB_PATH_ENVVAR); dbPath != "" {
		return dbPath
	}

	if configured != "" {
		return configured
	}

	return filepath.Join(DataDir(), DB_NAME)
}
