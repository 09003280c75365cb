package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	APP_DIR_NAME = "flow-index-monitor"
)

// DataDir is where the database lives: $XDG_DATA_HOME/flow-index-monitor,
// ~/.local/share/flow-index-monitor or ~/.flow-index-monitor.
func DataDir() string {
	return appDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigDir is where config.yaml lives: $XDG_CONFIG_HOME/flow-index-monitor,
// ~/.config/flow-index-monitor or ~/.flow-index-monitor.
func ConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

func appDir(xdgEnvVar string, homeRelative string) string {
	if xdgHome := os.Getenv(xdgEnvVar); xdgHome != "" {
		return filepath.Join(xdgHome, APP_DIR_NAME)
	}

	homeDir, err := os.UserHomeDir()
	// In case the home directory cannot be determined use the current working directory
	if err != nil {
		currentDir, err := os.Getwd()
		if err != nil {
			return "."
		}

		return currentDir
	}

	standardPath := filepath.Join(homeDir, homeRelative)
	if _, err := os.Stat(standardPath); err == nil {
		return filepath.Join(standardPath, APP_DIR_NAME)
	}

	return filepath.Join(homeDir, fmt.Sprintf(".%s", APP_DIR_NAME))
}
