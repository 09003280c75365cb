package globals

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/monorkin/flow-index-monitor/internal/config"
	"github.com/monorkin/flow-index-monitor/internal/database"
	"gorm.io/gorm"
)

var (
	// Global instances
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger

	// Ensure initialization happens only once
	initOnce   sync.Once
	initErr    error
	loggerOnce sync.Once
)

// Initialize sets up the logger and loads the config exactly once. An empty
// configPath means the default location.
func Initialize(verbose bool, configPath string) error {
	initOnce.Do(func() {
		InitializeLogger(verbose, configPath)

		Logger.Debug("Loading config", "path", ConfigPath)

		usedDefaults, cfg, err := config.LoadOrDefault(ConfigPath)
		if err != nil {
			initErr = err
			return
		}
		Config = cfg

		if usedDefaults {
			Logger.Debug("Config file not found, using defaults", "path", ConfigPath)
		} else {
			Logger.Debug("Loaded existing config")
		}
	})

	return initErr
}

// InitializeLogger sets up the logger and resolves ConfigPath without reading
// the config file, for commands that must work when the file is broken.
func InitializeLogger(verbose bool, configPath string) {
	loggerOnce.Do(func() {
		setupLogger(verbose)

		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}
		ConfigPath = configPath
	})
}

// Database opens the configured database, applying migrations on first use.
func Database() (*gorm.DB, error) {
	MustBeInitialized()

	path := Config.DBPath()
	if err := database.Init(path); err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	Logger.Debug("Database initialized", "path", path)
	return database.DB, nil
}

// setupLogger configures the global logger
func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(Logger)
}

// MustBeInitialized panics if globals haven't been initialized
func MustBeInitialized() {
	if Config == nil || Logger == nil {
		panic("globals not initialized - call globals.Initialize() first")
	}
}
