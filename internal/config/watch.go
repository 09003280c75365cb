package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 50 * time.Millisecond

// Watch reloads the config at path whenever it changes and hands the result
// to onChange, until ctx is cancelled. The parent directory is watched so
// that editors which save by renaming a temp file over path keep working.
// A reload that fails to parse or validate is logged and skipped.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	logger.Info("Watching config for changes", "path", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = time.After(reloadDelay)

		case <-pending:
			pending = nil

			cfg, err := Load(path)
			if err != nil {
				logger.Error("Config reload failed, keeping previous config", "path", path, "error", err)
				continue
			}

			logger.Info("Config reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Config watcher error", "error", err)
		}
	}
}
