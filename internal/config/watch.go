package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/famish99/deckd/internal/logging"
)

// Editors save in bursts; the file is read this long after the last change.
const reloadSettle = 100 * time.Millisecond

// Watch re-reads the config file whenever it changes and passes the new
// config to fn. Invalid files are logged and skipped. It blocks until ctx is
// cancelled.
//
// The directory is watched rather than the file so editors that replace the
// file by rename keep working.
func Watch(ctx context.Context, path string, logger *log.Logger, fn func(*Config)) error {
	logger = logging.OrDefault(logger)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	// Each event restarts the settle timer; the file is read once it fires
	settle := time.NewTimer(reloadSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle.Reset(reloadSettle)
		case <-settle.C:
			cfg, err := LoadConfig(abs)
			if err != nil {
				logger.Warn("ignoring invalid config change", "path", abs, "err", err)
				continue
			}
			logger.Info("config reloaded", "path", abs)
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "err", err)
		}
	}
}
