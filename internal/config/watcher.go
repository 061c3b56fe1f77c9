package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces editor write bursts into one reload.
const debounce = 500 * time.Millisecond

// Watch reloads the agents and rooms sections when the config file
// changes, and notifies onReload (may be nil). Static sections (database,
// gateway, channels) require a restart and are deliberately not reloaded.
func Watch(ctx context.Context, cfg *Config, path string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors often replace the file, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					reload(cfg, path, onReload)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	slog.Info("watching config for roster changes", "path", path)
	return nil
}

func reload(cfg *Config, path string, onReload func(*Config)) {
	fresh, err := Load(path)
	if err != nil {
		slog.Warn("config reload failed, keeping previous roster", "error", err)
		return
	}
	cfg.SetRoster(fresh.Agents, fresh.Rooms)
	slog.Info("reloaded agent roster", "agents", len(fresh.Agents), "rooms", len(fresh.Rooms))
	if onReload != nil {
		onReload(cfg)
	}
}
