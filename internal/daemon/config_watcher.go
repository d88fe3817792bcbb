package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/inflight/internal/config"
	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
	"git.home.luguber.info/inful/inflight/internal/logfields"
)

// ConfigWatcher monitors configuration file changes and triggers reloads
type ConfigWatcher struct {
	configPath   string
	daemon       *Daemon
	watcher      *fsnotify.Watcher
	mu           sync.RWMutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, daemon *Daemon) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to create file watcher")
	}

	// Resolve absolute path for consistent watching
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to resolve config path").
			WithContext("path", configPath)
	}

	return &ConfigWatcher{
		configPath:   absPath,
		daemon:       daemon,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second, // Debounce rapid file changes
	}, nil
}

// Start begins monitoring the configuration file
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	// Watch the directory containing the config file (more reliable than watching the file directly)
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to watch config directory").
			WithContext("dir", configDir)
	}

	slog.Info("Starting configuration watcher", logfields.Path(cw.configPath))

	// Start the watcher goroutines
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)

	return nil
}

// Stop stops the configuration watcher
func (cw *ConfigWatcher) Stop(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	slog.Info("Stopping configuration watcher")

	// Signal stop to all goroutines
	close(cw.stopChan)

	// Close the file system watcher
	if cw.watcher != nil {
		if err := cw.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}

	return nil
}

// watchLoop monitors file system events
func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			// Only process events for our config file
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Op&fsnotify.Write == fsnotify.Write:
				slog.Debug("Config file write detected", "file", event.Name)
				cw.triggerReload()
			case event.Op&fsnotify.Create == fsnotify.Create:
				slog.Debug("Config file create detected", "file", event.Name)
				cw.triggerReload()
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				slog.Warn("Config file removed", "file", event.Name)
			case event.Op&fsnotify.Rename == fsnotify.Rename:
				slog.Debug("Config file rename detected", "file", event.Name)
				cw.triggerReload()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

// reloadLoop handles debounced configuration reloads
func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.stopChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.reloadChan:
			// Reset/start debounce timer
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(ctx); err != nil {
					slog.Error("Failed to reload configuration", logfields.Error(err))
				}
			})
		}
	}
}

// triggerReload triggers a debounced configuration reload
func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
		// Reload triggered
	default:
		// Reload already pending
	}
}

// performReload loads and applies the new configuration
func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("Reloading configuration", logfields.Path(cw.configPath))

	newConfig, err := config.Load(cw.configPath)
	if err != nil {
		return ierrors.WrapError(err, ierrors.CategoryConfig, "failed to load new configuration")
	}

	if err := cw.daemon.ReloadConfig(ctx, newConfig); err != nil {
		return ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to apply new configuration")
	}

	slog.Info("Configuration reloaded successfully")
	return nil
}
