// Package daemon runs the inflight agent: it owns the counter registry
// and composes snapshot persistence, scheduling, config hot reload, HTTP
// exposure, and optional NATS publishing around it.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/inflight/internal/config"
	"git.home.luguber.info/inful/inflight/internal/counted"
	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
	"git.home.luguber.info/inful/inflight/internal/events"
	"git.home.luguber.info/inful/inflight/internal/logfields"
	"git.home.luguber.info/inful/inflight/internal/metrics"
	"git.home.luguber.info/inful/inflight/internal/natspub"
	"git.home.luguber.info/inful/inflight/internal/snapshot"
)

// Daemon is the long-running inflight agent.
type Daemon struct {
	mu  sync.RWMutex
	cfg *config.Config

	registry   *metrics.Registry
	bus        *events.Bus
	store      snapshot.Store
	projection *snapshot.LatestProjection
	publisher  *natspub.Publisher
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	httpServer *HTTPServer

	snapshotFn counted.Callable[int]

	startTime time.Time
	started   bool
}

// snapshotCounterName tracks in-flight snapshot passes through the same
// counted machinery the daemon exposes to its users.
const snapshotCounterName = "snapshots.active"

// New creates a daemon from the given configuration.
func New(cfg *config.Config) (*Daemon, error) {
	bus := events.NewBus()

	var regOpts []metrics.Option
	regOpts = append(regOpts, metrics.WithBus(bus))
	if cfg.Registry != "" {
		regOpts = append(regOpts, metrics.WithIdentity(cfg.Registry))
	}
	registry := metrics.NewRegistry(regOpts...)

	d := &Daemon{
		cfg:      cfg,
		registry: registry,
		bus:      bus,
	}

	d.registerConfiguredCounters(cfg)

	if cfg.Snapshot.Enabled {
		store, err := snapshot.NewSQLiteStore(cfg.Snapshot.Store)
		if err != nil {
			bus.Close()
			return nil, err
		}
		d.store = store
		d.projection = snapshot.NewLatestProjection(store)
	}

	if cfg.NATS.Enabled {
		publisher, err := natspub.NewPublisher(cfg.NATS)
		if err != nil {
			d.closeResources()
			return nil, err
		}
		d.publisher = publisher
	}

	scheduler, err := NewScheduler()
	if err != nil {
		d.closeResources()
		return nil, err
	}
	d.snapshotFn = counted.Wrap(registry, counted.Options{
		Name:      snapshotCounterName,
		Namespace: cfg.Namespace,
	}, d.snapshotPass)

	scheduler.SetSnapshotFunc(d.takeSnapshot)
	d.scheduler = scheduler

	d.httpServer = NewHTTPServer(cfg, d)

	return d, nil
}

// NewWithConfigFile creates a daemon that additionally watches configPath
// and hot-reloads counter declarations and the snapshot interval.
func NewWithConfigFile(cfg *config.Config, configPath string) (*Daemon, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}

	watcher, err := NewConfigWatcher(configPath, d)
	if err != nil {
		d.closeResources()
		return nil, err
	}
	d.watcher = watcher
	return d, nil
}

// Registry returns the counter registry owned by the daemon.
func (d *Daemon) Registry() *metrics.Registry { return d.registry }

// Bus returns the daemon's event bus.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Config returns the currently applied configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// StartTime returns when Start was called.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// Start brings up the scheduler, config watcher, and HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ierrors.DaemonError("daemon already started")
	}
	d.started = true
	d.startTime = time.Now()
	cfg := d.cfg
	d.mu.Unlock()

	if d.projection != nil {
		if err := d.projection.Rebuild(ctx); err != nil {
			return err
		}
	}

	if cfg.Snapshot.Enabled {
		if err := d.scheduler.ScheduleSnapshots(cfg.Snapshot.IntervalDuration()); err != nil {
			return err
		}
	}
	d.scheduler.Start(ctx)

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}

	slog.Info("Daemon starting",
		logfields.Registry(d.registry.String()),
		logfields.Listen(cfg.HTTP.Listen))

	return d.httpServer.Start(ctx)
}

// Stop shuts everything down in reverse start order.
func (d *Daemon) Stop(ctx context.Context) error {
	var firstErr error

	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Persist one final pass so the store reflects shutdown state.
	if d.store != nil {
		d.takeSnapshot()
	}

	d.closeResources()

	slog.Info("Daemon stopped")
	return firstErr
}

func (d *Daemon) closeResources() {
	if d.publisher != nil {
		d.publisher.Close()
		d.publisher = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Warn("Failed to close snapshot store", logfields.Error(err))
		}
		d.store = nil
	}
	if d.bus != nil {
		d.bus.Close()
	}
}

// registerConfiguredCounters registers every declared counter up front so
// counted invocations can resolve them from the first call.
func (d *Daemon) registerConfiguredCounters(cfg *config.Config) {
	for _, spec := range cfg.Counters {
		name := spec.Name
		if !spec.Absolute && cfg.Namespace != "" {
			name = cfg.Namespace + "." + name
		}
		d.registry.Counter(name)
		slog.Debug("Registered configured counter", logfields.Counter(name))
	}
}

// takeSnapshot runs one snapshot pass through the counted wrapper so the
// pass itself shows up as an in-flight counter while it runs.
func (d *Daemon) takeSnapshot() {
	if d.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := d.snapshotFn(ctx); err != nil {
		slog.Error("Snapshot pass failed", logfields.Error(err))
	}
}

// snapshotPass persists the current value of every registered counter and
// fans the pass out to the bus and the optional NATS publisher. It returns
// the number of counters captured.
func (d *Daemon) snapshotPass(ctx context.Context) (int, error) {
	takenAt := time.Now()
	var snaps []snapshot.Snapshot
	d.registry.Each(func(name string, c *metrics.Counter) {
		snaps = append(snaps, snapshot.Snapshot{
			Counter:  name,
			Registry: d.registry.String(),
			Count:    c.Count(),
			TakenAt:  takenAt,
		})
	})

	for _, snap := range snaps {
		if err := d.store.Append(ctx, snap); err != nil {
			slog.Error("Failed to persist snapshot",
				logfields.Counter(snap.Counter),
				logfields.Error(err))
			continue
		}
		if d.projection != nil {
			d.projection.Apply(snap)
		}
	}

	if err := d.bus.Publish(ctx, events.SnapshotTaken{
		Registry: d.registry.String(),
		Counters: len(snaps),
		TakenAt:  takenAt,
	}); err != nil {
		slog.Debug("Failed to publish snapshot event", logfields.Error(err))
	}

	if d.publisher != nil {
		if err := d.publisher.PublishBatch(ctx, d.registry.String(), snaps); err != nil {
			slog.Warn("Failed to publish snapshot batch", logfields.Error(err))
		}
	}

	slog.Debug("Snapshot pass complete", slog.Int("counters", len(snaps)))
	return len(snaps), nil
}

// ReloadConfig applies a changed configuration: newly declared counters
// are registered and the snapshot interval is rescheduled. Listen address
// and store changes require a restart and are ignored with a warning.
func (d *Daemon) ReloadConfig(ctx context.Context, newCfg *config.Config) error {
	d.mu.Lock()
	oldCfg := d.cfg
	d.cfg = newCfg
	d.mu.Unlock()

	d.registerConfiguredCounters(newCfg)

	if newCfg.HTTP.Listen != oldCfg.HTTP.Listen {
		slog.Warn("HTTP listen address change requires restart",
			logfields.Listen(newCfg.HTTP.Listen))
	}
	if newCfg.Snapshot.Store != oldCfg.Snapshot.Store {
		slog.Warn("Snapshot store change requires restart",
			logfields.Path(newCfg.Snapshot.Store))
	}

	if newCfg.Snapshot.Enabled && newCfg.Snapshot.Interval != oldCfg.Snapshot.Interval {
		if err := d.scheduler.RescheduleSnapshots(newCfg.Snapshot.IntervalDuration()); err != nil {
			return err
		}
		slog.Info("Snapshot interval updated", logfields.Interval(newCfg.Snapshot.Interval))
	}

	return nil
}
