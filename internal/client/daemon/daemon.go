package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/remote"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Syncer is the sync scheduler driven by the daemon.
type Syncer interface {
	PerformFullSync(ctx context.Context) models.SyncResult
	AutoSync(ctx context.Context) models.SyncResult
}

// ChangeSource subscribes to remote changes and returns the matching
// unsubscribe function.
type ChangeSource func(ctx context.Context, cb func(remote.Change)) (unsubscribe func(), err error)

// ListenerSource adapts a remote.Listener.
func ListenerSource(l *remote.Listener) ChangeSource {
	return func(ctx context.Context, cb func(remote.Change)) (func(), error) {
		sub, err := l.Subscribe(ctx, cb)
		if err != nil {
			return nil, err
		}
		return sub.Unsubscribe, nil
	}
}

type Publisher interface {
	Publish(models.SyncResult)
}

type Config struct {
	PollInterval     time.Duration
	DebounceInterval time.Duration
	// WatchPath is the local database file. Empty disables the file trigger.
	WatchPath string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:     30 * time.Second,
		DebounceInterval: 2 * time.Second,
	}
}

type Option func(*Daemon)

func WithChangeSource(src ChangeSource) Option {
	return func(d *Daemon) { d.changes = src }
}

func WithPublisher(p Publisher) Option {
	return func(d *Daemon) { d.publishers = append(d.publishers, p) }
}

type Daemon struct {
	syncer     Syncer
	changes    ChangeSource
	publishers []Publisher
	cfg        Config
	log        logging.Logger

	fullReq chan struct{}
	autoReq chan struct{}
}

func New(syncer Syncer, cfg Config, log logging.Logger, opts ...Option) *Daemon {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = def.DebounceInterval
	}
	d := &Daemon{
		syncer:  syncer,
		cfg:     cfg,
		log:     log,
		fullReq: make(chan struct{}, 1),
		autoReq: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run blocks until ctx is cancelled or a trigger fails to start.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info(ctx, "daemon starting",
		"poll_interval", d.cfg.PollInterval.String(), "watch", d.cfg.WatchPath)

	var w *fsnotify.Watcher
	if d.cfg.WatchPath != "" {
		var err error
		if w, err = fsnotify.NewWatcher(); err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Add(filepath.Dir(d.cfg.WatchPath)); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %s: %w", d.cfg.WatchPath, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.worker(ctx) })
	g.Go(func() error { return d.poll(ctx) })

	if d.changes != nil {
		g.Go(func() error { return d.listen(ctx) })
	}
	if w != nil {
		g.Go(func() error { return d.watch(ctx, w) })
	}

	d.requestAuto()

	err := g.Wait()
	d.log.Info(context.WithoutCancel(ctx), "daemon stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) requestFull() {
	select {
	case d.fullReq <- struct{}{}:
	default:
	}
}

func (d *Daemon) requestAuto() {
	select {
	case d.autoReq <- struct{}{}:
	default:
	}
}

// worker runs queued syncs one at a time. Full syncs take priority.
func (d *Daemon) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.fullReq:
			d.publish(ctx, d.syncer.PerformFullSync(ctx))
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-d.fullReq:
			d.publish(ctx, d.syncer.PerformFullSync(ctx))
		case <-d.autoReq:
			d.publish(ctx, d.syncer.AutoSync(ctx))
		}
	}
}

func (d *Daemon) publish(ctx context.Context, res models.SyncResult) {
	d.log.Debug(ctx, "sync result", "success", res.Success, "message", res.Message)
	for _, p := range d.publishers {
		p.Publish(res)
	}
}

func (d *Daemon) poll(ctx context.Context) error {
	t := time.NewTicker(d.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			d.requestAuto()
		}
	}
}

// listen forwards remote changes. A failed subscription is logged and the
// daemon keeps running on the other triggers.
func (d *Daemon) listen(ctx context.Context) error {
	deb := newDebouncer(d.cfg.DebounceInterval, d.requestFull)
	defer deb.stop()

	unsubscribe, err := d.changes(ctx, func(c remote.Change) {
		d.log.Debug(ctx, "remote change", "table", c.Table, "op", c.Op, "id", c.ID)
		deb.trigger()
	})
	if err != nil {
		d.log.Warn(ctx, "remote change feed unavailable", "error", err)
		return nil
	}
	defer unsubscribe()

	<-ctx.Done()
	return nil
}

func (d *Daemon) watch(ctx context.Context, w *fsnotify.Watcher) error {
	defer w.Close()

	deb := newDebouncer(d.cfg.DebounceInterval, d.requestAuto)
	defer deb.stop()

	base := filepath.Base(d.cfg.WatchPath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Also catches the -wal and -journal side files.
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			deb.trigger()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.log.Warn(ctx, "file watcher error", "error", err)
		}
	}
}

// debouncer calls fn once, interval after the last trigger.
type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	fn       func()
}

func newDebouncer(interval time.Duration, fn func()) *debouncer {
	return &debouncer{interval: interval, fn: fn}
}

func (b *debouncer) trigger() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.interval, b.fn)
}

func (b *debouncer) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
}
