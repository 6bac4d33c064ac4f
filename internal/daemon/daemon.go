// Package daemon runs the configuration generator as a long-lived service:
// it watches the extraction inputs for changes, rebuilds on a schedule, and
// exposes an admin HTTP endpoint for health, status, history and manual
// triggering.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/events"
	"github.com/llnl/doxysite/internal/history"
	"github.com/llnl/doxysite/internal/hosted"
	"github.com/llnl/doxysite/internal/logfields"
	"github.com/llnl/doxysite/internal/metrics"
	"github.com/llnl/doxysite/internal/sphinx"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(ctx context.Context, job *Job) (*sphinx.BuildReport, error)

func (f runnerFunc) Run(ctx context.Context, job *Job) (*sphinx.BuildReport, error) {
	return f(ctx, job)
}

// Daemon wires the generator, build queue, file watcher, scheduler, history
// store, event sink and admin server together.
type Daemon struct {
	cfg     *config.Config
	root    string
	cfgPath string // reload source; empty disables hot reload

	generator  *sphinx.Generator
	queue      *Queue
	watcher    *Watcher
	cfgWatcher *Watcher
	debouncer  *Debouncer
	scheduler  *Scheduler
	server     *Server
	store      *history.Store
	sink       events.Sink
	recorder   metrics.Recorder

	// mu serializes TriggerBuild against shutdown so late scheduler or
	// debouncer fires cannot observe half-torn-down components.
	mu        sync.Mutex
	status    atomic.Value // Status
	startTime time.Time
}

// New creates a daemon rooted at the project checkout. The configuration must
// carry a daemon section; Run applies everything else.
func New(cfg *config.Config, root string) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Daemon == nil {
		return nil, fmt.Errorf("configuration has no daemon section")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	d := &Daemon{
		cfg:      cfg,
		root:     abs,
		sink:     events.NoopSink{},
		recorder: metrics.NoopRecorder{},
	}
	d.status.Store(StatusStopped)
	return d, nil
}

// SetRecorder installs a metrics recorder. Chainable, call before Run.
func (d *Daemon) SetRecorder(rec metrics.Recorder) *Daemon {
	if rec != nil {
		d.recorder = rec
	}
	return d
}

// WithConfigFile enables hot reload from the given file. Chainable, call
// before Run.
func (d *Daemon) WithConfigFile(path string) *Daemon {
	d.cfgPath = path
	return d
}

// currentConfig returns the active configuration; reloads swap it.
func (d *Daemon) currentConfig() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// buildView returns the configuration and generator a build should use,
// consistent with each other across reloads.
func (d *Daemon) buildView() (*config.Config, *sphinx.Generator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg, d.generator
}

// Status returns the current lifecycle state.
func (d *Daemon) Status() Status {
	return d.status.Load().(Status)
}

func (d *Daemon) setStatus(s Status) {
	d.status.Store(s)
	slog.Debug("Daemon status changed", slog.String("status", string(s)))
}

// sitePath resolves a config-relative path against the site source directory,
// matching how the generator resolves template and input paths.
func (d *Daemon) sitePath(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Clean(filepath.Join(d.root, d.cfg.Site.SourceDir, rel))
}

// Run starts every component and blocks until the context is canceled, then
// shuts down gracefully. Optional subsystems that are explicitly enabled but
// fail to start abort startup rather than running silently degraded.
func (d *Daemon) Run(ctx context.Context) error {
	d.setStatus(StatusStarting)
	d.startTime = time.Now()

	// Startup settings come from the boot configuration; a hot reload only
	// affects subsequent builds.
	cfg := d.cfg
	dcfg := cfg.Daemon

	fail := func(err error) error {
		d.shutdown()
		d.setStatus(StatusError)
		return err
	}

	if cfg.History.Enabled {
		path := cfg.History.Path
		if path != ":memory:" && !filepath.IsAbs(path) {
			path = filepath.Join(d.root, path)
		}
		store, err := history.Open(path)
		if err != nil {
			return fail(fmt.Errorf("open history store: %w", err))
		}
		d.store = store
	}

	if cfg.Events != nil && cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events)
		if err != nil {
			return fail(fmt.Errorf("start event publisher: %w", err))
		}
		d.sink = pub
	}

	d.generator = sphinx.NewGenerator(cfg, d.root).SetRecorder(d.recorder)

	d.queue = NewQueue(dcfg.QueueSize, dcfg.Workers, runnerFunc(d.runBuild), d.recorder)
	d.queue.Start(ctx)

	quiet, err := time.ParseDuration(dcfg.Debounce)
	if err != nil {
		return fail(fmt.Errorf("parse debounce %q: %w", dcfg.Debounce, err))
	}
	d.debouncer = NewDebouncer(quiet, 0, func(count int, reason string) {
		detail := fmt.Sprintf("%d change(s), %s", count, reason)
		if _, err := d.TriggerBuild(TriggerWatch, detail); err != nil {
			slog.Warn("Watch-triggered build not queued", logfields.Error(err))
		}
	})
	go d.debouncer.Run(ctx)

	watchPaths := make([]string, 0, len(dcfg.WatchPaths))
	for _, p := range dcfg.WatchPaths {
		watchPaths = append(watchPaths, d.sitePath(p))
	}
	watcher, err := NewWatcher(watchPaths, func(path string) {
		d.recorder.IncWatchTrigger(path)
		d.debouncer.Notify(path)
	})
	if err != nil {
		return fail(fmt.Errorf("start file watcher: %w", err))
	}
	d.watcher = watcher
	go d.watcher.Run()

	if dcfg.Schedule != "" {
		interval, err := time.ParseDuration(dcfg.Schedule)
		if err != nil {
			return fail(fmt.Errorf("parse schedule %q: %w", dcfg.Schedule, err))
		}
		scheduler, err := NewScheduler()
		if err != nil {
			return fail(err)
		}
		jobID, err := scheduler.Every(interval, "periodic-rebuild", func() {
			if _, err := d.TriggerBuild(TriggerSchedule, "interval elapsed"); err != nil {
				slog.Warn("Scheduled build not queued", logfields.Error(err))
			}
		})
		if err != nil {
			return fail(fmt.Errorf("register schedule: %w", err))
		}
		d.scheduler = scheduler
		d.scheduler.Start()
		slog.Info("Periodic rebuild scheduled",
			slog.String("interval", interval.String()),
			logfields.JobID(jobID))
	}

	var metricsHandler http.Handler
	if h, ok := d.recorder.(interface{ HTTPHandler() http.Handler }); ok {
		metricsHandler = h.HTTPHandler()
	}
	d.server = NewServer(dcfg.HTTPAddr, d, metricsHandler)
	if err := d.server.Start(); err != nil {
		return fail(err)
	}

	if d.cfgPath != "" {
		cw, err := NewWatcher([]string{d.cfgPath}, func(string) { d.reloadConfig() })
		if err != nil {
			return fail(fmt.Errorf("watch config file: %w", err))
		}
		d.cfgWatcher = cw
		go d.cfgWatcher.Run()
	}

	d.setStatus(StatusRunning)
	slog.Info("Daemon running",
		logfields.Project(cfg.Site.Project),
		slog.String("root", d.root),
		slog.String("addr", d.server.Addr()),
		slog.Int("workers", dcfg.Workers),
		slog.Int("watch_paths", len(watchPaths)))

	<-ctx.Done()

	d.setStatus(StatusStopping)
	slog.Info("Daemon shutting down")
	d.shutdown()
	d.setStatus(StatusStopped)
	return nil
}

// shutdown stops whatever components have started, in reverse start order.
// Safe to call with partially initialized state.
func (d *Daemon) shutdown() {
	// Drain the admin server first: its handlers read daemon state and must
	// finish before components are detached.
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.server.Stop(ctx); err != nil {
			slog.Warn("Admin server shutdown failed", logfields.Error(err))
		}
		cancel()
		d.server = nil
	}

	// Detach under the lock so late TriggerBuild callers see a stopped
	// daemon, then stop the components without holding it: scheduler tasks
	// take the same lock inside TriggerBuild.
	d.mu.Lock()
	scheduler, watcher, cfgWatcher, queue := d.scheduler, d.watcher, d.cfgWatcher, d.queue
	d.scheduler, d.watcher, d.cfgWatcher, d.queue = nil, nil, nil, nil
	d.mu.Unlock()

	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}
	if watcher != nil {
		watcher.Stop()
	}
	if cfgWatcher != nil {
		cfgWatcher.Stop()
	}
	if queue != nil {
		// Waits for in-flight builds, which still use the store and sink.
		queue.Stop()
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Warn("History store close failed", logfields.Error(err))
		}
		d.store = nil
	}
	if err := d.sink.Close(); err != nil {
		slog.Warn("Event sink close failed", logfields.Error(err))
	}
	d.sink = events.NoopSink{}
}

// TriggerBuild enqueues a build job. Returns ErrQueueFull when the queue
// cannot take more work.
func (d *Daemon) TriggerBuild(trigger Trigger, reason string) (*Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch status := d.Status(); status {
	case StatusStopping, StatusStopped, StatusError:
		return nil, fmt.Errorf("daemon is %s", status)
	}
	if d.queue == nil {
		return nil, fmt.Errorf("daemon is not started")
	}
	job, err := d.queue.Enqueue(trigger, reason)
	if err != nil {
		return nil, err
	}
	slog.Info("Build queued",
		logfields.JobID(job.ID),
		logfields.JobType(string(trigger)),
		slog.String("reason", reason))
	return job, nil
}

// runBuild executes one queued job: announce, build, record, announce again.
// History and event failures are warnings; only the build itself decides the
// job outcome.
func (d *Daemon) runBuild(ctx context.Context, job *Job) (*sphinx.BuildReport, error) {
	cfg, gen := d.buildView()
	detection := hosted.Detect(cfg.Hosted)
	d.publishEvent(ctx, events.NewStartedEvent(job.ID, cfg.Site.Project, string(job.Trigger), detection.Hosted))

	report, err := gen.Build(ctx)

	if report != nil {
		d.recordHistory(ctx, report, cfg.History.Keep)
	}
	d.publishEvent(context.WithoutCancel(ctx),
		d.completedEvent(ctx, job, detection.Hosted, cfg.Site.Project, report, err))
	return report, err
}

// completedEvent maps a finished build to its event, synthesizing one when
// the build died before producing a report.
func (d *Daemon) completedEvent(ctx context.Context, job *Job, hosted bool, project string, report *sphinx.BuildReport, err error) events.BuildEvent {
	if report != nil {
		return events.NewCompletedEvent(job.ID, string(job.Trigger), report)
	}
	outcome := string(sphinx.OutcomeFailed)
	if ctx.Err() != nil {
		outcome = string(sphinx.OutcomeCanceled)
	}
	ev := events.BuildEvent{
		Type:    events.TypeCompleted,
		BuildID: job.ID,
		Project: project,
		Trigger: string(job.Trigger),
		Hosted:  hosted,
		Outcome: outcome,
	}
	if err != nil {
		ev.Errors = 1
	}
	return ev
}

func (d *Daemon) recordHistory(ctx context.Context, report *sphinx.BuildReport, keep int) {
	if d.store == nil {
		return
	}
	if _, err := d.store.Record(ctx, report); err != nil {
		slog.Warn("Recording build history failed", logfields.Error(err))
		return
	}
	if keep > 0 {
		if _, err := d.store.Prune(ctx, keep); err != nil {
			slog.Warn("Pruning build history failed", logfields.Error(err))
		}
	}
}

func (d *Daemon) publishEvent(ctx context.Context, ev events.BuildEvent) {
	if d.sink == nil {
		return
	}
	if err := d.sink.Publish(ctx, ev); err != nil {
		slog.Warn("Publishing build event failed",
			slog.String("type", ev.Type),
			logfields.Error(err))
	}
}
