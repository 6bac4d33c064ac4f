package daemon

import (
	"log/slog"
	"reflect"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/logfields"
	"github.com/llnl/doxysite/internal/sphinx"
)

// reloadConfig re-reads the configuration file and swaps the build-facing
// parts in. A file that no longer parses or validates keeps the previous
// configuration active; renames during editor saves surface as transient
// load errors and resolve on the next event.
func (d *Daemon) reloadConfig() {
	next, err := config.Load(d.cfgPath)
	if err != nil {
		slog.Error("Configuration reload failed, keeping previous",
			logfields.Path(d.cfgPath),
			logfields.Error(err))
		return
	}

	d.mu.Lock()
	prev := d.cfg
	loadedDaemon := next.Daemon
	// Daemon-level settings (listener, queue, watch paths) are bound at
	// startup; only the build-facing configuration swaps live.
	next.Daemon = prev.Daemon
	d.cfg = next
	d.generator = sphinx.NewGenerator(next, d.root).SetRecorder(d.recorder)
	d.mu.Unlock()

	if loadedDaemon != nil && !reflect.DeepEqual(loadedDaemon, prev.Daemon) {
		slog.Warn("Daemon section changed; restart to apply it")
	}
	slog.Info("Configuration reloaded", logfields.Path(d.cfgPath))

	if d.debouncer != nil {
		d.debouncer.Notify("config reloaded")
	}
}
