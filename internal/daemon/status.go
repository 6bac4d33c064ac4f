package daemon

import (
	"context"
	"time"
)

// StatusSnapshot is the /status payload: a point-in-time view of the daemon
// for operators and the CLI.
type StatusSnapshot struct {
	Status     Status         `json:"status"`
	StartTime  time.Time      `json:"start_time"`
	Uptime     string         `json:"uptime"`
	Project    string         `json:"project"`
	Root       string         `json:"root"`
	Workers    int            `json:"workers"`
	QueueDepth int            `json:"queue_depth"`
	ActiveJobs int            `json:"active_jobs"`
	WatchPaths []string       `json:"watch_paths,omitempty"`
	Schedule   string         `json:"schedule,omitempty"`
	LastJob    *Job           `json:"last_job,omitempty"`
	Outcomes   map[string]int `json:"outcomes,omitempty"`
}

// statusSnapshot assembles the current view. History counts are best effort;
// a broken store must not take /status down with it.
func (d *Daemon) statusSnapshot(ctx context.Context) StatusSnapshot {
	cfg := d.currentConfig()
	snap := StatusSnapshot{
		Status:     d.Status(),
		StartTime:  d.startTime,
		Uptime:     time.Since(d.startTime).Round(time.Second).String(),
		Project:    cfg.Site.Project,
		Root:       d.root,
		Workers:    cfg.Daemon.Workers,
		QueueDepth: d.queue.Depth(),
		ActiveJobs: d.queue.ActiveCount(),
		WatchPaths: cfg.Daemon.WatchPaths,
		Schedule:   cfg.Daemon.Schedule,
	}
	if recent := d.queue.Recent(); len(recent) > 0 {
		job := recent[len(recent)-1]
		snap.LastJob = &job
	}
	if d.store != nil {
		if counts, err := d.store.OutcomeCounts(ctx); err == nil {
			snap.Outcomes = counts
		}
	}
	return snap
}
