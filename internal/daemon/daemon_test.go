package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/events"
	"github.com/llnl/doxysite/internal/sphinx"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, "."); err == nil {
		t.Error("nil config must be rejected")
	}

	cfg := config.Default()
	if _, err := New(cfg, "."); err == nil {
		t.Error("config without a daemon section must be rejected")
	}

	cfg.Daemon = &config.DaemonConfig{}
	require.NoError(t, config.ApplyDefaults(cfg))
	d, err := New(cfg, ".")
	require.NoError(t, err)
	require.Equal(t, StatusStopped, d.Status())
	require.True(t, filepath.IsAbs(d.root))
}

func TestSitePath(t *testing.T) {
	cfg := config.Default()
	cfg.Site.SourceDir = "docs/rtd"
	cfg.Daemon = &config.DaemonConfig{}
	require.NoError(t, config.ApplyDefaults(cfg))

	root := t.TempDir()
	d, err := New(cfg, root)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(root, "docs", "Doxyfile.in"), d.sitePath("../Doxyfile.in"))
	require.Equal(t, filepath.Join(root, "include"), d.sitePath("../../include"))
	require.Equal(t, filepath.Join(root, "docs", "rtd", "conf.py"), d.sitePath("conf.py"))

	abs := filepath.Join(root, "elsewhere")
	require.Equal(t, abs, d.sitePath(abs))
}

func TestTriggerBuild_RefusesWhenNotRunning(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon = &config.DaemonConfig{}
	require.NoError(t, config.ApplyDefaults(cfg))
	d, err := New(cfg, t.TempDir())
	require.NoError(t, err)

	_, err = d.TriggerBuild(TriggerManual, "too early")
	require.Error(t, err)
	require.Contains(t, err.Error(), "stopped")
}

func TestCompletedEvent(t *testing.T) {
	d := testDaemon(t)
	job := &Job{ID: "j-9", Trigger: TriggerWatch}

	report := &sphinx.BuildReport{
		Project: "ygm",
		Hosted:  true,
		Outcome: string(sphinx.OutcomeWarning),
		Start:   time.Now().Add(-time.Second),
		End:     time.Now(),
	}
	ev := d.completedEvent(context.Background(), job, true, "ygm", report, nil)
	require.Equal(t, events.TypeCompleted, ev.Type)
	require.Equal(t, "warning", ev.Outcome)
	require.Equal(t, "j-9", ev.BuildID)

	// No report: the event is synthesized from what the daemon knows.
	ev = d.completedEvent(context.Background(), job, true, "ygm", nil, errors.New("template missing"))
	require.Equal(t, string(sphinx.OutcomeFailed), ev.Outcome)
	require.Equal(t, "ygm", ev.Project)
	require.True(t, ev.Hosted)
	require.Equal(t, 1, ev.Errors)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	ev = d.completedEvent(canceled, job, false, "ygm", nil, context.Canceled)
	require.Equal(t, string(sphinx.OutcomeCanceled), ev.Outcome)
}

func TestAggregateHealth(t *testing.T) {
	cases := []struct {
		name   string
		checks []HealthCheck
		want   HealthStatus
	}{
		{"empty", nil, HealthHealthy},
		{"all healthy", []HealthCheck{{Status: HealthHealthy}, {Status: HealthHealthy}}, HealthHealthy},
		{"one degraded", []HealthCheck{{Status: HealthHealthy}, {Status: HealthDegraded}}, HealthDegraded},
		{"unhealthy wins", []HealthCheck{{Status: HealthDegraded}, {Status: HealthUnhealthy}}, HealthUnhealthy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, aggregateHealth(tc.checks))
		})
	}
}

func TestHTTPStatusFor(t *testing.T) {
	require.Equal(t, http.StatusOK, httpStatusFor(HealthHealthy))
	require.Equal(t, http.StatusOK, httpStatusFor(HealthDegraded))
	require.Equal(t, http.StatusServiceUnavailable, httpStatusFor(HealthUnhealthy))
}

// TestDaemon_RunLifecycle exercises the full path: start, serve, build on
// demand, shut down.
func TestDaemon_RunLifecycle(t *testing.T) {
	t.Setenv("READTHEDOCS", "")

	root := t.TempDir()
	site := filepath.Join(root, "docs", "rtd")
	require.NoError(t, os.MkdirAll(site, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "include", "ygm"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "include", "ygm", "comm.hpp"), []byte("#pragma once\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.rst"), []byte("YGM\n===\n"), 0o644))

	cfg := config.Default()
	cfg.Site.SourceDir = "docs/rtd"
	cfg.History.Enabled = true
	cfg.History.Path = ":memory:"
	cfg.Daemon = &config.DaemonConfig{
		HTTPAddr: "127.0.0.1:0",
		Debounce: "20ms",
	}
	require.NoError(t, config.ApplyDefaults(cfg))

	d, err := New(cfg, root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return d.Status() == StatusRunning
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + d.server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	job, err := d.TriggerBuild(TriggerManual, "lifecycle test")
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		recent := d.queue.Recent()
		return len(recent) == 1 && recent[0].Status == JobCompleted
	}, 10*time.Second, 50*time.Millisecond)

	// The local build wrote the site configuration.
	if _, err := os.Stat(filepath.Join(site, "conf.py")); err != nil {
		t.Errorf("conf.py missing after build: %v", err)
	}

	counts, err := d.store.OutcomeCounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counts[string(sphinx.OutcomeSuccess)])

	cancel()
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	require.Equal(t, StatusStopped, d.Status())
}
