package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/llnl/doxysite/internal/version"
)

// HealthStatus classifies the daemon's overall condition.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of a single probe.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// healthResponse runs all probes and aggregates them. Degraded states still
// answer HTTP 200 so orchestrators do not restart a daemon that is merely
// busy.
func (d *Daemon) healthResponse() HealthResponse {
	cfg := d.currentConfig()
	checks := []HealthCheck{
		d.checkStatus(),
		d.checkQueue(cfg.Daemon.QueueSize),
	}
	if cfg.History.Enabled {
		checks = append(checks, d.checkHistory())
	}
	return HealthResponse{
		Status:    aggregateHealth(checks),
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Checks:    checks,
	}
}

func (d *Daemon) checkStatus() HealthCheck {
	check := HealthCheck{Name: "daemon_status"}
	switch status := d.Status(); status {
	case StatusRunning:
		check.Status = HealthHealthy
		check.Message = "running"
	case StatusStarting, StatusStopping:
		check.Status = HealthDegraded
		check.Message = string(status)
	default:
		check.Status = HealthUnhealthy
		check.Message = string(status)
	}
	return check
}

func (d *Daemon) checkQueue(capacity int) HealthCheck {
	check := HealthCheck{Name: "build_queue"}
	depth := d.queue.Depth()
	check.Message = fmt.Sprintf("%d/%d queued, %d active", depth, capacity, d.queue.ActiveCount())
	if capacity > 0 && depth >= capacity {
		check.Status = HealthDegraded
		return check
	}
	check.Status = HealthHealthy
	return check
}

func (d *Daemon) checkHistory() HealthCheck {
	check := HealthCheck{Name: "history_store"}
	if d.store == nil {
		check.Status = HealthDegraded
		check.Message = "enabled but not open"
		return check
	}
	check.Status = HealthHealthy
	check.Message = "open"
	return check
}

// aggregateHealth reduces probe results to the worst observed status.
func aggregateHealth(checks []HealthCheck) HealthStatus {
	status := HealthHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthUnhealthy:
			return HealthUnhealthy
		case HealthDegraded:
			status = HealthDegraded
		}
	}
	return status
}

// httpStatusFor maps a health status to the wire status code.
func httpStatusFor(status HealthStatus) int {
	if status == HealthUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
