package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llnl/doxysite/internal/logfields"
	"github.com/llnl/doxysite/internal/metrics"
	"github.com/llnl/doxysite/internal/sphinx"
)

// Trigger identifies what caused a build job.
type Trigger string

const (
	TriggerManual   Trigger = "manual"   // API or CLI request
	TriggerWatch    Trigger = "watch"    // file change notification
	TriggerSchedule Trigger = "schedule" // periodic rebuild
)

// JobStatus is the lifecycle state of a queued build.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// ErrQueueFull is returned by Enqueue when the queue cannot take more jobs.
var ErrQueueFull = errors.New("build queue is full")

// Job is one queued configuration build.
type Job struct {
	ID          string        `json:"id"`
	Trigger     Trigger       `json:"trigger"`
	Reason      string        `json:"reason,omitempty"`
	Status      JobStatus     `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Outcome     string        `json:"outcome,omitempty"`
	Error       string        `json:"error,omitempty"`

	cancel context.CancelFunc
}

// Runner executes one build job. The daemon provides an implementation that
// drives the sphinx generator and records history.
type Runner interface {
	Run(ctx context.Context, job *Job) (*sphinx.BuildReport, error)
}

// Queue serializes build jobs through a fixed worker pool. With one worker
// (the default) builds never race on the shared Doxyfile.
type Queue struct {
	jobs       chan *Job
	workers    int
	runner     Runner
	recorder   metrics.Recorder
	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	active     map[string]*Job
	recent     []Job
	recentSize int
}

// NewQueue creates a queue with the given capacity and worker count.
func NewQueue(size, workers int, runner Runner, rec metrics.Recorder) *Queue {
	if size <= 0 {
		size = 16
	}
	if workers <= 0 {
		workers = 1
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Queue{
		jobs:       make(chan *Job, size),
		workers:    workers,
		runner:     runner,
		recorder:   rec,
		stopChan:   make(chan struct{}),
		active:     make(map[string]*Job),
		recentSize: 50,
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting build queue", slog.Int("workers", q.workers), slog.Int("capacity", cap(q.jobs)))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels active jobs and waits for workers to drain.
func (q *Queue) Stop() {
	slog.Info("Stopping build queue")
	close(q.stopChan)

	q.mu.Lock()
	for _, job := range q.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
	slog.Info("Build queue stopped")
}

// Enqueue creates and queues a job. Returns ErrQueueFull when saturated.
func (q *Queue) Enqueue(trigger Trigger, reason string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Reason:    reason,
		Status:    JobQueued,
		CreatedAt: time.Now(),
	}

	select {
	case q.jobs <- job:
		q.recorder.SetQueueDepth(len(q.jobs))
		slog.Info("Build job enqueued",
			logfields.JobID(job.ID),
			slog.String("trigger", string(trigger)),
			slog.String("reason", reason))
		return job, nil
	default:
		return nil, ErrQueueFull
	}
}

// Depth returns the number of queued jobs not yet picked up.
func (q *Queue) Depth() int { return len(q.jobs) }

// ActiveCount returns how many jobs are currently executing.
func (q *Queue) ActiveCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.active)
}

// Active returns copies of currently running jobs.
func (q *Queue) Active() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	jobs := make([]Job, 0, len(q.active))
	for _, j := range q.active {
		jobs = append(jobs, *j)
	}
	return jobs
}

// Recent returns copies of finished jobs, newest last.
func (q *Queue) Recent() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, len(q.recent))
	copy(out, q.recent)
	return out
}

func (q *Queue) worker(ctx context.Context, id string) {
	defer q.wg.Done()
	slog.Debug("Build worker started", slog.String("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			if job != nil {
				q.process(ctx, job, id)
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	started := time.Now()
	job.StartedAt = &started
	job.Status = JobRunning

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()
	q.recorder.SetQueueDepth(len(q.jobs))

	slog.Info("Build job started",
		logfields.JobID(job.ID),
		slog.String("trigger", string(job.Trigger)),
		slog.String("worker", workerID))

	report, err := q.runner.Run(jobCtx, job)

	ended := time.Now()
	job.CompletedAt = &ended
	job.Duration = ended.Sub(started)

	switch {
	case err != nil && jobCtx.Err() != nil:
		job.Status = JobCanceled
		job.Outcome = string(sphinx.OutcomeCanceled)
		job.Error = err.Error()
	case err != nil:
		job.Status = JobFailed
		job.Outcome = string(sphinx.OutcomeFailed)
		job.Error = err.Error()
	default:
		job.Status = JobCompleted
		if report != nil {
			job.Outcome = report.Outcome
		}
	}

	q.mu.Lock()
	delete(q.active, job.ID)
	q.addRecent(*job)
	q.mu.Unlock()

	if err != nil {
		slog.Error("Build job finished with error",
			logfields.JobID(job.ID),
			slog.Duration("duration", job.Duration),
			logfields.Error(err))
		return
	}
	slog.Info("Build job finished",
		logfields.JobID(job.ID),
		slog.Duration("duration", job.Duration),
		slog.String("outcome", job.Outcome))
}

// addRecent appends a finished job, trimming to recentSize. Callers hold mu.
func (q *Queue) addRecent(job Job) {
	job.cancel = nil
	q.recent = append(q.recent, job)
	if len(q.recent) > q.recentSize {
		copy(q.recent, q.recent[len(q.recent)-q.recentSize:])
		q.recent = q.recent[:q.recentSize]
	}
}
