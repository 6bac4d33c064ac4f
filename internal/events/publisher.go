// Package events publishes build lifecycle events to NATS JetStream so other
// systems (site deploy hooks, chat notifiers) can react to configuration
// builds without polling report files.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/sphinx"
)

// Event type suffixes, appended to the configured base subject.
const (
	TypeStarted   = "started"
	TypeCompleted = "completed"
)

// BuildEvent is the published payload for one build lifecycle transition.
type BuildEvent struct {
	Type       string    `json:"type"`
	BuildID    string    `json:"build_id"`
	Project    string    `json:"project"`
	Trigger    string    `json:"trigger,omitempty"` // manual, watch, schedule
	Hosted     bool      `json:"hosted"`
	Outcome    string    `json:"outcome,omitempty"`
	Headers    int       `json:"headers,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	Warnings   int       `json:"warnings,omitempty"`
	Errors     int       `json:"errors,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewStartedEvent builds the event announcing a build has begun.
func NewStartedEvent(buildID, project, trigger string, hosted bool) BuildEvent {
	return BuildEvent{
		Type:    TypeStarted,
		BuildID: buildID,
		Project: project,
		Trigger: trigger,
		Hosted:  hosted,
	}
}

// NewCompletedEvent builds the event summarizing a finished build.
func NewCompletedEvent(buildID, trigger string, report *sphinx.BuildReport) BuildEvent {
	return BuildEvent{
		Type:       TypeCompleted,
		BuildID:    buildID,
		Project:    report.Project,
		Trigger:    trigger,
		Hosted:     report.Hosted,
		Outcome:    report.Outcome,
		Headers:    report.Headers,
		Pages:      report.Pages,
		Warnings:   len(report.Warnings),
		Errors:     len(report.Errors),
		DurationMS: report.End.Sub(report.Start).Milliseconds(),
	}
}

// Sink receives build events. The daemon holds a Sink so event publishing
// stays optional; NoopSink serves deployments without NATS.
type Sink interface {
	Publish(ctx context.Context, ev BuildEvent) error
	Close() error
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Publish(context.Context, BuildEvent) error { return nil }
func (NoopSink) Close() error                              { return nil }

// Publisher publishes build events to a JetStream stream.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	stream  string
}

// NewPublisher connects to NATS and ensures the configured stream exists.
func NewPublisher(cfg *config.EventsConfig) (*Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("event publishing is disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{
		conn:    conn,
		js:      js,
		subject: cfg.Subject,
		stream:  cfg.Stream,
	}
	if err := p.ensureStream(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	slog.Info("Event publisher connected",
		slog.String("url", cfg.NATSURL),
		slog.String("subject", cfg.Subject),
		slog.String("stream", cfg.Stream))
	return p, nil
}

// ensureStream creates the stream when it does not exist yet.
func (p *Publisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.js.Stream(ctx, p.stream); err == nil {
		return nil
	}

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        p.stream,
		Description: "doxysite build events",
		Subjects:    []string{p.subject + ".>"},
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", p.stream, err)
	}
	slog.Info("Created event stream", slog.String("stream", p.stream))
	return nil
}

// eventSubject maps an event to its full subject under the base.
func (p *Publisher) eventSubject(ev BuildEvent) string {
	return p.subject + "." + ev.Type
}

// Publish sends one event. A zero Timestamp is stamped at send time.
func (p *Publisher) Publish(ctx context.Context, ev BuildEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := p.js.Publish(pubCtx, p.eventSubject(ev), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.Debug("Published build event",
		slog.String("type", ev.Type),
		slog.String("build_id", ev.BuildID),
		slog.String("outcome", ev.Outcome))
	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
