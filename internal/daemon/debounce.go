package daemon

import (
	"context"
	"log/slog"
	"time"
)

// Debouncer coalesces bursts of change notifications into a single build
// trigger. Two timers bound the behavior:
//
//   - quiet window: the trigger fires once notifications stop arriving for
//     this long, so an editor save storm or a git checkout yields one build
//   - max delay: a steady drip of changes cannot postpone the build forever
//
// Run owns all state; Notify is safe from any goroutine.
type Debouncer struct {
	quiet    time.Duration
	maxDelay time.Duration
	fire     func(count int, reason string)
	notifyCh chan string
}

// NewDebouncer creates a debouncer that calls fire with the coalesced
// notification count and the most recent reason.
func NewDebouncer(quiet, maxDelay time.Duration, fire func(count int, reason string)) *Debouncer {
	if quiet <= 0 {
		quiet = 2 * time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 10 * quiet
	}
	return &Debouncer{
		quiet:    quiet,
		maxDelay: maxDelay,
		fire:     fire,
		notifyCh: make(chan string, 64),
	}
}

// Notify records a change. Never blocks; under extreme bursts excess
// notifications are dropped, which only affects the reported count.
func (d *Debouncer) Notify(reason string) {
	select {
	case d.notifyCh <- reason:
	default:
	}
}

// Run processes notifications until ctx is done.
func (d *Debouncer) Run(ctx context.Context) {
	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()

	var (
		quietC     <-chan time.Time
		maxC       <-chan time.Time
		count      int
		lastReason string
	)

	emit := func(cause string) {
		slog.Debug("Debounce window closed",
			slog.String("cause", cause),
			slog.Int("notifications", count))
		d.fire(count, lastReason)
		count = 0
		lastReason = ""
		quietC = nil
		maxC = nil
	}

	for {
		select {
		case <-ctx.Done():
			quietTimer.Stop()
			maxTimer.Stop()
			return

		case reason := <-d.notifyCh:
			count++
			lastReason = reason
			resetTimer(quietTimer, d.quiet)
			quietC = quietTimer.C
			if count == 1 {
				resetTimer(maxTimer, d.maxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			emit("quiet")

		case <-maxC:
			emit("max_delay")
		}
	}
}

// newStoppedTimer returns a timer that will not fire until reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	return t
}

// resetTimer safely rearms a timer that may have fired or been stopped.
func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
