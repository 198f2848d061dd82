package session

import (
	"sync"
	"time"
)

// Timer is a single-shot per-question countdown. A controller owns exactly
// one Timer; calling Start while a countdown is running supersedes it, and
// Cancel is an idempotent no-op once the countdown has stopped.
//
// onTick fires once per elapsed interval with the remaining seconds;
// onExpire fires exactly once when the countdown reaches zero. Neither
// fires after Cancel returns the timer to the stopped state.
type Timer struct {
	mu        sync.Mutex
	interval  time.Duration
	stop      chan struct{}
	remaining int
}

// NewTimer returns a stopped timer ticking at one-second resolution.
func NewTimer() *Timer {
	return &Timer{interval: time.Second}
}

// newTimerWithInterval compresses the tick interval for deterministic tests.
func newTimerWithInterval(interval time.Duration) *Timer {
	return &Timer{interval: interval}
}

// Start begins a countdown of durationSec ticks. Any countdown already
// running is cancelled first so at most one is ever active.
func (t *Timer) Start(durationSec int, onTick func(remaining int), onExpire func()) {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
	}
	stop := make(chan struct{})
	t.stop = stop
	t.remaining = durationSec
	t.mu.Unlock()

	go t.run(durationSec, stop, onTick, onExpire)
}

func (t *Timer) run(durationSec int, stop chan struct{}, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	remaining := durationSec
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining--

			t.mu.Lock()
			if t.stop != stop {
				// Superseded or cancelled between ticks.
				t.mu.Unlock()
				return
			}
			t.remaining = remaining
			if remaining <= 0 {
				t.stop = nil
			}
			t.mu.Unlock()

			if remaining > 0 {
				if onTick != nil {
					onTick(remaining)
				}
				continue
			}
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}

// Cancel stops the countdown. Cancelling a stopped timer is a no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Remaining returns the seconds left on the current countdown, or the last
// observed value once stopped.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Active reports whether a countdown is currently running.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}
