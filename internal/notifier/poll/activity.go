package poll

import (
	"sync"
	"sync/atomic"
	"time"
)

// Signal is a kind of user interaction that counts as activity.
type Signal string

const (
	SignalClick      Signal = "click"
	SignalKeyDown    Signal = "keydown"
	SignalScroll     Signal = "scroll"
	SignalTouchStart Signal = "touchstart"
)

// Tracker records the last user interaction. Record is safe to call from
// input handlers; it never blocks on the scheduler.
type Tracker struct {
	threshold time.Duration
	now       func() time.Time
	last      atomic.Int64 // unix nanos

	mu     sync.Mutex
	onWake []func()
}

// NewTracker creates a tracker that considers the user active right now.
func NewTracker(threshold time.Duration) *Tracker {
	t := &Tracker{threshold: threshold, now: time.Now}
	t.last.Store(t.now().UnixNano())
	return t
}

// OnWake registers fn to run when activity follows an idle period.
func (t *Tracker) OnWake(fn func()) {
	t.mu.Lock()
	t.onWake = append(t.onWake, fn)
	t.mu.Unlock()
}

// Record notes an interaction.
func (t *Tracker) Record(Signal) {
	now := t.now()
	wasIdle := t.Idle(now)
	t.last.Store(now.UnixNano())
	if !wasIdle {
		return
	}

	t.mu.Lock()
	fns := make([]func(), len(t.onWake))
	copy(fns, t.onWake)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Last is the time of the most recent interaction.
func (t *Tracker) Last() time.Time {
	return time.Unix(0, t.last.Load())
}

// Idle reports whether no interaction happened within the threshold.
func (t *Tracker) Idle(now time.Time) bool {
	return now.Sub(t.Last()) > t.threshold
}

// IdleAt is when the user will become idle absent further activity.
func (t *Tracker) IdleAt() time.Time {
	return t.Last().Add(t.threshold)
}
