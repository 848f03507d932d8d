package poll

import "time"

// Phase describes whether polling runs at its base cadence.
type Phase int

const (
	Steady Phase = iota
	BackingOff
)

func (p Phase) String() string {
	if p == BackingOff {
		return "backing-off"
	}
	return "steady"
}

// Backoff is the exponential backoff state of the poller. The multiplier
// doubles on every failure up to Max and drops back to 1 only when a success
// lands at least ResetAfter after the last increase.
type Backoff struct {
	Max        int
	ResetAfter time.Duration

	multiplier   int
	lastIncrease time.Time
}

// NewBackoff returns a steady backoff.
func NewBackoff(maxMultiplier int, resetAfter time.Duration) Backoff {
	return Backoff{
		Max:        max(maxMultiplier, 1),
		ResetAfter: resetAfter,
		multiplier: 1,
	}
}

// Multiplier is the factor applied to the base interval.
func (b Backoff) Multiplier() int {
	if b.multiplier < 1 {
		return 1
	}
	return b.multiplier
}

// Phase reports Steady when the multiplier is 1.
func (b Backoff) Phase() Phase {
	if b.Multiplier() > 1 {
		return BackingOff
	}
	return Steady
}

// LastIncrease is when the multiplier last grew.
func (b Backoff) LastIncrease() time.Time {
	return b.lastIncrease
}

// Fail records a failed cycle. It reports whether the multiplier changed.
func (b *Backoff) Fail(now time.Time) bool {
	cur := b.Multiplier()
	if cur >= b.Max {
		return false
	}
	b.multiplier = min(cur*2, b.Max)
	b.lastIncrease = now
	return true
}

// Succeed records a successful cycle. It reports whether the multiplier was
// reset.
func (b *Backoff) Succeed(now time.Time) bool {
	if b.Multiplier() == 1 {
		return false
	}
	if now.Sub(b.lastIncrease) < b.ResetAfter {
		return false
	}
	b.multiplier = 1
	return true
}
