package poll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesUpToMax(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBackoff(4, time.Minute)

	want := []int{2, 4, 4, 4}
	for i, w := range want {
		b.Fail(now.Add(time.Duration(i) * time.Second))
		assert.Equal(t, w, b.Multiplier(), "after %d failures", i+1)
	}
	assert.Equal(t, BackingOff, b.Phase())
}

func TestBackoff_MultiplierIsMinPowMax(t *testing.T) {
	for maxMult := 1; maxMult <= 16; maxMult *= 2 {
		b := NewBackoff(maxMult, time.Minute)
		for n := 0; n <= 6; n++ {
			expected := min(1<<n, maxMult)
			assert.Equal(t, expected, b.Multiplier(), "max=%d n=%d", maxMult, n)
			b.Fail(time.Now())
		}
	}
}

func TestBackoff_ResetOnlyAfterCooldown(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	b := NewBackoff(4, 60*time.Second)

	b.Fail(start)
	b.Fail(start.Add(30 * time.Second))
	b.Fail(start.Add(90 * time.Second)) // already at max, no increase recorded
	assert.Equal(t, 4, b.Multiplier())
	assert.Equal(t, start.Add(30*time.Second), b.LastIncrease())

	assert.False(t, b.Succeed(start.Add(60*time.Second)), "29s after last increase")
	assert.Equal(t, 4, b.Multiplier())

	assert.True(t, b.Succeed(start.Add(90*time.Second)))
	assert.Equal(t, 1, b.Multiplier())
	assert.Equal(t, Steady, b.Phase())
}

func TestBackoff_SucceedWhenSteadyIsNoop(t *testing.T) {
	b := NewBackoff(4, time.Minute)
	assert.False(t, b.Succeed(time.Now()))
	assert.Equal(t, 1, b.Multiplier())
}

func TestBackoff_ZeroValueIsSteady(t *testing.T) {
	var b Backoff
	assert.Equal(t, 1, b.Multiplier())
	assert.Equal(t, "steady", b.Phase().String())
}
