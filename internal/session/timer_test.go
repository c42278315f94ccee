package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_Remaining(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now(), 600, clock.Now)

	t.Run("starts at full budget", func(t *testing.T) {
		assert.Equal(t, 600, timer.RemainingSeconds())
		assert.Equal(t, 0, timer.ElapsedSeconds())
	})

	t.Run("derived from wall clock", func(t *testing.T) {
		clock.Advance(120 * time.Second)
		assert.Equal(t, 120, timer.ElapsedSeconds())
		assert.Equal(t, 480, timer.RemainingSeconds())
	})

	t.Run("floors partial seconds", func(t *testing.T) {
		clock.Advance(900 * time.Millisecond)
		assert.Equal(t, 120, timer.ElapsedSeconds())
	})

	t.Run("clamped at zero", func(t *testing.T) {
		clock.Advance(time.Hour)
		assert.Equal(t, 0, timer.RemainingSeconds())
		assert.True(t, timer.OutOfTime())
	})
}

func TestTimer_MonotoneUnderClockSkew(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	timer := NewTimer(start, 300, clock.Now)

	clock.Advance(100 * time.Second)
	assert.Equal(t, 200, timer.RemainingSeconds())

	clock.Set(start.Add(40 * time.Second))
	assert.Equal(t, 200, timer.RemainingSeconds(), "remaining must not grow when the clock moves back")
	assert.Equal(t, 100, timer.ElapsedSeconds())
}

func TestTimer_StartInFuture(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now().Add(time.Minute), 60, clock.Now)

	assert.Equal(t, 0, timer.ElapsedSeconds())
	assert.Equal(t, 60, timer.RemainingSeconds())
}

func TestTimer_TickFiresOnce(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now(), 60, clock.Now)

	clock.Advance(59 * time.Second)
	assert.False(t, timer.Tick())
	assert.False(t, timer.Expired())

	clock.Advance(time.Second)
	assert.True(t, timer.Tick())
	assert.True(t, timer.Expired())

	clock.Advance(10 * time.Second)
	assert.False(t, timer.Tick(), "expiry must be reported only once")
}

func TestTimer_Warning(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now(), 600, clock.Now)

	clock.Advance(300 * time.Second)
	assert.False(t, timer.Warning(), "exactly 300s remaining is not yet a warning")

	clock.Advance(time.Second)
	assert.True(t, timer.Warning())

	timer.SetWarningThreshold(time.Minute)
	assert.False(t, timer.Warning())
}

func TestTimer_Untimed(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now(), 0, clock.Now)

	clock.Advance(24 * time.Hour)
	assert.False(t, timer.HasLimit())
	assert.Equal(t, 0, timer.RemainingSeconds())
	assert.False(t, timer.Warning())
	assert.False(t, timer.Tick())
	assert.False(t, timer.OutOfTime())
	assert.Equal(t, 86400, timer.ElapsedSeconds())
}

func TestTimer_NegativeLimitIsUntimed(t *testing.T) {
	timer := NewTimer(time.Now(), -10, nil)
	assert.False(t, timer.HasLimit())
}
