package session

import "time"

// Clock returns the current wall-clock time.
type Clock func() time.Time

const DefaultWarningThreshold = 5 * time.Minute

// Timer derives elapsed time from the wall clock rather than counting ticks, so a
// suspended process cannot drift. A zero limit means the session is untimed.
type Timer struct {
	clock            Clock
	startedAt        time.Time
	limit            time.Duration
	warningThreshold time.Duration
	lastElapsed      time.Duration
	expired          bool
}

func NewTimer(startedAt time.Time, limitSeconds int, clock Clock) *Timer {
	if clock == nil {
		clock = time.Now
	}
	if limitSeconds < 0 {
		limitSeconds = 0
	}
	return &Timer{
		clock:            clock,
		startedAt:        startedAt,
		limit:            time.Duration(limitSeconds) * time.Second,
		warningThreshold: DefaultWarningThreshold,
	}
}

func (t *Timer) SetWarningThreshold(d time.Duration) {
	if d > 0 {
		t.warningThreshold = d
	}
}

func (t *Timer) StartedAt() time.Time {
	return t.startedAt
}

func (t *Timer) HasLimit() bool {
	return t.limit > 0
}

func (t *Timer) LimitSeconds() int {
	return int(t.limit / time.Second)
}

// Elapsed never decreases, even if the wall clock is stepped backwards.
func (t *Timer) Elapsed() time.Duration {
	elapsed := t.clock().Sub(t.startedAt)
	if elapsed < t.lastElapsed {
		elapsed = t.lastElapsed
	}
	if elapsed < 0 {
		elapsed = 0
	}
	t.lastElapsed = elapsed
	return elapsed
}

func (t *Timer) ElapsedSeconds() int {
	return int(t.Elapsed() / time.Second)
}

// RemainingSeconds is max(0, limit - elapsed) in whole seconds; untimed sessions report 0.
func (t *Timer) RemainingSeconds() int {
	if !t.HasLimit() {
		return 0
	}
	remaining := t.LimitSeconds() - t.ElapsedSeconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Warning is a presentation hint only; it never changes session state.
func (t *Timer) Warning() bool {
	if !t.HasLimit() {
		return false
	}
	return time.Duration(t.RemainingSeconds())*time.Second < t.warningThreshold
}

// Tick returns true exactly once: on the first call that observes no time remaining.
func (t *Timer) Tick() bool {
	if !t.HasLimit() || t.expired {
		return false
	}
	if t.RemainingSeconds() > 0 {
		return false
	}
	t.expired = true
	return true
}

// Expired reports whether a previous Tick observed the end of the time budget.
func (t *Timer) Expired() bool {
	return t.expired
}

// OutOfTime reports whether the budget is used up, whether or not a tick has seen it yet.
func (t *Timer) OutOfTime() bool {
	return t.HasLimit() && t.RemainingSeconds() == 0
}
