package sessionkit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// autosaveScheduler owns the autosave timers of one session: a trailing
// debounce that resets on every change, and a max-wait ceiling that bounds
// deferral under continuous typing. The scheduler only decides WHEN to flush;
// dirty tracking and the flush itself live in Session.
type autosaveScheduler struct {
	clk      clock.Clock
	interval time.Duration
	maxWait  time.Duration
	fire     func(trigger string)

	mu       sync.Mutex
	debounce *clock.Timer
	ceiling  *clock.Timer
	stopped  bool
}

func newAutosaveScheduler(clk clock.Clock, interval, maxWait time.Duration, fire func(trigger string)) *autosaveScheduler {
	return &autosaveScheduler{
		clk:      clk,
		interval: interval,
		maxWait:  maxWait,
		fire:     fire,
	}
}

// NoteChange (re)arms the trailing debounce. The max-wait ceiling is armed on
// the first change of a dirty period and deliberately NOT reset by later
// changes; it fires when the session has been dirty for maxWait regardless of
// how often the debounce was pushed out.
func (a *autosaveScheduler) NoteChange() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	if a.debounce != nil {
		a.debounce.Stop()
	}
	a.debounce = a.clk.AfterFunc(a.interval, func() { a.onFire(TriggerDebounce) })

	if a.ceiling == nil {
		a.ceiling = a.clk.AfterFunc(a.maxWait, func() { a.onFire(TriggerMaxWait) })
	}
}

// ArmRetry schedules a flush one interval out without touching the ceiling,
// used after a failed flush so the dirty session retries on the next tick.
func (a *autosaveScheduler) ArmRetry() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped || a.debounce != nil {
		return
	}
	a.debounce = a.clk.AfterFunc(a.interval, func() { a.onFire(TriggerDebounce) })
}

// Clear cancels both timers once the session reaches a clean state.
func (a *autosaveScheduler) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearLocked()
}

// Stop permanently disables the scheduler.
func (a *autosaveScheduler) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.clearLocked()
}

func (a *autosaveScheduler) clearLocked() {
	if a.debounce != nil {
		a.debounce.Stop()
		a.debounce = nil
	}
	if a.ceiling != nil {
		a.ceiling.Stop()
		a.ceiling = nil
	}
}

func (a *autosaveScheduler) onFire(trigger string) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	// The timer that fired is spent; drop the reference so Clear does not
	// stop a dead timer.
	switch trigger {
	case TriggerDebounce:
		a.debounce = nil
	case TriggerMaxWait:
		a.ceiling = nil
	}
	a.mu.Unlock()

	a.fire(trigger)
}
