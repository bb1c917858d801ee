package shipping

import (
	"sync"
	"time"
)

// Scheduler runs fn after delay. The returned cancel stops a pending run.
type Scheduler interface {
	Schedule(delay time.Duration, generation uint64, fn func(generation uint64)) (cancel func())
}

// TimerScheduler schedules on runtime timers.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(delay time.Duration, generation uint64, fn func(generation uint64)) func() {
	t := time.AfterFunc(delay, func() { fn(generation) })
	return func() { t.Stop() }
}

// Debouncer collapses bursts of triggers into one run after the quiet period.
// Each trigger cancels the pending timer and a run only fires if its
// generation is still the latest.
type Debouncer struct {
	mu     sync.Mutex
	sched  Scheduler
	delay  time.Duration
	gen    uint64
	cancel func()
}

func NewDebouncer(sched Scheduler, delay time.Duration) *Debouncer {
	if sched == nil {
		sched = TimerScheduler{}
	}
	return &Debouncer{sched: sched, delay: delay}
}

// Trigger supersedes any pending run with fn.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	d.cancel = d.sched.Schedule(d.delay, d.gen, func(gen uint64) {
		d.mu.Lock()
		current := gen == d.gen
		if current {
			d.cancel = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop cancels the pending run, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
}
