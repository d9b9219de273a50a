// Package trigger provides a coalescing debounce trigger.
//
// Each Poke (re)starts a quiet-period timer. A newer Poke cancels and replaces
// the pending one, so a burst of pokes produces exactly one call, fired one
// delay after the last poke. There is no queue: pokes that arrive while the
// callback runs simply arm the next cycle.
package trigger

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet period used when none is configured.
const DefaultDelay = 2 * time.Second

// Timer is the subset of *time.Timer the Debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. time.AfterFunc satisfies it via
// RealAfterFunc; tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc adapts time.AfterFunc to AfterFunc.
func RealAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer coalesces pokes into delayed calls of a single callback.
// All methods are safe for concurrent use.
type Debouncer struct {
	delay time.Duration
	after AfterFunc
	fire  func()

	mu      sync.Mutex
	pending Timer
	gen     uint64
	stopped bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithAfterFunc replaces the timer factory.
func WithAfterFunc(af AfterFunc) Option {
	return func(d *Debouncer) { d.after = af }
}

// New returns a Debouncer that calls fire once per quiet period of delay.
// A non-positive delay selects DefaultDelay.
func New(delay time.Duration, fire func(), opts ...Option) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	d := &Debouncer{delay: delay, after: RealAfterFunc, fire: fire}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Delay returns the configured quiet period.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Poke cancels any pending call and schedules a new one after the delay.
// It is a no-op after Stop.
func (d *Debouncer) Poke() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.after(d.delay, func() { d.expire(gen) })
}

// expire runs the callback if gen is still the latest scheduled cycle. A timer
// that fired concurrently with a newer Poke finds a stale gen and does nothing.
func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()

	d.fire()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Cancel drops the pending call, if any. Later pokes still schedule calls.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop drops the pending call and disables the Debouncer permanently.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) cancelLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
}
