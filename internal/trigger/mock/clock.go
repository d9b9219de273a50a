// Package mock provides a manually advanced clock for driving a
// trigger.Debouncer deterministically in tests.
//
// Example:
//
//	clk := mock.NewClock()
//	d := trigger.New(2*time.Second, fire, trigger.WithAfterFunc(clk.AfterFunc))
//	d.Poke()
//	clk.Advance(2 * time.Second) // fire runs synchronously here
package mock

import (
	"sort"
	"sync"
	"time"

	"github.com/MrWong99/gaia/internal/trigger"
)

// Clock is a fake monotonic clock. Timers fire synchronously inside Advance,
// in deadline order.
type Clock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*timer
	seq    int
}

type timer struct {
	clk      *Clock
	deadline time.Duration
	seq      int
	f        func()
	stopped  bool
	fired    bool
}

// NewClock returns a Clock at offset zero.
func NewClock() *Clock { return &Clock{} }

// AfterFunc implements trigger.AfterFunc.
func (c *Clock) AfterFunc(d time.Duration, f func()) trigger.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &timer{clk: c, deadline: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Now returns the elapsed fake time.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, firing every timer whose deadline is
// reached. Callbacks run without the clock lock held and may schedule new
// timers; those fire too if they fall inside the window.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.deadline
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

// nextDue returns the earliest live timer due by target. Must hold c.mu.
func (c *Clock) nextDue(target time.Duration) *timer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.Slice(c.timers, func(i, j int) bool {
		if c.timers[i].deadline == c.timers[j].deadline {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline < c.timers[j].deadline
	})
	if len(c.timers) == 0 || c.timers[0].deadline > target {
		return nil
	}
	return c.timers[0]
}

// PendingTimers returns how many timers are armed.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Stop implements trigger.Timer.
func (t *timer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
