package trigger_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/gaia/internal/trigger"
	"github.com/MrWong99/gaia/internal/trigger/mock"
)

type recorder struct {
	mu    sync.Mutex
	clk   *mock.Clock
	fires []time.Duration
}

func (r *recorder) fire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fires = append(r.fires, r.clk.Now())
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fires)
}

func newDebouncer(t *testing.T) (*trigger.Debouncer, *mock.Clock, *recorder) {
	t.Helper()
	clk := mock.NewClock()
	rec := &recorder{clk: clk}
	d := trigger.New(2*time.Second, rec.fire, trigger.WithAfterFunc(clk.AfterFunc))
	return d, clk, rec
}

func TestDebouncer_BurstCoalescesToOneFire(t *testing.T) {
	t.Parallel()
	d, clk, rec := newDebouncer(t)

	// Pokes at t=0, 500ms, 600ms.
	d.Poke()
	clk.Advance(500 * time.Millisecond)
	d.Poke()
	clk.Advance(100 * time.Millisecond)
	d.Poke()

	clk.Advance(1999 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("fired early at %v", rec.fires)
	}

	clk.Advance(time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("fires = %d, want 1", rec.count())
	}
	if rec.fires[0] != 2600*time.Millisecond {
		t.Errorf("fired at %v, want 2.6s", rec.fires[0])
	}

	clk.Advance(10 * time.Second)
	if rec.count() != 1 {
		t.Errorf("extra fires after quiet period: %v", rec.fires)
	}
}

func TestDebouncer_SeparatedPokesFireSeparately(t *testing.T) {
	t.Parallel()
	d, clk, rec := newDebouncer(t)

	d.Poke()
	clk.Advance(2 * time.Second)
	d.Poke()
	clk.Advance(2 * time.Second)

	if rec.count() != 2 {
		t.Fatalf("fires = %d, want 2", rec.count())
	}
	if rec.fires[0] != 2*time.Second || rec.fires[1] != 4*time.Second {
		t.Errorf("fire times = %v", rec.fires)
	}
}

func TestDebouncer_OnlyOneTimerArmed(t *testing.T) {
	t.Parallel()
	d, clk, _ := newDebouncer(t)
	for range 5 {
		d.Poke()
	}
	if n := clk.PendingTimers(); n != 1 {
		t.Errorf("pending timers = %d, want 1", n)
	}
	if !d.Pending() {
		t.Error("Pending() = false with an armed timer")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	t.Parallel()
	d, clk, rec := newDebouncer(t)
	d.Poke()
	d.Cancel()
	clk.Advance(5 * time.Second)
	if rec.count() != 0 {
		t.Fatal("cancelled poke fired")
	}

	d.Poke()
	clk.Advance(2 * time.Second)
	if rec.count() != 1 {
		t.Error("poke after Cancel did not fire")
	}
}

func TestDebouncer_Stop(t *testing.T) {
	t.Parallel()
	d, clk, rec := newDebouncer(t)
	d.Poke()
	d.Stop()
	d.Poke()
	clk.Advance(5 * time.Second)
	if rec.count() != 0 {
		t.Fatal("stopped debouncer fired")
	}
	if d.Pending() {
		t.Error("Pending() = true after Stop")
	}
}

func TestDebouncer_PokeDuringFireArmsNextCycle(t *testing.T) {
	t.Parallel()
	clk := mock.NewClock()
	var d *trigger.Debouncer
	var fires atomic.Int32
	d = trigger.New(time.Second, func() {
		if fires.Add(1) == 1 {
			d.Poke()
		}
	}, trigger.WithAfterFunc(clk.AfterFunc))

	d.Poke()
	clk.Advance(time.Second)
	clk.Advance(time.Second)
	if got := fires.Load(); got != 2 {
		t.Errorf("fires = %d, want 2", got)
	}
}

func TestDebouncer_DefaultDelay(t *testing.T) {
	t.Parallel()
	d := trigger.New(0, func() {})
	if d.Delay() != trigger.DefaultDelay {
		t.Errorf("Delay = %v, want %v", d.Delay(), trigger.DefaultDelay)
	}
}

func TestDebouncer_RealTimer(t *testing.T) {
	t.Parallel()
	done := make(chan struct{})
	d := trigger.New(20*time.Millisecond, func() { close(done) })
	d.Poke()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer never fired")
	}
}
