// Package capture turns a continuous speech recognizer into a stream of
// finalized utterances.
//
// A [Capture] owns the microphone grant and one recognition session at a
// time. It is a two-state machine:
//
//	Idle ──Start ok──▶ Listening ──Stop──▶ Idle
//	Listening ──session ended while wanted──▶ Listening (restart)
//	Listening ──permission revoked / restart failed──▶ Idle + error
//
// Recognition services routinely end sessions on their own (silence, network
// hiccups, browser quirks). While the caller still wants to listen, Capture
// reopens the session according to its [RestartPolicy].
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/pkg/provider/stt"
	"github.com/MrWong99/gaia/pkg/types"
)

var (
	// ErrPermissionDenied reports that microphone access was refused or
	// revoked.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")

	// ErrUnsupportedPlatform reports that no speech recognizer is available.
	ErrUnsupportedPlatform = errors.New("capture: speech recognition not supported")

	// ErrNotListening is returned by SendAudio while Idle.
	ErrNotListening = errors.New("capture: not listening")
)

// State is the capture lifecycle state.
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RestartPolicy controls how Capture reacts to a session that ends while it
// is still wanted.
type RestartPolicy struct {
	// Enabled turns automatic restarts on.
	Enabled bool

	// MaxAttempts caps consecutive restarts that produce no final result.
	// Zero means unlimited.
	MaxAttempts int

	// Backoff is the pause before each restart.
	Backoff time.Duration
}

// DefaultRestartPolicy restarts forever with a short pause.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{Enabled: true, Backoff: 250 * time.Millisecond}
}

// Config wires a Capture to its recognizer and callbacks. Callbacks run on the
// capture goroutine and must not call Start or Stop.
type Config struct {
	// Provider opens recognition sessions. Nil means the platform has no
	// recognizer and Start returns ErrUnsupportedPlatform.
	Provider stt.Provider

	// Microphone gates access to the audio device. Nil is treated as always
	// granted.
	Microphone Microphone

	// Stream is passed to every StartStream call. Interim is forced on.
	Stream stt.StreamConfig

	Restart RestartPolicy

	// OnUtterance receives every non-blank final result with its capture
	// time.
	OnUtterance func(text string, at time.Time)

	// OnInterim receives interim results. Optional.
	OnInterim func(text string)

	// OnStateChange is called after every state transition. Optional.
	OnStateChange func(State)

	// OnError receives errors that forced a transition to Idle. Optional.
	OnError func(error)

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Capture manages one recognizer session at a time. All methods are safe for
// concurrent use.
type Capture struct {
	cfg Config

	// op serialises Start and Stop.
	op sync.Mutex

	mu     sync.Mutex
	state  State
	sess   stt.SessionHandle
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle Capture.
func New(cfg Config) *Capture {
	if cfg.Microphone == nil {
		cfg.Microphone = AlwaysGranted
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	cfg.Stream.Interim = true
	return &Capture{cfg: cfg}
}

// State returns the current state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start requests the microphone and opens a recognition session. It is a
// no-op while Listening. On any error the state stays Idle.
//
// The session outlives ctx's cancellation; only Stop (or a terminal error)
// ends it. Values such as trace spans are inherited from ctx.
func (c *Capture) Start(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() == Listening {
		return nil
	}
	if c.cfg.Provider == nil {
		return ErrUnsupportedPlatform
	}
	if err := c.cfg.Microphone.Request(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess, err := c.cfg.Provider.StartStream(runCtx, c.cfg.Stream)
	if err != nil {
		cancel()
		c.cfg.Microphone.Release()
		if errors.Is(err, stt.ErrPermissionRevoked) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("capture: start stream: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.state = Listening
	c.sess = sess
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(runCtx, sess, done)
	c.notify(Listening)
	return nil
}

// Stop ends the session and releases the microphone. It waits for the capture
// goroutine to exit. No-op while Idle.
func (c *Capture) Stop() {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.toIdleLocked()
	c.mu.Unlock()

	cancel()
	<-done
	c.cfg.Microphone.Release()
	c.notify(Idle)
}

// SendAudio forwards a PCM chunk to the current session.
func (c *Capture) SendAudio(chunk []byte) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNotListening
	}
	return sess.SendAudio(chunk)
}

func (c *Capture) toIdleLocked() {
	c.state = Idle
	c.sess = nil
	c.cancel = nil
	c.done = nil
}

// run consumes sessions until Stop or a terminal error.
func (c *Capture) run(ctx context.Context, sess stt.SessionHandle, done chan struct{}) {
	defer close(done)

	failures := 0
	for {
		heard, err := c.consume(ctx, sess)
		_ = sess.Close()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.fail(done, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
			return
		}

		policy := c.cfg.Restart
		if !policy.Enabled {
			slog.Info("capture: recognition ended, restart disabled")
			c.fail(done, nil)
			return
		}
		if heard {
			failures = 0
		}
		failures++
		if policy.MaxAttempts > 0 && failures > policy.MaxAttempts {
			c.fail(done, fmt.Errorf("capture: recognizer ended %d times without a result", failures-1))
			return
		}

		if policy.Backoff > 0 {
			t := time.NewTimer(policy.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}

		next, err := c.cfg.Provider.StartStream(ctx, c.cfg.Stream)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, stt.ErrPermissionRevoked) {
				err = fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			} else {
				err = fmt.Errorf("capture: restart stream: %w", err)
			}
			c.fail(done, err)
			return
		}
		c.cfg.Metrics.CaptureRestarts.Add(ctx, 1)
		slog.Debug("capture: recognition restarted", "attempt", failures)

		c.mu.Lock()
		if c.done != done {
			// Stopped while the new session was opening.
			c.mu.Unlock()
			_ = next.Close()
			return
		}
		c.sess = next
		c.mu.Unlock()
		sess = next
	}
}

// consume pumps one session. It returns when the session ends or ctx is
// cancelled. heard reports whether any final result arrived; err is non-nil
// only for permission revocation.
func (c *Capture) consume(ctx context.Context, sess stt.SessionHandle) (heard bool, err error) {
	var errs <-chan error
	if r, ok := sess.(stt.ErrorReporter); ok {
		errs = r.Errors()
	}
	partials := sess.Partials()
	finals := sess.Finals()

	handle := func(e error) error {
		if errors.Is(e, stt.ErrPermissionRevoked) {
			return e
		}
		slog.Warn("capture: recognition error", "err", e)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return heard, nil

		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if c.cfg.OnInterim != nil {
				c.cfg.OnInterim(t.Text)
			}

		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if e != nil {
				if perr := handle(e); perr != nil {
					return heard, perr
				}
			}

		case t, ok := <-finals:
			if !ok {
				// Errors are delivered before Finals closes but the select may
				// have picked this case first.
				if errs != nil {
					select {
					case e, ok := <-errs:
						if ok && e != nil {
							if perr := handle(e); perr != nil {
								return heard, perr
							}
						}
					default:
					}
				}
				return heard, nil
			}
			heard = true
			c.deliver(t)
		}
	}
}

func (c *Capture) deliver(t types.Transcript) {
	text := strings.TrimSpace(t.Text)
	if text == "" || c.cfg.OnUtterance == nil {
		return
	}
	c.cfg.OnUtterance(text, time.Now())
}

// fail moves to Idle from the capture goroutine unless Stop got there first.
func (c *Capture) fail(done chan struct{}, err error) {
	c.mu.Lock()
	if c.done != done {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.toIdleLocked()
	c.mu.Unlock()

	cancel()
	c.cfg.Microphone.Release()
	c.notify(Idle)
	if err != nil {
		slog.Warn("capture: stopped", "err", err)
		if c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
	}
}

func (c *Capture) notify(s State) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}
