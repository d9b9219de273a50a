// Package relay provides an stt.Provider for recognition that happens on the
// client. A browser running its own continuous speech engine forwards each
// result over the session WebSocket; the web layer hands it to Deliver and the
// result comes out of the current session's Partials or Finals channel exactly
// as if a server-side recognizer had produced it.
//
// The client's engine lifecycle maps onto the session lifecycle: End mirrors
// the engine stopping on its own (silence, network hiccup) and Fail mirrors an
// engine error such as the user revoking microphone access.
//
// A Provider serves one client and holds at most one live session.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/gaia/pkg/provider/stt"
	"github.com/MrWong99/gaia/pkg/types"
)

// ErrNoSession is returned by Deliver when no session is open.
var ErrNoSession = errors.New("relay: no active recognition session")

// Provider implements stt.Provider for client-side recognition.
type Provider struct {
	mu  sync.Mutex
	cur *session
}

// New returns an idle relay Provider.
func New() *Provider { return &Provider{} }

// StartStream opens a new session and makes it the delivery target. A session
// that is still open is closed first. The session ends when ctx is cancelled.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &session{
		interim:  cfg.Interim,
		partials: make(chan types.Transcript, 64),
		finals:   make(chan types.Transcript, 64),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	s.mu.Lock()
	s.stopCtx = stop
	s.mu.Unlock()

	p.mu.Lock()
	prev := p.cur
	p.cur = s
	p.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return s, nil
}

// Deliver routes a client-recognized result into the current session.
func (p *Provider) Deliver(t types.Transcript) error {
	s := p.current()
	if s == nil {
		return ErrNoSession
	}
	return s.deliver(t)
}

// End closes the current session as if the recognizer had stopped by itself.
// It is a no-op when no session is open.
func (p *Provider) End() {
	if s := p.current(); s != nil {
		_ = s.Close()
	}
}

// Fail reports err on the current session and then ends it.
func (p *Provider) Fail(err error) {
	if s := p.current(); s != nil {
		s.fail(err)
	}
}

// Active reports whether a session is open.
func (p *Provider) Active() bool {
	s := p.current()
	return s != nil && !s.isClosed()
}

func (p *Provider) current() *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// session implements stt.SessionHandle and stt.ErrorReporter.
type session struct {
	interim  bool
	partials chan types.Transcript
	finals   chan types.Transcript
	errs     chan error
	done     chan struct{}

	// mu guards closed and stopCtx and serialises sends against channel close.
	mu      sync.Mutex
	closed  bool
	stopCtx func() bool
	once    sync.Once
}

func (s *session) deliver(t types.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrSessionClosed
	}
	ch := s.finals
	if !t.IsFinal {
		if !s.interim {
			return nil
		}
		ch = s.partials
	}
	select {
	case ch <- t:
		return nil
	case <-s.done:
		return stt.ErrSessionClosed
	}
}

func (s *session) fail(err error) {
	s.mu.Lock()
	if !s.closed {
		select {
		case s.errs <- err:
		default:
		}
	}
	s.mu.Unlock()
	_ = s.Close()
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SendAudio always fails: audio never leaves the client.
func (s *session) SendAudio([]byte) error { return stt.ErrAudioNotAccepted }

func (s *session) Partials() <-chan types.Transcript { return s.partials }

func (s *session) Finals() <-chan types.Transcript { return s.finals }

func (s *session) Errors() <-chan error { return s.errs }

// Close ends the session. Safe to call more than once.
func (s *session) Close() error {
	s.once.Do(func() {
		// done unblocks any deliver waiting on a full buffer so mu can be taken.
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.partials)
		close(s.finals)
		close(s.errs)
		stop := s.stopCtx
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
	})
	return nil
}

var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*session)(nil)
	_ stt.ErrorReporter = (*session)(nil)
)
