// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller opens sessions with the expected
// StreamConfig and to hand out a scripted sequence of sessions. Use Session to
// feed controlled Transcript values, inject errors, and end the session.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Sessions: []*mock.Session{sess}}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.EmitFinal("I wonder if octopuses dream")
//	sess.End()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/gaia/pkg/provider/stt"
	"github.com/MrWong99/gaia/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	Ctx context.Context
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Sessions are returned by successive StartStream calls in order. Once
	// exhausted, StartStream creates a fresh Session per call.
	Sessions []*Session

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	// Started records every session handed out, including generated ones.
	Started []*Session

	started chan struct{}
}

// StartStream records the call and returns the next scripted session.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	var s *Session
	if len(p.Sessions) > 0 {
		s = p.Sessions[0]
		p.Sessions = p.Sessions[1:]
	} else {
		s = NewSession()
	}
	p.Started = append(p.Started, s)
	if p.started != nil {
		select {
		case p.started <- struct{}{}:
		default:
		}
	}
	return s, nil
}

// StartCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) StartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Latest returns the most recently started session, or nil.
func (p *Provider) Latest() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Started) == 0 {
		return nil
	}
	return p.Started[len(p.Started)-1]
}

// StartedCh returns a channel that receives a value after each successful
// StartStream. Must be called before the code under test starts streams.
func (p *Provider) StartedCh() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started == nil {
		p.started = make(chan struct{}, 16)
	}
	return p.started
}

// SetStartErr replaces StartStreamErr. Thread-safe.
func (p *Provider) SetStartErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamErr = err
}

var _ stt.Provider = (*Provider)(nil)

// Session is a mock implementation of stt.SessionHandle and stt.ErrorReporter.
type Session struct {
	mu       sync.Mutex
	partials chan types.Transcript
	finals   chan types.Transcript
	errs     chan error
	ended    bool

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// Audio records every chunk passed to SendAudio.
	Audio [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession returns a Session with buffered channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan types.Transcript, 16),
		finals:   make(chan types.Transcript, 16),
		errs:     make(chan error, 1),
	}
}

// EmitFinal pushes a final result. No-op after End.
func (s *Session) EmitFinal(text string) {
	s.emit(types.Transcript{Text: text, IsFinal: true})
}

// EmitPartial pushes an interim result. No-op after End.
func (s *Session) EmitPartial(text string) {
	s.emit(types.Transcript{Text: text})
}

func (s *Session) emit(t types.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if t.IsFinal {
		s.finals <- t
	} else {
		s.partials <- t
	}
}

// Fail reports err and then ends the session.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if !s.ended {
		s.errs <- err
	}
	s.mu.Unlock()
	s.End()
}

// End closes the output channels, signalling end of session.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	close(s.partials)
	close(s.finals)
	close(s.errs)
}

// Ended reports whether End (or Close) has run.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.Audio = append(s.Audio, cp)
	return s.SendAudioErr
}

func (s *Session) Partials() <-chan types.Transcript { return s.partials }

func (s *Session) Finals() <-chan types.Transcript { return s.finals }

func (s *Session) Errors() <-chan error { return s.errs }

// Close records the call and ends the session.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	s.mu.Unlock()
	s.End()
	return nil
}

// Closes returns CloseCallCount. Thread-safe.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

var (
	_ stt.SessionHandle = (*Session)(nil)
	_ stt.ErrorReporter = (*Session)(nil)
)
