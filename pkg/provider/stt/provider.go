// Package stt defines the Provider interface for continuous speech recognition.
//
// A recognizer session emits two streams of Transcript values: interim results
// for live feedback and final results for the transcript log. Where the audio
// is recognized is up to the implementation. The deepgram package streams PCM
// to a hosted service; the relay package accepts results that a browser has
// already recognized with its own speech engine.
//
// A session ends when its Finals channel is closed. Sessions that can fail in
// a way the caller must react to (permission revoked, authentication lost)
// additionally implement ErrorReporter.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/gaia/pkg/types"
)

var (
	// ErrPermissionRevoked is reported when the host withdraws microphone
	// access while a session is running.
	ErrPermissionRevoked = errors.New("stt: microphone permission revoked")

	// ErrSessionClosed is returned by operations on a session after Close.
	ErrSessionClosed = errors.New("stt: session is closed")

	// ErrAudioNotAccepted is returned by SendAudio on sessions that recognize
	// speech elsewhere and never take raw audio.
	ErrAudioNotAccepted = errors.New("stt: session does not accept audio")
)

// StreamConfig describes the audio format and recognition options for a new
// session.
type StreamConfig struct {
	// SampleRate is the PCM sample rate in Hz (16000 for most services).
	SampleRate int

	// Channels is the number of audio channels; 1 = mono.
	Channels int

	// Language is the BCP-47 tag for recognition (e.g. "en-US"). Empty lets
	// the provider decide.
	Language string

	// Interim requests interim (non-final) results on Partials.
	Interim bool
}

// SessionHandle is an open recognition session.
//
// Callers must call Close when the session is no longer needed. Calling Close
// more than once is safe. All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw 16-bit little-endian PCM audio.
	SendAudio(chunk []byte) error

	// Partials emits interim results. Closed when the session ends.
	Partials() <-chan types.Transcript

	// Finals emits committed results. Closed when the session ends; a closed
	// Finals channel is the end-of-session signal.
	Finals() <-chan types.Transcript

	// Close terminates the session and releases its resources.
	Close() error
}

// ErrorReporter is implemented by sessions that surface asynchronous
// recognition failures. Any error is delivered before Finals is closed.
type ErrorReporter interface {
	Errors() <-chan error
}

// Provider opens recognition sessions.
type Provider interface {
	// StartStream opens a new session. The session lives until Close is called
	// or ctx is cancelled.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
