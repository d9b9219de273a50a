package capture

import (
	"context"
	"sync/atomic"
)

// Microphone gates access to the audio input device.
type Microphone interface {
	// Request asks for access. A non-nil error means access was refused.
	Request(ctx context.Context) error

	// Release gives the device back. Called once per successful Request.
	Release()
}

// MicrophoneFunc adapts a function to Microphone. Release is a no-op.
type MicrophoneFunc func(ctx context.Context) error

func (f MicrophoneFunc) Request(ctx context.Context) error { return f(ctx) }

func (f MicrophoneFunc) Release() {}

// AlwaysGranted is a Microphone that never refuses.
var AlwaysGranted Microphone = MicrophoneFunc(func(context.Context) error { return nil })

// Permission is a Microphone whose answer was obtained elsewhere, for example
// by a browser prompt relayed over the wire. The zero value refuses.
type Permission struct {
	granted atomic.Bool
}

// NewPermission returns a Permission with the given initial answer.
func NewPermission(granted bool) *Permission {
	p := &Permission{}
	p.granted.Store(granted)
	return p
}

// Set records the latest answer.
func (p *Permission) Set(granted bool) { p.granted.Store(granted) }

// Granted reports the latest answer.
func (p *Permission) Granted() bool { return p.granted.Load() }

// Request implements Microphone.
func (p *Permission) Request(context.Context) error {
	if !p.granted.Load() {
		return ErrPermissionDenied
	}
	return nil
}

// Release implements Microphone.
func (p *Permission) Release() {}
