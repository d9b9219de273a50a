// Package mock provides a test double for capture.Microphone.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/gaia/internal/capture"
)

// Microphone is a mock implementation of capture.Microphone.
type Microphone struct {
	mu sync.Mutex

	// RequestErr, if non-nil, is returned by Request.
	RequestErr error

	// RequestCount is the number of Request calls.
	RequestCount int

	// ReleaseCount is the number of Release calls.
	ReleaseCount int
}

// Request records the call and returns RequestErr.
func (m *Microphone) Request(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount++
	return m.RequestErr
}

// Release records the call.
func (m *Microphone) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCount++
}

// Counts returns RequestCount and ReleaseCount. Thread-safe.
func (m *Microphone) Counts() (requests, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount, m.ReleaseCount
}

var _ capture.Microphone = (*Microphone)(nil)
