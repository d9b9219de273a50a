package app

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/MrWong99/gaia/internal/web"
)

// SessionManager tracks live WebSocket sessions so they can be listed and
// ended together on shutdown. It implements [web.SessionTracker].
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]trackedSession
	closed   bool

	wg sync.WaitGroup
}

type trackedSession struct {
	info   web.SessionInfo
	cancel context.CancelFunc
}

// NewSessionManager returns an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]trackedSession)}
}

// Track registers a session. Sessions tracked after CloseAll are cancelled
// immediately.
func (sm *SessionManager) Track(info web.SessionInfo, cancel context.CancelFunc) func() {
	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		cancel()
		return func() {}
	}
	sm.sessions[info.ID] = trackedSession{info: info, cancel: cancel}
	sm.wg.Add(1)
	sm.mu.Unlock()

	slog.Debug("session tracked", "session", info.ID, "remote", info.RemoteAddr)

	var once sync.Once
	return func() {
		once.Do(func() {
			sm.mu.Lock()
			delete(sm.sessions, info.ID)
			sm.mu.Unlock()
			sm.wg.Done()
		})
	}
}

// List returns the live sessions ordered by start time.
func (sm *SessionManager) List() []web.SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]web.SessionInfo, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s.info)
	}
	slices.SortFunc(out, func(a, b web.SessionInfo) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// CloseAll cancels every live session and refuses new ones.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sm.closed = true
	cancels := make([]context.CancelFunc, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		cancels = append(cancels, s.cancel)
	}
	sm.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every tracked session has been untracked or ctx ends.
func (sm *SessionManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
