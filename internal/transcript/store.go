// Package transcript holds the append-only log of finalized utterances for
// one assistant session.
//
// Entries are kept in insertion order, which is also chronological order. The
// store optionally caps how many entries it retains; once the cap is reached
// the oldest entries are dropped. Analysis only ever reads the most recent
// few entries, so the cap bounds memory without changing what gets analyzed.
package transcript

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/gaia/pkg/types"
)

var (
	// ErrEmptyText is returned when appending an entry with blank text.
	ErrEmptyText = errors.New("transcript: entry text must not be empty")

	// ErrDuplicateID is returned when appending an entry whose ID is already
	// present in the store.
	ErrDuplicateID = errors.New("transcript: duplicate entry id")
)

// Store is an append-only, optionally bounded transcript log.
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	entries    []types.TranscriptEntry
	ids        map[string]struct{}
	maxEntries int
	total      int
}

// NewStore returns an empty Store that retains at most maxEntries entries.
// maxEntries <= 0 disables the cap.
func NewStore(maxEntries int) *Store {
	return &Store{
		ids:        make(map[string]struct{}),
		maxEntries: maxEntries,
	}
}

// NewEntry builds an entry with a fresh ID for text spoken by speaker at t.
func NewEntry(text, speaker string, t time.Time) types.TranscriptEntry {
	return types.TranscriptEntry{
		ID:        "transcript-" + uuid.NewString(),
		Text:      text,
		Timestamp: t.UnixMilli(),
		Speaker:   speaker,
	}
}

// Append adds e to the end of the log. It returns the number of old entries
// evicted to respect the cap.
func (s *Store) Append(e types.TranscriptEntry) (int, error) {
	if strings.TrimSpace(e.Text) == "" {
		return 0, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ids[e.ID]; dup {
		return 0, ErrDuplicateID
	}
	s.entries = append(s.entries, e)
	s.ids[e.ID] = struct{}{}
	s.total++
	return s.evict(), nil
}

// evict drops the oldest entries beyond maxEntries. Must be called with s.mu held.
func (s *Store) evict() int {
	if s.maxEntries <= 0 || len(s.entries) <= s.maxEntries {
		return 0
	}
	n := len(s.entries) - s.maxEntries
	for _, old := range s.entries[:n] {
		delete(s.ids, old.ID)
	}
	// Fresh backing array so evicted entries can be collected.
	fresh := make([]types.TranscriptEntry, s.maxEntries, s.maxEntries+1)
	copy(fresh, s.entries[n:])
	s.entries = fresh
	return n
}

// Recent returns up to n of the newest entries, oldest first.
func (s *Store) Recent(n int) []types.TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]types.TranscriptEntry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// All returns a copy of every retained entry in order.
func (s *Store) All() []types.TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TranscriptEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Total returns the number of entries ever appended, evicted ones included.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Join concatenates the text of entries in order, separated by single spaces.
func Join(entries []types.TranscriptEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Text
	}
	return strings.Join(parts, " ")
}
