// Package opportunity holds the ordered collection of suggestion cards shown
// to the user during one assistant session.
//
// Cards arrive in batches from the analyzer and are kept in arrival order. They
// leave only when the user dismisses them or when the store is at capacity and
// the oldest cards are evicted to make room.
package opportunity

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/gaia/pkg/types"
)

// Store is a bounded, ordered set of opportunity cards keyed by ID.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	cards    []types.OpportunityCard
	index    map[string]struct{}
	maxCards int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp inserted cards.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty Store holding at most maxCards cards.
// maxCards <= 0 disables the cap.
func NewStore(maxCards int, opts ...Option) *Store {
	s := &Store{
		index:    make(map[string]struct{}),
		maxCards: maxCards,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Append adds cards to the end of the store in the order given.
//
// Every inserted card is stamped with the insertion time. A card whose ID is
// empty or already present gets a fresh ID so IDs stay unique. Append returns
// the cards as stored and any cards evicted to respect the cap.
func (s *Store) Append(cards ...types.OpportunityCard) (added, evicted []types.OpportunityCard) {
	if len(cards) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixMilli()
	added = make([]types.OpportunityCard, 0, len(cards))
	for _, c := range cards {
		if _, dup := s.index[c.ID]; dup || c.ID == "" {
			c.ID = "card-" + uuid.NewString()
		}
		c.Timestamp = ts
		s.cards = append(s.cards, c)
		s.index[c.ID] = struct{}{}
		added = append(added, c)
	}
	return added, s.evict()
}

// evict removes the oldest cards beyond maxCards. Must be called with s.mu held.
func (s *Store) evict() []types.OpportunityCard {
	if s.maxCards <= 0 || len(s.cards) <= s.maxCards {
		return nil
	}
	n := len(s.cards) - s.maxCards
	evicted := make([]types.OpportunityCard, n)
	copy(evicted, s.cards[:n])
	for _, c := range evicted {
		delete(s.index, c.ID)
	}
	fresh := make([]types.OpportunityCard, s.maxCards)
	copy(fresh, s.cards[n:])
	s.cards = fresh
	return evicted
}

// Dismiss removes the card with the given ID. It reports whether a card was
// removed; unknown IDs are ignored.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, c := range s.cards {
		if c.ID == id {
			s.cards = append(s.cards[:i], s.cards[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the card with the given ID.
func (s *Store) Get(id string) (types.OpportunityCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.index[id]; !ok {
		return types.OpportunityCard{}, false
	}
	for _, c := range s.cards {
		if c.ID == id {
			return c, true
		}
	}
	return types.OpportunityCard{}, false
}

// List returns a copy of all cards in arrival order.
func (s *Store) List() []types.OpportunityCard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.OpportunityCard, len(s.cards))
	copy(out, s.cards)
	return out
}

// Len returns the number of cards currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}
