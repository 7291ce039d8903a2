// Package peerstore holds the bounded peer lists the tip controller
// consults: a ring of recently-seen advertisers and a ring of peers
// currently being caught up from. Both rings sit behind one mutex;
// access is serialised, not lock-free. Overflow overwrites the
// oldest entry rather than growing unbounded, matching the resource
// model's "bounded-ring overflow-overwrites-oldest" rule. The
// persistent pink list lives separately in internal/banstore, since
// that one must survive a restart; these rings do not need to.
package peerstore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Advert is what a peer announced about its chain tip.
type Advert struct {
	PeerID      string
	BlockNumber uint64
	BlockHash   [32]byte
	PrevHash    [32]byte
	Weight      [32]byte // little-endian 256-bit cumulative weight
	SeenAt      time.Time
}

const defaultRingSize = 256

// Store is a pair of bounded peer rings guarded by a single mutex: a
// "recent" ring of every advertiser seen regardless of outcome, and a
// "current" ring of peers the controller is actively fetching from or
// considering for contention resolution.
type Store struct {
	mu      sync.Mutex
	recent  *lru.Cache[string, Advert]
	current *lru.Cache[string, Advert]
}

// New creates a Store with the default ring capacity.
func New() *Store {
	return NewSized(defaultRingSize)
}

// NewSized creates a Store whose rings hold at most size entries each.
func NewSized(size int) *Store {
	recent, err := lru.New[string, Advert](size)
	if err != nil {
		panic(err) // only fails for size <= 0, a programmer error
	}
	current, err := lru.New[string, Advert](size)
	if err != nil {
		panic(err)
	}
	return &Store{recent: recent, current: current}
}

// RecordAdvert adds a to the recent ring, evicting the oldest entry if
// the ring is full.
func (s *Store) RecordAdvert(a Advert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent.Add(a.PeerID, a)
}

// TrackCurrent adds a to the current ring, used while the tip
// controller is fetching from or comparing weight against that peer.
func (s *Store) TrackCurrent(a Advert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Add(a.PeerID, a)
}

// DropCurrent removes peerID from the current ring, e.g. once its
// candidate block has been validated or its advertisement expired out
// of the LULL window.
func (s *Store) DropCurrent(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Remove(peerID)
}

// CurrentAdverts returns a snapshot of every peer currently tracked,
// for contention resolution to scan over.
func (s *Store) CurrentAdverts() []Advert {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.current.Keys()
	out := make([]Advert, 0, len(keys))
	for _, k := range keys {
		if a, ok := s.current.Peek(k); ok {
			out = append(out, a)
		}
	}
	return out
}

// RecentAdvert returns the last advertisement recorded for peerID, if
// any.
func (s *Store) RecentAdvert(peerID string) (Advert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent.Peek(peerID)
}
