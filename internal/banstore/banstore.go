// Package banstore persists the pink list: peers caught emitting a
// hostile block are recorded here for the remainder of the current
// epoch. Storage is badger-backed, the same non-consensus side-store
// engine the node uses for peer records — the pink list is advisory
// bookkeeping, never part of ledger state, so it is not subject to the
// atomic-rename commit discipline internal/ledger uses.
package banstore

import (
	"encoding/json"
	"fmt"

	"github.com/haikuchain/haikunode/internal/storage"
)

const pinKeyPrefix = "pink/"

// Record is a single pink-list entry.
type Record struct {
	PeerID string `json:"peer_id"`
	Epoch  uint64 `json:"epoch"`
	Reason string `json:"reason"`
}

// Store persists pink-list records in a storage.DB.
type Store struct {
	db storage.DB
}

// New creates a Store backed by db.
func New(db storage.DB) *Store {
	return &Store{db: db}
}

func pinKey(peerID string) []byte {
	return []byte(pinKeyPrefix + peerID)
}

// Pin records that peerID is pinklisted for the given epoch because of
// reason. A peer already pinned for a later epoch keeps its later
// expiry; this only ever extends, never shortens, a ban.
func (s *Store) Pin(peerID string, epoch uint64, reason string) error {
	existing, err := s.Get(peerID)
	if err == nil && existing.Epoch > epoch {
		epoch = existing.Epoch
	}
	rec := Record{PeerID: peerID, Epoch: epoch, Reason: reason}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("banstore: marshal record: %w", err)
	}
	return s.db.Put(pinKey(peerID), data)
}

// Get retrieves a pink-list record by peer ID.
func (s *Store) Get(peerID string) (*Record, error) {
	data, err := s.db.Get(pinKey(peerID))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("banstore: unmarshal record: %w", err)
	}
	return &rec, nil
}

// IsPinned reports whether peerID has a pin whose recorded epoch is
// currentEpoch or later. A pin recorded for a past epoch has expired
// and no longer blocks the peer.
func (s *Store) IsPinned(peerID string, currentEpoch uint64) bool {
	rec, err := s.Get(peerID)
	if err != nil {
		return false
	}
	return rec.Epoch >= currentEpoch
}

// PruneExpired removes every record whose epoch is strictly before
// currentEpoch. Returns the number of records removed.
func (s *Store) PruneExpired(currentEpoch uint64) (int, error) {
	var toDelete [][]byte
	err := s.db.ForEach([]byte(pinKeyPrefix), func(key, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			keyCopy := append([]byte(nil), key...)
			toDelete = append(toDelete, keyCopy)
			return nil
		}
		if rec.Epoch < currentEpoch {
			keyCopy := append([]byte(nil), key...)
			toDelete = append(toDelete, keyCopy)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("banstore: iterate for prune: %w", err)
	}
	for _, k := range toDelete {
		if err := s.db.Delete(k); err != nil {
			return 0, fmt.Errorf("banstore: delete expired: %w", err)
		}
	}
	return len(toDelete), nil
}
