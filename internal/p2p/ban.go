package p2p

import (
	"sync"

	"github.com/haikuchain/haikunode/internal/banstore"
	klog "github.com/haikuchain/haikunode/internal/log"
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Penalty values for different offenses.
const (
	PenaltyInvalidBlock  = 50  // bad block: consensus failure or hostile wire data
	PenaltyInvalidTx     = 20  // gossiped transaction failed policy/mempool checks
	PenaltyHandshakeFail = 100 // instant ban: genesis mismatch or bad handshake signature
)

const (
	banThreshold = 100 // in-memory score at which a peer crosses into BanManager.bans
	banEpochSpan = 1   // number of epochs a ban persists for in internal/banstore
)

// BanManager tracks peer offense scores in memory and persists bans
// that cross banThreshold into internal/banstore, so they survive a
// restart. Score accumulation itself is not persisted: a restarted
// node starts every peer's in-memory score at zero, but an already
//-persisted ban still applies.
type BanManager struct {
	mu     sync.RWMutex
	scores map[peer.ID]int
	store  *banstore.Store // nil disables persistence (tests)
	node   *Node           // nil if disconnect-on-ban is not needed
	epoch  uint64
}

// NewBanManager creates a BanManager. store may be nil to disable
// persistence; node may be nil if disconnect-on-ban is not needed.
func NewBanManager(store *banstore.Store, node *Node) *BanManager {
	return &BanManager{scores: make(map[peer.ID]int), store: store, node: node}
}

// LoadBans is a no-op placeholder kept for symmetry with the rest of
// the Start sequence: internal/banstore checks persisted state lazily
// on every IsBanned call rather than loading into an in-memory cache,
// since badger lookups are already O(1).
func (bm *BanManager) LoadBans() {}

// RecordOffense adds a penalty score to a peer. If the cumulative
// score reaches banThreshold, the peer is pinklisted and disconnected.
func (bm *BanManager) RecordOffense(id peer.ID, penalty int, reason string) {
	bm.mu.Lock()
	bm.scores[id] += penalty
	score := bm.scores[id]
	bm.mu.Unlock()

	if score < banThreshold {
		return
	}

	bm.mu.Lock()
	delete(bm.scores, id)
	epoch := bm.epoch
	bm.mu.Unlock()

	logger := klog.WithComponent("banmgr")
	logger.Warn().Str("peer", shortID(id)).Str("reason", reason).Int("score", score).Msg("peer pinklisted")

	if bm.store != nil {
		if err := bm.store.Pin(id.String(), epoch+banEpochSpan, reason); err != nil {
			logger.Error().Err(err).Str("peer", shortID(id)).Msg("failed to persist pinklist entry")
		}
	}
	if bm.node != nil {
		go bm.node.DisconnectPeer(id)
	}
}

// IsBanned reports whether the peer is currently pinklisted.
func (bm *BanManager) IsBanned(id peer.ID) bool {
	if bm.store == nil {
		return false
	}
	bm.mu.RLock()
	epoch := bm.epoch
	bm.mu.RUnlock()
	return bm.store.IsPinned(id.String(), epoch)
}

// AdvanceEpoch moves the manager's epoch forward, e.g. once per
// neogenesis block, so persisted pins recorded for past epochs expire.
func (bm *BanManager) AdvanceEpoch(epoch uint64) {
	bm.mu.Lock()
	bm.epoch = epoch
	bm.mu.Unlock()
}

// banGater implements the libp2p ConnectionGater interface to reject
// connections from pinklisted peers at the transport level.
type banGater struct {
	banMgr *BanManager
}

func (g *banGater) InterceptPeerDial(p peer.ID) bool {
	return !g.banMgr.IsBanned(p)
}

func (g *banGater) InterceptAddrDial(_ peer.ID, _ ma.Multiaddr) bool {
	return true
}

func (g *banGater) InterceptAccept(_ network.ConnMultiaddrs) bool {
	return true
}

func (g *banGater) InterceptSecured(_ network.Direction, p peer.ID, _ network.ConnMultiaddrs) bool {
	return !g.banMgr.IsBanned(p)
}

func (g *banGater) InterceptUpgraded(_ network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}
