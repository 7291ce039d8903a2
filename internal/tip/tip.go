// Package tip implements the chain-tip/contention controller: the
// state machine that decides, on every peer advertisement, whether the
// local node is caught up, should start fetching a single block, or
// has entered contention among multiple heavier advertised tips. All
// state here is in-memory and resets on restart — the durable record
// of the chain lives in internal/ledger and the validator's committed
// trailers, not here.
package tip

import (
	"sync"
	"time"

	"github.com/haikuchain/haikunode/internal/limb"
	"github.com/haikuchain/haikunode/internal/peerstore"
)

// State is one of the three controller states.
type State int

const (
	Idle State = iota
	Fetching
	Contended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Contended:
		return "contended"
	default:
		return "unknown"
	}
}

// LullWindow is the default wall-clock window a CONTENDED controller
// waits, gathering advertisements, before it resolves contention. A
// heaviest tip advertised by only one peer is not acted on; the
// controller starts another window instead.
const LullWindow = 30 * time.Second

// LocalTip is the controller's view of the chain it currently holds.
type LocalTip struct {
	BlockNumber uint64
	BlockHash   [32]byte
	Weight      limb.Value256
}

// NeogenesisBuilder regenerates a neogenesis block locally and reports
// its hash, so the controller can confirm a peer's neogenesis
// announcement without ever receiving the block body over the wire.
// Neogenesis content is not specified by the validator alone (see
// Open Questions); callers supply the regeneration procedure.
type NeogenesisBuilder interface {
	RegenerateHash(blockNumber uint64) ([32]byte, error)
}

// Controller runs the IDLE/FETCHING/CONTENDED state machine described
// in the resource model. It is not itself a network client: it only
// decides what the node should do next given adverts fed to it by the
// p2p layer, and callers act on the returned Action.
type Controller struct {
	mu     sync.Mutex
	state  State
	local  LocalTip
	peers  *peerstore.Store
	genBld NeogenesisBuilder

	contendedSince    time.Time
	fetchFromPeer     string
}

// New creates a Controller starting IDLE at local.
func New(local LocalTip, peers *peerstore.Store, genBld NeogenesisBuilder) *Controller {
	return &Controller{state: Idle, local: local, peers: peers, genBld: genBld}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Local returns the controller's current local-tip view.
func (c *Controller) Local() LocalTip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// Action tells the caller what to do after an event was fed to the
// controller.
type Action int

const (
	// ActionNone: no state change, nothing to do.
	ActionNone Action = iota
	// ActionFetch: start fetching the single advertised block from FetchPeer.
	ActionFetch
	// ActionCatchUp: abandon the local tip and begin catching up from FetchPeer,
	// which just won a contention round.
	ActionCatchUp
	// ActionCommit: the fetched block validated; caller should commit it.
	ActionCommit
	// ActionDropInvalid: the fetched block failed validation but was not hostile.
	ActionDropInvalid
	// ActionPunish: the fetched block was hostile; caller should pinklist the advertiser.
	ActionPunish
)

// FetchPeer returns the peer ID the controller most recently decided
// to fetch from, valid after ActionFetch or ActionCatchUp.
func (c *Controller) FetchPeer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchFromPeer
}

// OnAdvert feeds a peer's advertised tip into the state machine and
// returns what the caller should do next.
func (c *Controller) OnAdvert(a peerstore.Advert) Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.peers != nil {
		c.peers.RecordAdvert(a)
	}

	switch c.state {
	case Idle:
		return c.onAdvertIdle(a)
	case Contended:
		return c.onAdvertContended(a)
	case Fetching:
		// Already committed to fetching one block; track the advert in
		// case the fetch fails and contention needs to be re-evaluated,
		// but don't switch state mid-fetch.
		if c.peers != nil {
			c.peers.TrackCurrent(a)
		}
		return ActionNone
	default:
		return ActionNone
	}
}

func (c *Controller) onAdvertIdle(a peerstore.Advert) Action {
	switch {
	case a.BlockNumber < c.local.BlockNumber+1:
		// Behind us; nothing to do beyond having recorded the advert.
		return ActionNone
	case a.BlockNumber == c.local.BlockNumber+1 && a.PrevHash == c.local.BlockHash:
		c.state = Fetching
		c.fetchFromPeer = a.PeerID
		if c.peers != nil {
			c.peers.TrackCurrent(a)
		}
		return ActionFetch
	default:
		// Either bnum == local+1 with a different prev-hash (a fork at
		// our height) or bnum > local+1 (we are behind by more than one
		// block): both require contention resolution before acting.
		c.state = Contended
		c.contendedSince = a.SeenAt
		if c.contendedSince.IsZero() {
			c.contendedSince = time.Now()
		}
		if c.peers != nil {
			c.peers.TrackCurrent(a)
		}
		return ActionNone
	}
}

func (c *Controller) onAdvertContended(a peerstore.Advert) Action {
	if c.peers != nil {
		c.peers.TrackCurrent(a)
	}

	if c.contendedSince.IsZero() {
		c.contendedSince = time.Now()
	}
	if time.Since(c.contendedSince) < LullWindow {
		return ActionNone
	}
	return c.resolveContention()
}

// ResolveNow forces contention resolution without waiting out the
// remainder of the LULL window, for callers that track wall-clock time
// externally (e.g. a ticking caller that calls this once the window
// has elapsed).
func (c *Controller) ResolveNow() Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Contended {
		return ActionNone
	}
	return c.resolveContention()
}

// resolveContention picks the highest-weight advertiser among the
// peers currently tracked and, if more than one peer agrees on it,
// abandons the local tip to catch up from that peer. Must be called
// with c.mu held.
func (c *Controller) resolveContention() Action {
	if c.peers == nil {
		return ActionNone
	}
	adverts := c.peers.CurrentAdverts()
	if len(adverts) == 0 {
		c.state = Idle
		return ActionNone
	}

	best := adverts[0]
	bestWeight := limb.Value256FromBytes(best.Weight)
	agreement := 1
	for _, a := range adverts[1:] {
		w := limb.Value256FromBytes(a.Weight)
		cmp := w.Cmp(bestWeight)
		switch {
		case cmp > 0:
			best, bestWeight, agreement = a, w, 1
		case cmp == 0 && a.BlockHash == best.BlockHash:
			agreement++
		}
	}

	if agreement < 2 {
		// Only one peer has advertised the heaviest tip within the
		// window; keep waiting rather than acting on a single source.
		c.contendedSince = time.Now()
		return ActionNone
	}

	c.state = Fetching
	c.fetchFromPeer = best.PeerID
	return ActionCatchUp
}

// OnValidationResult reports the outcome of validating a block fetched
// while FETCHING, driving the controller back to IDLE (or back into
// contention resolution on failure, per the caller's next advert).
func (c *Controller) OnValidationResult(newLocal LocalTip, err error, classification Classification) Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Fetching {
		return ActionNone
	}
	if c.peers != nil {
		c.peers.DropCurrent(c.fetchFromPeer)
	}

	switch {
	case err == nil:
		c.local = newLocal
		c.state = Idle
		return ActionCommit
	case classification == Hostile:
		c.state = Idle
		return ActionPunish
	default:
		c.state = Idle
		return ActionDropInvalid
	}
}

// Classification mirrors internal/verrors' three-way error kind,
// restated here so this package does not need to import verrors just
// for a switch on error kind that OnValidationResult's caller already
// knows.
type Classification int

const (
	Fault Classification = iota
	Invalid
	Hostile
)
