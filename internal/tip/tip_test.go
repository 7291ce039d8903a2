package tip

import (
	"testing"
	"time"

	"github.com/haikuchain/haikunode/internal/limb"
	"github.com/haikuchain/haikunode/internal/peerstore"
)

func weightBytes(pow int) [32]byte {
	var w limb.Value256
	w.AddPowerOfTwo(pow)
	return w.Bytes()
}

func TestIdleIgnoresBehindAdvert(t *testing.T) {
	local := LocalTip{BlockNumber: 10, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)

	act := c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 5})
	if act != ActionNone || c.State() != Idle {
		t.Fatalf("behind advert should be ignored, got action=%v state=%v", act, c.State())
	}
}

func TestIdleToFetchingOnDirectSuccessor(t *testing.T) {
	local := LocalTip{BlockNumber: 10, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)

	act := c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 11, PrevHash: [32]byte{1}})
	if act != ActionFetch || c.State() != Fetching {
		t.Fatalf("direct successor should trigger fetch, got action=%v state=%v", act, c.State())
	}
	if c.FetchPeer() != "p1" {
		t.Fatalf("FetchPeer() = %q, want p1", c.FetchPeer())
	}
}

func TestIdleToContendedOnForkAtSameHeight(t *testing.T) {
	local := LocalTip{BlockNumber: 10, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)

	act := c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 11, PrevHash: [32]byte{9}})
	if act != ActionNone || c.State() != Contended {
		t.Fatalf("forked successor should enter contention, got action=%v state=%v", act, c.State())
	}
}

func TestIdleToContendedWhenFarBehind(t *testing.T) {
	local := LocalTip{BlockNumber: 10, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)

	act := c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 13})
	if act != ActionNone || c.State() != Contended {
		t.Fatalf("advert more than one block ahead should enter contention, got action=%v state=%v", act, c.State())
	}
}

// scenario 7: contention resolution.
func TestContentionResolvesToHeaviestAgreedTip(t *testing.T) {
	local := LocalTip{BlockNumber: 2, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)

	hi := weightBytes(10)
	lo := weightBytes(5)
	hash := [32]byte{0xEE}

	c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 3, PrevHash: [32]byte{9}, Weight: lo})
	if c.State() != Contended {
		t.Fatal("first forked advert should enter contention")
	}

	// Force-expire the LULL window so resolution can happen deterministically in a test.
	act := c.ResolveNow()
	if act != ActionNone {
		t.Fatalf("single advertiser should not resolve contention, got %v", act)
	}

	c.OnAdvert(peerstore.Advert{PeerID: "p2", BlockNumber: 3, BlockHash: hash, Weight: hi})
	c.OnAdvert(peerstore.Advert{PeerID: "p3", BlockNumber: 3, BlockHash: hash, Weight: hi})

	act = c.ResolveNow()
	if act != ActionCatchUp || c.State() != Fetching {
		t.Fatalf("two peers agreeing on the heaviest tip should trigger catch-up, got action=%v state=%v", act, c.State())
	}
	if peer := c.FetchPeer(); peer != "p2" && peer != "p3" {
		t.Fatalf("FetchPeer() = %q, want one of the heaviest advertisers", peer)
	}
}

func TestValidationResultCommitsAndReturnsToIdle(t *testing.T) {
	local := LocalTip{BlockNumber: 10, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)
	c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 11, PrevHash: [32]byte{1}})

	newLocal := LocalTip{BlockNumber: 11, BlockHash: [32]byte{2}}
	act := c.OnValidationResult(newLocal, nil, Fault)
	if act != ActionCommit || c.State() != Idle {
		t.Fatalf("successful validation should commit and return to idle, got action=%v state=%v", act, c.State())
	}
	if c.Local() != newLocal {
		t.Fatalf("Local() = %+v, want %+v", c.Local(), newLocal)
	}
}

func TestValidationResultHostilePunishesAndReturnsToIdle(t *testing.T) {
	local := LocalTip{BlockNumber: 10, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)
	c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 11, PrevHash: [32]byte{1}})

	act := c.OnValidationResult(LocalTip{}, errBoom, Hostile)
	if act != ActionPunish || c.State() != Idle {
		t.Fatalf("hostile block should be punished, got action=%v state=%v", act, c.State())
	}
}

func TestValidationResultInvalidDropsSilently(t *testing.T) {
	local := LocalTip{BlockNumber: 10, BlockHash: [32]byte{1}}
	c := New(local, peerstore.New(), nil)
	c.OnAdvert(peerstore.Advert{PeerID: "p1", BlockNumber: 11, PrevHash: [32]byte{1}})

	act := c.OnValidationResult(LocalTip{}, errBoom, Invalid)
	if act != ActionDropInvalid || c.State() != Idle {
		t.Fatalf("invalid block should drop silently, got action=%v state=%v", act, c.State())
	}
}

var errBoom = simpleError("boom")

type simpleError string

func (e simpleError) Error() string { return string(e) }

func TestLullWindowConstant(t *testing.T) {
	if LullWindow != 30*time.Second {
		t.Fatalf("LullWindow = %v, want 30s", LullWindow)
	}
}
