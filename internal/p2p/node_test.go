package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/haikuchain/haikunode/internal/peerstore"
	"github.com/haikuchain/haikunode/internal/tip"
	"github.com/haikuchain/haikunode/pkg/blockfile"
	"github.com/libp2p/go-libp2p/core/peer"
)

// recordingDomain is a Domain double that records what the transport
// reported, for assertions in tests that drive two real nodes.
type recordingDomain struct {
	adverts []peerstore.Advert
	tipNow  tip.LocalTip
}

func (d *recordingDomain) OnAdvert(a peerstore.Advert) tip.Action {
	d.adverts = append(d.adverts, a)
	return tip.ActionNone
}
func (d *recordingDomain) OnBlock([]byte) (tip.Action, error)            { return tip.ActionCommit, nil }
func (d *recordingDomain) SubmitTransaction(blockfile.Transaction) error { return nil }
func (d *recordingDomain) LocalTip() tip.LocalTip                        { return d.tipNow }
func (d *recordingDomain) LocalAdvert() peerstore.Advert {
	return peerstore.Advert{BlockNumber: d.tipNow.BlockNumber, BlockHash: d.tipNow.BlockHash}
}
func (d *recordingDomain) Difficulty() uint32           { return 0 }
func (d *recordingDomain) FetchPeer() string            { return "" }
func (d *recordingDomain) BlockAt(uint64) ([]byte, bool, error) { return nil, false, nil }

func startTestNode(t *testing.T, domain Domain) *Node {
	t.Helper()
	n, err := New(Config{ListenAddr: "127.0.0.1", Port: 0, NoDiscover: true}, domain, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("start node: %v", err)
	}
	t.Cleanup(func() { n.Stop() })
	return n
}

func connectNodes(t *testing.T, a, b *Node) {
	t.Helper()
	aInfo := peer.AddrInfo{ID: a.host.ID(), Addrs: a.host.Addrs()}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.host.Connect(ctx, aInfo); err != nil {
		t.Fatalf("connect nodes: %v", err)
	}
	a.addPeer(b.host.ID())
	b.addPeer(a.host.ID())
	time.Sleep(200 * time.Millisecond) // let GossipSub form its mesh
}

func TestNewGeneratesDistinctIdentitiesWithoutDataDir(t *testing.T) {
	n1, err := New(Config{ListenAddr: "127.0.0.1", Port: 0}, &recordingDomain{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n2, err := New(Config{ListenAddr: "127.0.0.1", Port: 0}, &recordingDomain{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if string(n1.identity.PublicKey()) == string(n2.identity.PublicKey()) {
		t.Fatal("two nodes created without a data dir should not share a handshake identity")
	}
}

func TestNewPersistsIdentityAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	n1, err := New(Config{ListenAddr: "127.0.0.1", Port: 0, DataDir: dir}, &recordingDomain{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n2, err := New(Config{ListenAddr: "127.0.0.1", Port: 0, DataDir: dir}, &recordingDomain{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if string(n1.identity.PublicKey()) != string(n2.identity.PublicKey()) {
		t.Fatal("a node restarted with the same data dir should reload the same handshake identity")
	}
}

func TestDisconnectPeerBeforeStart(t *testing.T) {
	n, err := New(Config{ListenAddr: "127.0.0.1", Port: 0}, &recordingDomain{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.DisconnectPeer(peer.ID("fake")); err == nil {
		t.Fatal("DisconnectPeer should fail before Start")
	}
}

func TestTwoNodesConnectAndDisconnect(t *testing.T) {
	nodeA := startTestNode(t, &recordingDomain{})
	nodeB := startTestNode(t, &recordingDomain{})
	connectNodes(t, nodeA, nodeB)

	if nodeA.PeerCount() < 1 {
		t.Fatal("nodeA should have at least 1 peer")
	}

	if err := nodeA.DisconnectPeer(nodeB.host.ID()); err != nil {
		t.Fatalf("DisconnectPeer: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if nodeA.PeerCount() != 0 {
		t.Errorf("nodeA should have 0 peers after disconnect, got %d", nodeA.PeerCount())
	}
}

func TestBroadcastFoundDeliversAdvert(t *testing.T) {
	domainA := &recordingDomain{tipNow: tip.LocalTip{BlockNumber: 12, BlockHash: [32]byte{0x01}}}
	domainB := &recordingDomain{}

	nodeA := startTestNode(t, domainA)
	nodeB := startTestNode(t, domainB)
	connectNodes(t, nodeA, nodeB)

	if err := nodeA.BroadcastFound(); err != nil {
		t.Fatalf("BroadcastFound: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(domainB.adverts) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if len(domainB.adverts) == 0 {
		t.Fatal("nodeB never observed nodeA's advert")
	}
	got := domainB.adverts[0]
	if got.BlockNumber != 12 || got.BlockHash != [32]byte{0x01} {
		t.Fatalf("advert = %+v, want BlockNumber=12 BlockHash={0x01}", got)
	}
}
