package p2p

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/haikuchain/haikunode/internal/peerstore"
	"github.com/haikuchain/haikunode/internal/tip"
	"github.com/haikuchain/haikunode/pkg/blockfile"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"
)

// fakeDomain is a minimal Domain double for transport-level tests: it
// never validates anything, it just records what the transport asked
// of it.
type fakeDomain struct {
	blocks map[uint64][]byte
}

func (f *fakeDomain) OnAdvert(peerstore.Advert) tip.Action           { return tip.ActionNone }
func (f *fakeDomain) OnBlock([]byte) (tip.Action, error)             { return tip.ActionCommit, nil }
func (f *fakeDomain) SubmitTransaction(blockfile.Transaction) error  { return nil }
func (f *fakeDomain) LocalTip() tip.LocalTip                         { return tip.LocalTip{} }
func (f *fakeDomain) LocalAdvert() peerstore.Advert                  { return peerstore.Advert{} }
func (f *fakeDomain) Difficulty() uint32                             { return 0 }
func (f *fakeDomain) FetchPeer() string                              { return "" }
func (f *fakeDomain) BlockAt(bnum uint64) ([]byte, bool, error) {
	b, ok := f.blocks[bnum]
	return b, ok, nil
}

func TestRequestBlockRoundTrip(t *testing.T) {
	hostA, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create hostA: %v", err)
	}
	defer hostA.Close()

	hostB, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create hostB: %v", err)
	}
	defer hostB.Close()

	want := bytes.Repeat([]byte{0xAB}, 4096)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := &Node{host: hostA, ctx: ctx, domain: &fakeDomain{blocks: map[uint64][]byte{7: want}}}
	server.registerSyncHandler()

	hostB.Peerstore().AddAddrs(hostA.ID(), hostA.Addrs(), time.Hour)
	if err := hostB.Connect(context.Background(), peer.AddrInfo{ID: hostA.ID(), Addrs: hostA.Addrs()}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	client := &Node{host: hostB, ctx: ctx}

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()

	got, ok, err := client.requestBlock(reqCtx, hostA.ID(), 7)
	if err != nil {
		t.Fatalf("requestBlock: %v", err)
	}
	if !ok {
		t.Fatal("requestBlock reported ok=false for a block the server has")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("requestBlock returned %d bytes, want %d matching bytes", len(got), len(want))
	}
}

func TestRequestBlockNotFoundNacks(t *testing.T) {
	hostA, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create hostA: %v", err)
	}
	defer hostA.Close()

	hostB, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("create hostB: %v", err)
	}
	defer hostB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := &Node{host: hostA, ctx: ctx, domain: &fakeDomain{blocks: map[uint64][]byte{}}}
	server.registerSyncHandler()

	hostB.Peerstore().AddAddrs(hostA.ID(), hostA.Addrs(), time.Hour)
	if err := hostB.Connect(context.Background(), peer.AddrInfo{ID: hostA.ID(), Addrs: hostA.Addrs()}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	client := &Node{host: hostB, ctx: ctx}
	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()

	_, ok, err := client.requestBlock(reqCtx, hostA.ID(), 99)
	if err != nil {
		t.Fatalf("requestBlock: %v", err)
	}
	if ok {
		t.Fatal("requestBlock should report ok=false for a block the server never had")
	}
}

func TestActOnNonFetchActionsNeedNoTransport(t *testing.T) {
	// actOn with ActionNone, ActionCommit or ActionDropInvalid must
	// return without touching the transport: the node below has no
	// libp2p host, so any attempt to fetch would panic. The fetch
	// actions themselves are not exercised here.
	n := &Node{domain: &fakeDomain{}, log: zerolog.Nop()}
	n.actOn(tip.ActionNone)
	n.actOn(tip.ActionCommit)
	n.actOn(tip.ActionDropInvalid)
}
