package p2p

import (
	"testing"
	"time"

	"github.com/haikuchain/haikunode/internal/identity"
)

func TestChallengeHashDiffersByRemotePeer(t *testing.T) {
	var genesis [32]byte
	genesis[0] = 0x7

	h1 := challengeHash(genesis, "local-peer", "peer-a")
	h2 := challengeHash(genesis, "local-peer", "peer-b")
	if h1 == h2 {
		t.Fatal("two different remote peers must not derive the same challenge")
	}
}

func TestHelloChallengeRoundTrip(t *testing.T) {
	key, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}

	var nonce [32]byte
	nonce[0] = 0x42
	challenge := helloChallenge{nonce: nonce, publicKey: [33]byte(key.PublicKey())}

	decoded, err := unmarshalHelloChallenge(challenge.marshal())
	if err != nil {
		t.Fatalf("unmarshalHelloChallenge: %v", err)
	}
	if decoded.nonce != challenge.nonce {
		t.Fatal("nonce did not round-trip")
	}
	if decoded.publicKey != challenge.publicKey {
		t.Fatal("public key did not round-trip")
	}
}

func TestUnmarshalHelloChallengeRejectsShortBody(t *testing.T) {
	if _, err := unmarshalHelloChallenge(make([]byte, 10)); err == nil {
		t.Fatal("expected an error for a truncated hello body")
	}
}

func TestTwoNodesHandshakeSucceedsWithMatchingGenesis(t *testing.T) {
	genesis := [32]byte{0x01, 0x02, 0x03}

	nodeA, err := New(Config{ListenAddr: "127.0.0.1", Port: 0, NoDiscover: true, GenesisHash: genesis}, &recordingDomain{}, nil)
	if err != nil {
		t.Fatalf("New nodeA: %v", err)
	}
	if err := nodeA.Start(); err != nil {
		t.Fatalf("start nodeA: %v", err)
	}
	t.Cleanup(func() { nodeA.Stop() })

	nodeB, err := New(Config{ListenAddr: "127.0.0.1", Port: 0, NoDiscover: true, GenesisHash: genesis}, &recordingDomain{}, nil)
	if err != nil {
		t.Fatalf("New nodeB: %v", err)
	}
	if err := nodeB.Start(); err != nil {
		t.Fatalf("start nodeB: %v", err)
	}
	t.Cleanup(func() { nodeB.Stop() })

	connectNodes(t, nodeA, nodeB)
	nodeA.doHandshake(nodeB.host.ID())

	// A genuine handshake must not get either side pinklisted.
	time.Sleep(200 * time.Millisecond)
	if nodeA.banMgr.IsBanned(nodeB.host.ID()) || nodeB.banMgr.IsBanned(nodeA.host.ID()) {
		t.Fatal("a matching-genesis handshake should not ban either peer")
	}
}
