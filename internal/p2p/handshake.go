package p2p

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/haikuchain/haikunode/internal/identity"
	klog "github.com/haikuchain/haikunode/internal/log"
	"github.com/haikuchain/haikunode/internal/wire"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	// HandshakeProtocol is the stream protocol ID for peer identity
	// verification, run once per new connection ahead of gossip/sync
	// traffic.
	HandshakeProtocol = protocol.ID("/haikunode/handshake/1.0.0")

	handshakeTimeout = 10 * time.Second

	schnorrSigLen  = 64
	helloBodyLen   = 32 + 33 + schnorrSigLen // nonce + compressed pubkey + signature
)

// helloChallenge is both HELLO's and HELLO_ACK's body: a nonce both
// sides derive independently from the connection (so neither side can
// steer it), signed with the sender's handshake identity key. The
// sessionID used for log correlation (a google/uuid, logged but never
// placed on the wire) is distinct from these bytes entirely.
type helloChallenge struct {
	nonce     [32]byte
	publicKey [33]byte
	signature [schnorrSigLen]byte
}

func (h helloChallenge) marshal() []byte {
	out := make([]byte, 0, helloBodyLen)
	out = append(out, h.nonce[:]...)
	out = append(out, h.publicKey[:]...)
	out = append(out, h.signature[:]...)
	return out
}

func unmarshalHelloChallenge(b []byte) (helloChallenge, error) {
	if len(b) < helloBodyLen {
		return helloChallenge{}, fmt.Errorf("p2p: truncated handshake body: %d bytes", len(b))
	}
	var h helloChallenge
	copy(h.nonce[:], b[:32])
	copy(h.publicKey[:], b[32:65])
	copy(h.signature[:], b[65:helloBodyLen])
	return h, nil
}

func packFrameBody(f *wire.Frame, payload []byte) error {
	if len(payload) > len(f.Body) {
		return fmt.Errorf("p2p: handshake payload %d bytes exceeds frame body", len(payload))
	}
	copy(f.Body[:], payload)
	return nil
}

// registerHandshakeHandler sets up the inbound HELLO stream handler:
// recompute the connection's nonce independently, verify the dialer's
// signature over it, then reply with our own signature over the same
// nonce so the dialer can verify us in turn.
func (n *Node) registerHandshakeHandler() {
	n.host.SetStreamHandler(HandshakeProtocol, func(stream network.Stream) {
		defer stream.Close()
		sessionID := uuid.New()
		remotePeer := stream.Conn().RemotePeer()
		logger := klog.WithComponent("p2p").With().Str("session", sessionID.String()).Logger()

		_ = stream.SetReadDeadline(time.Now().Add(handshakeTimeout))
		var reqBuf [wire.FrameSize]byte
		if _, err := io.ReadFull(stream, reqBuf[:]); err != nil {
			logger.Debug().Err(err).Str("peer", shortID(remotePeer)).Msg("handshake read failed")
			return
		}
		req, err := wire.Decode(reqBuf[:])
		if err != nil || req.Opcode != wire.OpHello {
			logger.Debug().Str("peer", shortID(remotePeer)).Msg("handshake: not a HELLO frame")
			return
		}
		theirs, err := unmarshalHelloChallenge(req.Body[:])
		if err != nil {
			logger.Debug().Err(err).Str("peer", shortID(remotePeer)).Msg("malformed HELLO body")
			return
		}

		nonce := challengeHash(n.config.GenesisHash, n.host.ID(), remotePeer)
		if !identity.Verify(nonce[:], theirs.signature[:], theirs.publicKey[:]) {
			logger.Warn().Str("peer", shortID(remotePeer)).Msg("handshake signature invalid, pinklisting")
			n.banMgr.RecordOffense(remotePeer, PenaltyHandshakeFail, "bad handshake signature")
			n.DisconnectPeer(remotePeer)
			return
		}

		sig, err := n.identity.Sign(nonce[:])
		if err != nil {
			logger.Warn().Err(err).Msg("failed to sign handshake ack")
			return
		}
		ours := helloChallenge{nonce: nonce, publicKey: [33]byte(n.identity.PublicKey()), signature: [schnorrSigLen]byte(sig)}
		var ackFrame wire.Frame
		ackFrame.Opcode = wire.OpHelloAck
		if err := packFrameBody(&ackFrame, ours.marshal()); err != nil {
			logger.Warn().Err(err).Msg("handshake ack payload too large")
			return
		}
		ackBuf := wire.Encode(ackFrame)
		if _, err := stream.Write(ackBuf[:]); err != nil {
			logger.Debug().Err(err).Str("peer", shortID(remotePeer)).Msg("handshake ack write failed")
		}
	})
}

// doHandshake initiates a handshake with a remote peer (dialer side).
// It tolerates a peer that doesn't speak HandshakeProtocol at all
// (older or handshake-disabled peer); it only pinklists a peer that
// speaks the protocol and signs incorrectly.
func (n *Node) doHandshake(peerID peer.ID) {
	sessionID := uuid.New()
	logger := klog.WithComponent("p2p").With().Str("session", sessionID.String()).Logger()

	stream, err := n.host.NewStream(n.ctx, peerID, HandshakeProtocol)
	if err != nil {
		logger.Debug().Str("peer", shortID(peerID)).Msg("peer does not support handshake, tolerating")
		return
	}
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

	nonce := challengeHash(n.config.GenesisHash, peerID, n.host.ID())
	sig, err := n.identity.Sign(nonce[:])
	if err != nil {
		logger.Warn().Err(err).Msg("failed to sign handshake hello")
		return
	}
	ours := helloChallenge{nonce: nonce, publicKey: [33]byte(n.identity.PublicKey()), signature: [schnorrSigLen]byte(sig)}
	var helloFrame wire.Frame
	helloFrame.Opcode = wire.OpHello
	if err := packFrameBody(&helloFrame, ours.marshal()); err != nil {
		logger.Warn().Err(err).Msg("hello payload too large")
		return
	}
	helloBuf := wire.Encode(helloFrame)
	if _, err := stream.Write(helloBuf[:]); err != nil {
		logger.Debug().Err(err).Str("peer", shortID(peerID)).Msg("hello send failed")
		return
	}

	var ackBuf [wire.FrameSize]byte
	if _, err := io.ReadFull(stream, ackBuf[:]); err != nil {
		logger.Debug().Err(err).Str("peer", shortID(peerID)).Msg("hello ack read failed")
		return
	}
	ack, err := wire.Decode(ackBuf[:])
	if err != nil || ack.Opcode != wire.OpHelloAck {
		logger.Debug().Str("peer", shortID(peerID)).Msg("handshake: not a HELLO_ACK frame")
		return
	}
	theirs, err := unmarshalHelloChallenge(ack.Body[:])
	if err != nil {
		logger.Debug().Err(err).Str("peer", shortID(peerID)).Msg("malformed HELLO_ACK body")
		return
	}

	if !identity.Verify(nonce[:], theirs.signature[:], theirs.publicKey[:]) {
		logger.Warn().Str("peer", shortID(peerID)).Msg("handshake ack signature invalid, pinklisting")
		n.banMgr.RecordOffense(peerID, PenaltyHandshakeFail, "bad handshake ack signature")
		n.DisconnectPeer(peerID)
	}
}

// challengeHash derives the per-connection nonce both ends of a
// handshake sign: the genesis hash binds it to this network, and the
// sorted pair of peer IDs binds it to this connection without caring
// which side is dialer or listener, so both sides compute the same
// value independently.
func challengeHash(genesisHash [32]byte, a, b peer.ID) [32]byte {
	ids := []string{string(a), string(b)}
	sort.Strings(ids)

	h := sha256.New()
	h.Write(genesisHash[:])
	h.Write([]byte(ids[0]))
	h.Write([]byte(ids[1]))
	var window [8]byte
	binary.LittleEndian.PutUint64(window[:], uint64(time.Now().Unix()/300))
	h.Write(window[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
