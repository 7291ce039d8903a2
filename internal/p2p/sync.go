package p2p

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/haikuchain/haikunode/internal/tip"
	"github.com/haikuchain/haikunode/internal/verrors"
	"github.com/haikuchain/haikunode/internal/wire"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	// SyncProtocol is the stream protocol ID for fetching a single
	// block by height, mirroring the teacher's sync.go/heightreq.go
	// request-response shape but carrying the fixed wire.Frame as the
	// request header instead of a JSON envelope.
	SyncProtocol = protocol.ID("/haikunode/sync/1.0.0")

	syncReadTimeout = 30 * time.Second

	// maxBlockBytes bounds a fetched block's size; well above anything
	// MaxBlTx transactions could produce.
	maxBlockBytes = 512 * 1024 * 1024
)

func (n *Node) registerSyncHandler() {
	n.host.SetStreamHandler(SyncProtocol, func(stream network.Stream) {
		defer stream.Close()

		_ = stream.SetReadDeadline(time.Now().Add(syncReadTimeout))
		var reqBuf [wire.FrameSize]byte
		if _, err := io.ReadFull(stream, reqBuf[:]); err != nil {
			return
		}
		req, err := wire.Decode(reqBuf[:])
		if err != nil || req.Opcode != wire.OpGetBlock {
			return
		}

		blockBytes, ok, err := n.domain.BlockAt(req.TipBnum)
		if err != nil || !ok {
			nack := wire.Encode(wire.Frame{Opcode: wire.OpNack, TipBnum: req.TipBnum})
			stream.Write(nack[:])
			return
		}

		resp := wire.Encode(wire.Frame{Opcode: wire.OpSendBlock, TipBnum: req.TipBnum})
		if _, err := stream.Write(resp[:]); err != nil {
			return
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(blockBytes)))
		stream.Write(lenBuf[:])
		stream.Write(blockBytes)
	})
}

// requestBlock asks peerID for the block at height bnum.
func (n *Node) requestBlock(ctx context.Context, peerID peer.ID, bnum uint64) ([]byte, bool, error) {
	stream, err := n.host.NewStream(ctx, peerID, SyncProtocol)
	if err != nil {
		return nil, false, fmt.Errorf("p2p: open sync stream: %w", err)
	}
	defer stream.Close()

	reqBuf := wire.Encode(wire.Frame{Opcode: wire.OpGetBlock, TipBnum: bnum})
	if _, err := stream.Write(reqBuf[:]); err != nil {
		return nil, false, fmt.Errorf("p2p: send block request: %w", err)
	}
	stream.CloseWrite()

	_ = stream.SetReadDeadline(time.Now().Add(syncReadTimeout))
	var respBuf [wire.FrameSize]byte
	if _, err := io.ReadFull(stream, respBuf[:]); err != nil {
		return nil, false, fmt.Errorf("p2p: read block response: %w", err)
	}
	resp, err := wire.Decode(respBuf[:])
	if err != nil {
		return nil, false, fmt.Errorf("p2p: decode block response: %w", err)
	}
	if resp.Opcode == wire.OpNack {
		return nil, false, nil
	}
	if resp.Opcode != wire.OpSendBlock {
		return nil, false, fmt.Errorf("p2p: unexpected response opcode %d", resp.Opcode)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(stream, lenBuf[:]); err != nil {
		return nil, false, fmt.Errorf("p2p: read block length: %w", err)
	}
	blockLen := binary.LittleEndian.Uint32(lenBuf[:])
	if blockLen > maxBlockBytes {
		return nil, false, verrors.Hostilef("p2p: peer advertised implausible block length %d", blockLen)
	}
	blockBytes := make([]byte, blockLen)
	if _, err := io.ReadFull(stream, blockBytes); err != nil {
		return nil, false, fmt.Errorf("p2p: read block body: %w", err)
	}
	return blockBytes, true, nil
}

// actOn drives the transport's response to a tip.Action: fetching and
// validating a block after ActionFetch/ActionCatchUp, and pinklisting
// the advertiser after ActionPunish. ActionCommit/ActionDropInvalid
// need no transport-level follow-up; the domain already applied them.
func (n *Node) actOn(action tip.Action) {
	switch action {
	case tip.ActionFetch, tip.ActionCatchUp:
		n.fetchAndValidate()
	case tip.ActionPunish:
		n.punishFetchPeer()
	}
}

func (n *Node) fetchAndValidate() {
	peerIDStr := n.domain.FetchPeer()
	peerID, err := peer.Decode(peerIDStr)
	if err != nil {
		n.log.Warn().Err(err).Str("peer", peerIDStr).Msg("fetch peer has an invalid peer ID")
		return
	}

	local := n.domain.LocalTip()
	ctx, cancel := context.WithTimeout(n.ctx, syncReadTimeout)
	blockBytes, ok, err := n.requestBlock(ctx, peerID, local.BlockNumber+1)
	cancel()
	if err != nil {
		n.log.Warn().Err(err).Str("peer", shortID(peerID)).Msg("block fetch failed")
		if verrors.IsHostile(err) {
			n.banMgr.RecordOffense(peerID, PenaltyInvalidBlock, err.Error())
		}
		return
	}
	if !ok {
		n.log.Debug().Str("peer", shortID(peerID)).Msg("peer did not have the requested block")
		return
	}

	action, err := n.domain.OnBlock(blockBytes)
	if err != nil {
		n.log.Warn().Err(err).Str("peer", shortID(peerID)).Msg("fetched block failed validation")
	}
	if action == tip.ActionCommit {
		go n.BroadcastFound()
	}
	n.actOn(action)
}

func (n *Node) punishFetchPeer() {
	peerIDStr := n.domain.FetchPeer()
	peerID, err := peer.Decode(peerIDStr)
	if err != nil {
		return
	}
	n.banMgr.RecordOffense(peerID, PenaltyInvalidBlock, "hostile block")
}
