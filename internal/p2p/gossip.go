package p2p

import (
	"fmt"
	"time"

	"github.com/haikuchain/haikunode/internal/peerstore"
	"github.com/haikuchain/haikunode/internal/wire"
	"github.com/haikuchain/haikunode/pkg/blockfile"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// GossipSub topic names.
const (
	topicTransactions = "/haikunode/tx/1.0.0"
	topicFound        = "/haikunode/found/1.0.0"
)

func (n *Node) joinTopics() error {
	var err error
	n.topicTx, err = n.pubsub.Join(topicTransactions)
	if err != nil {
		return fmt.Errorf("p2p: join tx topic: %w", err)
	}
	n.topicFound, err = n.pubsub.Join(topicFound)
	if err != nil {
		return fmt.Errorf("p2p: join found topic: %w", err)
	}
	n.subTx, err = n.topicTx.Subscribe()
	if err != nil {
		return fmt.Errorf("p2p: subscribe tx: %w", err)
	}
	n.subFound, err = n.topicFound.Subscribe()
	if err != nil {
		return fmt.Errorf("p2p: subscribe found: %w", err)
	}
	return nil
}

// BroadcastTx publishes a transaction to the gossip network, raw
// TxSize-byte encoded (no envelope), mirroring how the fixed-frame
// protocol already treats a transaction as a self-describing record.
func (n *Node) BroadcastTx(txn blockfile.Transaction) error {
	if n.topicTx == nil {
		return fmt.Errorf("p2p: node not started")
	}
	return n.topicTx.Publish(n.ctx, blockfile.EncodeTransaction(txn))
}

// BroadcastFound announces this node's current tip to the gossip
// network, so peers' tip controllers can decide whether to fetch it.
// It never carries the block body: that is fetched on demand via the
// sync protocol once a peer decides to act on the advertisement.
func (n *Node) BroadcastFound() error {
	if n.topicFound == nil {
		return fmt.Errorf("p2p: node not started")
	}
	a := n.domain.LocalAdvert()
	f := wire.Frame{
		Opcode:   wire.OpFound,
		TipBnum:  a.BlockNumber,
		TipHash:  a.BlockHash,
		PrevHash: a.PrevHash,
		Weight:   a.Weight,
	}
	buf := wire.Encode(f)
	return n.topicFound.Publish(n.ctx, buf[:])
}

func (n *Node) readLoop(sub *pubsub.Subscription, handler func(*pubsub.Message)) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return // context cancelled
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue // skip own messages
		}
		handler(msg)
	}
}

func (n *Node) handleTxMessage(msg *pubsub.Message) {
	n.addPeer(msg.ReceivedFrom)
	txn, err := blockfile.DecodeTransaction(msg.Data)
	if err != nil {
		n.log.Debug().Err(err).Str("peer", shortID(msg.ReceivedFrom)).Msg("dropped malformed gossiped tx")
		return
	}
	if err := n.domain.SubmitTransaction(txn); err != nil {
		n.log.Debug().Err(err).Str("peer", shortID(msg.ReceivedFrom)).Msg("rejected gossiped tx")
	}
}

func (n *Node) handleFoundMessage(msg *pubsub.Message) {
	n.addPeer(msg.ReceivedFrom)
	f, err := wire.Decode(msg.Data)
	if err != nil || f.Opcode != wire.OpFound {
		n.log.Debug().Err(err).Str("peer", shortID(msg.ReceivedFrom)).Msg("dropped malformed found advert")
		return
	}
	a := peerstore.Advert{
		PeerID:      msg.ReceivedFrom.String(),
		BlockNumber: f.TipBnum,
		BlockHash:   f.TipHash,
		PrevHash:    f.PrevHash,
		Weight:      f.Weight,
		SeenAt:      time.Now(),
	}
	action := n.domain.OnAdvert(a)
	n.actOn(action)
}
