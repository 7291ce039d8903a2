// Package p2p implements the node's peer-to-peer transport on top of
// libp2p: a gossip fan-out for transactions and tip advertisements
// (§4.I), a request/response stream protocol for fetching a single
// block by height, a connection gater wired to the persistent pink
// list, and a HELLO/HELLO_ACK handshake that authenticates a peer's
// identity across reconnects. It carries the fixed 8824-byte frame
// (internal/wire) as stream and gossip payload; internal/wire owns the
// byte layout, this package owns the connection and topic plumbing.
package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haikuchain/haikunode/internal/banstore"
	"github.com/haikuchain/haikunode/internal/identity"
	klog "github.com/haikuchain/haikunode/internal/log"
	"github.com/haikuchain/haikunode/internal/peerstore"
	"github.com/haikuchain/haikunode/internal/tip"
	"github.com/haikuchain/haikunode/pkg/blockfile"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/rs/zerolog"
)

const rendezvousFallback = "haikunode"

// Domain is the node-level decision surface the transport drives.
// *internal/node.Node satisfies it; tests supply a lighter fake.
type Domain interface {
	OnAdvert(a peerstore.Advert) tip.Action
	OnBlock(blockBytes []byte) (tip.Action, error)
	SubmitTransaction(txn blockfile.Transaction) error
	LocalTip() tip.LocalTip
	LocalAdvert() peerstore.Advert
	Difficulty() uint32
	FetchPeer() string
	BlockAt(bnum uint64) ([]byte, bool, error)
}

// Config holds P2P node configuration.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	MaxPeers   int
	NoDiscover bool
	NetworkID  string // isolates mDNS discovery per network
	DataDir    string // for persisting the libp2p host identity

	GenesisHash [32]byte // enables the handshake when non-zero
}

// Node is the libp2p transport wrapping a Domain.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	domain Domain

	topicTx    *pubsub.Topic
	topicFound *pubsub.Topic
	subTx      *pubsub.Subscription
	subFound   *pubsub.Subscription

	mu    sync.RWMutex
	peers map[peer.ID]*Peer

	banMgr          *BanManager
	connNotify      *connNotifier
	onPeerConnected func()

	identity         *identity.PrivateKey
	handshakeEnabled bool
}

// New creates a P2P node driving domain, with ban persistence backed
// by bans (nil disables persistence, e.g. in tests). The node's
// handshake identity is loaded from cfg.DataDir, or generated fresh
// and persisted there if none exists yet; with no DataDir it is
// generated fresh and not persisted.
func New(cfg Config, domain Domain, bans *banstore.Store) (*Node, error) {
	id, err := loadOrCreateNodeIdentity(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("p2p: load handshake identity: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		config:   cfg,
		domain:   domain,
		ctx:      ctx,
		cancel:   cancel,
		log:      klog.WithComponent("p2p"),
		peers:    make(map[peer.ID]*Peer),
		identity: id,
	}
	n.banMgr = NewBanManager(bans, n)
	n.handshakeEnabled = cfg.GenesisHash != [32]byte{}
	return n, nil
}

// rendezvous returns the mDNS discovery namespace for this node. When
// NetworkID is set, it isolates discovery per network.
func (n *Node) rendezvous() string {
	if n.config.NetworkID != "" {
		return "haikunode/" + n.config.NetworkID
	}
	return rendezvousFallback
}

// Start initializes the libp2p host, pubsub, and stream handlers, and
// begins connecting to seeds and discovering peers.
func (n *Node) Start() error {
	addr := fmt.Sprintf("/ip4/%s/tcp/%d", n.config.ListenAddr, n.config.Port)

	n.banMgr.LoadBans()

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(addr),
		libp2p.ConnectionGater(&banGater{banMgr: n.banMgr}),
	}

	if n.config.DataDir != "" {
		privKey, err := loadOrCreateIdentity(n.config.DataDir)
		if err != nil {
			return fmt.Errorf("p2p: load host identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(privKey))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("p2p: create libp2p host: %w", err)
	}
	n.host = h

	n.connNotify = &connNotifier{node: n}
	h.Network().Notify(n.connNotify)

	ps, err := pubsub.NewGossipSub(n.ctx, h, pubsub.WithMaxMessageSize(blockfile.TxSize+64*1024))
	if err != nil {
		h.Close()
		return fmt.Errorf("p2p: create pubsub: %w", err)
	}
	n.pubsub = ps

	if err := n.joinTopics(); err != nil {
		h.Close()
		return err
	}

	n.registerSyncHandler()
	if n.handshakeEnabled {
		n.registerHandshakeHandler()
	}

	go n.readLoop(n.subTx, n.handleTxMessage)
	go n.readLoop(n.subFound, n.handleFoundMessage)

	if len(n.config.Seeds) > 0 {
		n.log.Info().Int("seeds", len(n.config.Seeds)).Msg("connecting to seeds")
	}
	n.connectSeedsOnce()
	go n.connectSeedsLoop()

	if !n.config.NoDiscover {
		n.startMDNS()
	}

	return nil
}

// Stop shuts down the P2P node.
func (n *Node) Stop() error {
	n.cancel()
	if n.subTx != nil {
		n.subTx.Cancel()
	}
	if n.subFound != nil {
		n.subFound.Cancel()
	}
	if n.host != nil {
		return n.host.Close()
	}
	return nil
}

// Host returns the underlying libp2p host (nil before Start).
func (n *Node) Host() host.Host {
	return n.host
}

// SetPeerConnectedHandler registers a callback invoked when a new peer connects.
func (n *Node) SetPeerConnectedHandler(fn func()) {
	n.onPeerConnected = fn
}

// DisconnectPeer closes all connections to a peer and removes it from the peer list.
func (n *Node) DisconnectPeer(id peer.ID) error {
	if n.host == nil {
		return fmt.Errorf("p2p: node not started")
	}
	n.removePeer(id)
	return n.host.Network().ClosePeer(id)
}

// ID returns the peer ID of this node.
func (n *Node) ID() peer.ID {
	if n.host == nil {
		return ""
	}
	return n.host.ID()
}

// Addrs returns the full multiaddrs of this node.
func (n *Node) Addrs() []string {
	if n.host == nil {
		return nil
	}
	var addrs []string
	for _, a := range n.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, n.host.ID()))
	}
	return addrs
}

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// PeerList returns a snapshot of connected peers.
func (n *Node) PeerList() []*Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}
	return out
}

func (n *Node) addPeer(id peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.peers[id]; !exists {
		n.peers[id] = &Peer{ID: id, ConnectedAt: time.Now()}
	}
}

func (n *Node) removePeer(id peer.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, id)
}

func (n *Node) startMDNS() {
	svc := mdns.NewMdnsService(n.host, n.rendezvous(), &discoveryNotifee{node: n})
	_ = svc.Start() // mDNS failure is non-fatal
}

// connectSeedsOnce tries to connect to each seed peer once (blocking).
// Returns true if at least one seed connected.
func (n *Node) connectSeedsOnce() bool {
	connected := false
	for _, addr := range n.config.Seeds {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			n.log.Warn().Str("addr", addr).Err(err).Msg("bad seed address")
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
		err = n.host.Connect(ctx, *info)
		cancel()
		if err != nil {
			n.log.Warn().Str("peer", shortID(info.ID)).Err(err).Msg("seed connect failed")
			continue
		}
		n.addPeer(info.ID)
		n.log.Info().Str("peer", shortID(info.ID)).Msg("seed connected")
		connected = true
	}
	return connected
}

// connectSeedsLoop retries seed connections every 10s while the node
// has no peers.
func (n *Node) connectSeedsLoop() {
	if len(n.config.Seeds) == 0 {
		return
	}
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(10 * time.Second):
			if n.PeerCount() == 0 {
				n.connectSeedsOnce()
			}
		}
	}
}

func shortID(id peer.ID) string {
	s := id.String()
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// loadOrCreateIdentity loads a persisted libp2p host identity key from
// dataDir, or generates and saves a new one, so the peer ID is stable
// across restarts. This key authenticates the libp2p connection
// itself; it is unrelated to internal/identity's handshake signature,
// which authenticates the node's application-layer claims.
func loadOrCreateIdentity(dataDir string) (libp2pcrypto.PrivKey, error) {
	keyPath := filepath.Join(dataDir, "node.key")

	if data, err := os.ReadFile(keyPath); err == nil {
		keyBytes, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode node key: %w", err)
		}
		return libp2pcrypto.UnmarshalEd25519PrivateKey(keyBytes)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0o600); err != nil {
		return nil, fmt.Errorf("save node key: %w", err)
	}
	return priv, nil
}

// loadOrCreateNodeIdentity loads a persisted handshake identity key
// from dataDir, or generates and saves a new one. With no dataDir, a
// fresh key is generated and never written to disk (e.g. in tests).
func loadOrCreateNodeIdentity(dataDir string) (*identity.PrivateKey, error) {
	if dataDir == "" {
		return identity.Generate()
	}

	keyPath := filepath.Join(dataDir, "identity.key")
	if data, err := os.ReadFile(keyPath); err == nil {
		keyBytes, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode identity key: %w", err)
		}
		return identity.FromBytes(keyBytes)
	}

	id, err := identity.Generate()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(id.Bytes())), 0o600); err != nil {
		return nil, fmt.Errorf("save identity key: %w", err)
	}
	return id, nil
}
