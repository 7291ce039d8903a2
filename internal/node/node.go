// Package node wires the validator, ledger, tag index, tip controller,
// mempool, and peer/ban stores into a single running node. It is a
// thin daemon core: every consensus rule lives in internal/validator,
// every state-machine decision lives in internal/tip, and this package
// only sequences calls between them and the transport/RPC layers that
// surround it.
package node

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/haikuchain/haikunode/config"
	"github.com/haikuchain/haikunode/internal/banstore"
	"github.com/haikuchain/haikunode/internal/blockindex"
	"github.com/haikuchain/haikunode/internal/ledger"
	klog "github.com/haikuchain/haikunode/internal/log"
	"github.com/haikuchain/haikunode/internal/mempool"
	"github.com/haikuchain/haikunode/internal/peerstore"
	"github.com/haikuchain/haikunode/internal/storage"
	"github.com/haikuchain/haikunode/internal/tip"
	"github.com/haikuchain/haikunode/internal/validator"
	"github.com/haikuchain/haikunode/internal/verrors"
	"github.com/haikuchain/haikunode/pkg/blockfile"
	"github.com/rs/zerolog"
)

// genesisDifficulty is the puzzle difficulty assigned to block 1. The
// schedule only specifies how difficulty moves from one block to the
// next (internal/validator.NextDifficulty); the starting value is a
// node bootstrap choice, not a consensus rule.
const genesisDifficulty = 1

// Node aggregates the components a running haikunode daemon needs:
// the committed ledger view (through the validator), the tip/
// contention controller, the pending-transaction pool, and the peer
// bookkeeping the tip controller and connection gater consult.
type Node struct {
	mu sync.Mutex

	cfg     *config.Config
	genesis *config.Genesis
	log     zerolog.Logger

	ledgerPath  string
	blocksDir   string
	difficulty  uint32
	tipPrevHash [32]byte // trailer.PrevHash of the currently committed tip

	validator *validator.Validator
	tipCtl    *tip.Controller
	peers     *peerstore.Store
	bans      *banstore.Store
	blocks    *blockindex.Index
	pool      *mempool.Pool
	policy    *mempool.Policy
}

// neogenesisBuilder regenerates the locally-derived neogenesis hash a
// peer's announcement is checked against. Neogenesis content is
// treated as an opaque snapshot (see Open Questions): this node
// derives it from the committed ledger's bytes plus the block number,
// not from any separate consensus rule.
type neogenesisBuilder struct {
	ledgerPath string
}

func (b neogenesisBuilder) RegenerateHash(blockNumber uint64) ([32]byte, error) {
	data, err := os.ReadFile(b.ledgerPath)
	if err != nil {
		return [32]byte{}, verrors.Faultf("node: read ledger for neogenesis regen: %w", err)
	}
	var bnumBytes [8]byte
	binary.LittleEndian.PutUint64(bnumBytes[:], blockNumber)
	h := sha256.New()
	h.Write(data)
	h.Write(bnumBytes[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// New constructs a Node from configuration and genesis, bootstrapping
// the ledger file from the genesis allocation on first run.
func New(cfg *config.Config, gen *config.Genesis, db storage.DB) (*Node, error) {
	ledgerPath := filepath.Join(cfg.LedgerDir(), "ledger.dat")
	blocksDir := filepath.Join(cfg.ChainDataDir(), "blocks")
	if err := os.MkdirAll(blocksDir, 0o755); err != nil {
		return nil, fmt.Errorf("node: create blocks dir: %w", err)
	}

	if _, err := os.Stat(ledgerPath); os.IsNotExist(err) {
		entries, err := genesisLedgerEntries(gen)
		if err != nil {
			return nil, fmt.Errorf("node: build genesis ledger: %w", err)
		}
		if err := ledger.Create(ledgerPath, entries); err != nil {
			return nil, fmt.Errorf("node: write genesis ledger: %w", err)
		}
	}

	genHash, err := gen.Hash()
	if err != nil {
		return nil, fmt.Errorf("node: hash genesis: %w", err)
	}

	local := tip.LocalTip{BlockNumber: 0, BlockHash: genHash}
	peers := peerstore.New()
	bld := neogenesisBuilder{ledgerPath: ledgerPath}

	n := &Node{
		cfg:        cfg,
		genesis:    gen,
		log:        klog.WithComponent("node"),
		ledgerPath: ledgerPath,
		blocksDir:  blocksDir,
		difficulty: genesisDifficulty,
		validator:  validator.New(ledgerPath),
		tipCtl:     tip.New(local, peers, bld),
		peers:      peers,
		pool:       mempool.New(5000),
		policy:     mempool.DefaultPolicy(),
	}
	if db != nil {
		n.bans = banstore.New(storage.NewPrefixDB(db, []byte("ban/")))
		n.blocks = blockindex.New(storage.NewPrefixDB(db, []byte("idx/")))
	}
	return n, nil
}

// genesisLedgerEntries converts the genesis allocation map (hex
// address -> base units) into ledger entries. ledger.Create sorts
// them, so order here does not matter.
func genesisLedgerEntries(gen *config.Genesis) ([]ledger.Entry, error) {
	entries := make([]ledger.Entry, 0, len(gen.Alloc))
	for hexAddr, balance := range gen.Alloc {
		raw, err := hex.DecodeString(hexAddr)
		if err != nil {
			return nil, fmt.Errorf("node: allocation address %q: %w", hexAddr, err)
		}
		if len(raw) != blockfile.AddrLen {
			return nil, fmt.Errorf("node: allocation address %q has %d bytes, want %d", hexAddr, len(raw), blockfile.AddrLen)
		}
		var entry ledger.Entry
		copy(entry.Addr[:], raw)
		entry.Balance = balance
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return hex.EncodeToString(entries[i].Addr[:]) < hex.EncodeToString(entries[j].Addr[:])
	})
	return entries, nil
}

// Balance reports the committed balance bound to addr.
func (n *Node) Balance(addr [blockfile.AddrLen]byte) (uint64, bool, error) {
	return n.validator.Balance(addr)
}

// Resolve maps a 12-byte tag to its currently bound address.
func (n *Node) Resolve(tag [ledger.TagLen]byte) ([blockfile.AddrLen]byte, bool, error) {
	return n.validator.Resolve(tag)
}

// SubmitTransaction stages tx in the pending pool ahead of block
// assembly, after standalone policy checks.
func (n *Node) SubmitTransaction(txn blockfile.Transaction) error {
	return n.pool.Add(n.policy, txn)
}

// PendingTransactions returns up to limit pending transactions ordered
// by fee rate, for block assembly.
func (n *Node) PendingTransactions(limit int) []blockfile.Transaction {
	return n.pool.Best(limit)
}

// LocalTip returns the node's current view of the chain tip.
func (n *Node) LocalTip() tip.LocalTip {
	return n.tipCtl.Local()
}

// Difficulty returns the puzzle difficulty the next block must meet.
func (n *Node) Difficulty() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.difficulty
}

// OnAdvert feeds a peer's tip announcement into the contention
// controller and reports what the caller (the transport layer) should
// do next: fetch a block, catch up from a new peer, or nothing.
func (n *Node) OnAdvert(a peerstore.Advert) tip.Action {
	return n.tipCtl.OnAdvert(a)
}

// FetchPeer names the peer the transport layer should fetch the next
// block from, valid after an ActionFetch or ActionCatchUp.
func (n *Node) FetchPeer() string {
	return n.tipCtl.FetchPeer()
}

// LocalAdvert builds the advertisement the transport layer gossips for
// this node's current tip: the business fields a peer's contention
// controller compares against (block number, hash, parent hash,
// cumulative weight). The transport fills in PeerID and SeenAt.
func (n *Node) LocalAdvert() peerstore.Advert {
	n.mu.Lock()
	defer n.mu.Unlock()
	local := n.tipCtl.Local()
	return peerstore.Advert{
		BlockNumber: local.BlockNumber,
		BlockHash:   local.BlockHash,
		PrevHash:    n.tipPrevHash,
		Weight:      local.Weight.Bytes(),
	}
}

// BlockAt returns the archived raw bytes of a previously committed
// block, for serving a peer's GETBLOCK request. It reports ok=false
// if no block archive is configured or bnum was never committed here.
func (n *Node) BlockAt(bnum uint64) (blockBytes []byte, ok bool, err error) {
	if n.blocks == nil {
		return nil, false, nil
	}
	return n.blocks.BlockAt(bnum)
}

// classificationOf restates a verrors.Kind as the tip package's own
// Classification enum: internal/tip deliberately does not import
// verrors so its state machine stays decoupled from the validator's
// error-wrapping package.
func classificationOf(err error) tip.Classification {
	switch verrors.KindOf(err) {
	case verrors.Fault:
		return tip.Fault
	case verrors.Hostile:
		return tip.Hostile
	default:
		return tip.Invalid
	}
}

// OnBlock validates a candidate block fetched from a peer against the
// current tip, commits it on success, and reports the tip
// controller's resulting action. A non-nil error is already
// classified (internal/verrors): callers decide whether to pinklist
// the source peer via verrors.IsHostile.
func (n *Node) OnBlock(blockBytes []byte) (tip.Action, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	local := n.tipCtl.Local()
	vtip := validator.Tip{
		BlockNumber: local.BlockNumber,
		BlockHash:   local.BlockHash,
		Difficulty:  n.difficulty,
		Weight:      local.Weight,
	}

	deltaPath := filepath.Join(n.blocksDir, fmt.Sprintf("delta-%d.tmp", local.BlockNumber+1))
	result, err := n.validator.Validate(blockBytes, vtip, deltaPath)
	if err != nil {
		return n.tipCtl.OnValidationResult(local, err, classificationOf(err)), err
	}
	defer os.Remove(deltaPath)

	if err := ledger.ApplyDeltas(n.ledgerPath, deltaPath); err != nil {
		return n.tipCtl.OnValidationResult(local, err, tip.Fault), err
	}
	n.validator.Invalidate()

	blk, _ := blockfile.Decode(blockBytes)
	for _, txn := range blk.Txs {
		n.pool.Remove(txn.TxID)
	}
	if n.blocks != nil {
		if err := n.blocks.PutBlock(result.Trailer.Bnum, blockBytes, result.Trailer); err != nil {
			n.log.Warn().Err(err).Uint64("bnum", result.Trailer.Bnum).Msg("failed to archive committed block")
		}
	}

	n.difficulty = result.NewDifficulty
	n.tipPrevHash = result.Trailer.PrevHash
	newLocal := tip.LocalTip{
		BlockNumber: result.Trailer.Bnum,
		BlockHash:   result.Trailer.BlockHash,
		Weight:      result.NewWeight,
	}
	return n.tipCtl.OnValidationResult(newLocal, nil, tip.Invalid), nil
}
