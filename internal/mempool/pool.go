// Package mempool stages transactions that have passed standalone checks
// but are not yet part of a committed block, ordered for block assembly
// and screened for conflicting spends from the same source address.
package mempool

import (
	"errors"
	"sort"
	"sync"

	"github.com/haikuchain/haikunode/pkg/blockfile"
)

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with a pending spend from the same source")
	ErrPoolFull      = errors.New("mempool is full")
	ErrFeeTooLow     = errors.New("transaction fee below minimum")
)

// entry wraps a pending transaction with its derived ordering key.
type entry struct {
	tx      blockfile.Transaction
	txID    [32]byte
	feeRate float64 // fee per byte of the fixed-size record.
}

// Pool holds unconfirmed transactions awaiting inclusion in a block.
//
// Unlike a UTXO mempool, conflict detection here is keyed on the source
// address: this ledger lets exactly one pending spend per source drain
// its balance, since a second concurrent spend from the same address
// would double-spend the same balance once either commits.
type Pool struct {
	mu         sync.RWMutex
	txs        map[[32]byte]*entry
	bySrc      map[[blockfile.AddrLen]byte][32]byte // source address -> txID
	maxSize    int
	minFeeRate uint64
}

// New creates a mempool holding at most maxSize transactions.
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &Pool{
		txs:     make(map[[32]byte]*entry),
		bySrc:   make(map[[blockfile.AddrLen]byte][32]byte),
		maxSize: maxSize,
	}
}

// SetMinFeeRate sets the minimum accepted fee rate, in base units per
// byte of the transaction's on-disk record.
func (p *Pool) SetMinFeeRate(rate uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minFeeRate = rate
}

// Add validates policy and inserts tx into the pool. The caller is
// responsible for consensus-level checks (WOTS signature, ledger
// balance) before calling Add — this only enforces pool-local policy
// and conflict rules.
func (p *Pool) Add(policy *Policy, tx blockfile.Transaction) error {
	if err := policy.Check(tx); err != nil {
		return err
	}

	id := tx.TxID
	feeRate := float64(tx.Fee) / float64(blockfile.TxSize)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.minFeeRate > 0 && tx.Fee/blockfile.TxSize < p.minFeeRate {
		return ErrFeeTooLow
	}
	if _, exists := p.txs[id]; exists {
		return ErrAlreadyExists
	}
	if conflictID, ok := p.bySrc[tx.Src]; ok && conflictID != id {
		return ErrConflict
	}
	if len(p.txs) >= p.maxSize {
		return ErrPoolFull
	}

	p.txs[id] = &entry{tx: tx, txID: id, feeRate: feeRate}
	p.bySrc[tx.Src] = id
	return nil
}

// Remove drops a transaction from the pool, e.g. once it has been
// committed in a block or invalidated by a conflicting commit.
func (p *Pool) Remove(txID [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txID)
}

func (p *Pool) removeLocked(txID [32]byte) {
	e, ok := p.txs[txID]
	if !ok {
		return
	}
	delete(p.txs, txID)
	if p.bySrc[e.tx.Src] == txID {
		delete(p.bySrc, e.tx.Src)
	}
}

// Get returns a pending transaction by ID.
func (p *Pool) Get(txID [32]byte) (blockfile.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.txs[txID]
	if !ok {
		return blockfile.Transaction{}, false
	}
	return e.tx, true
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Best returns up to n pending transactions ordered by fee rate
// descending, for block assembly.
func (p *Pool) Best(n int) []blockfile.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].feeRate > entries[j].feeRate
	})

	if n > len(entries) || n <= 0 {
		n = len(entries)
	}
	out := make([]blockfile.Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entries[i].tx)
	}
	return out
}
